package debate

// EventType names the frames pushed to a live viewer.
type EventType string

const (
	EventSession      EventType = "session"
	EventMessage      EventType = "message"
	EventError        EventType = "error"
	EventSessionEnded EventType = "session-ended"
)

// Event is one frame of the live delivery stream.
type Event struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"sessionId"`
	Text          string    `json:"text,omitempty"`
	PersonaTag    string    `json:"personaTag,omitempty"`
	ShouldPersist bool      `json:"shouldPersist"`
	TurnIndex     int       `json:"turnIndex"`
	State         State     `json:"state,omitempty"`
}

// MessageEvent wraps a transcript line for delivery.
func MessageEvent(sessionID string, turn Turn, turnIndex int) Event {
	return Event{
		Type:          EventMessage,
		SessionID:     sessionID,
		Text:          turn.Line(),
		PersonaTag:    turn.Speaker.Tag(),
		ShouldPersist: true,
		TurnIndex:     turnIndex,
	}
}
