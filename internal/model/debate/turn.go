package debate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

// Turn is one persona's sanitized contribution to a transcript.
type Turn struct {
	ID        string     `json:"id"`
	Speaker   persona.ID `json:"speaker"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewTurn stamps a turn with a sortable id.
func NewTurn(speaker persona.ID, text string) Turn {
	return Turn{
		ID:        ulid.Make().String(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Line renders the transcript-window form "<PERSONA>: <text>".
func (t Turn) Line() string {
	return fmt.Sprintf("%s: %s", t.Speaker, t.Text)
}

// ErrMalformedLine marks a transcript line that is not "<PERSONA>: <text>".
var ErrMalformedLine = errors.New("malformed transcript line")

var linePattern = regexp.MustCompile(`^([A-Za-z]+):\s?(.*)$`)

// ParseLine reads a "<PERSONA>: <text>" line back into a Turn.
func ParseLine(line string) (Turn, error) {
	m := linePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Turn{}, fmt.Errorf("%w %q", ErrMalformedLine, line)
	}
	id, err := persona.Parse(m[1])
	if err != nil {
		return Turn{}, err
	}
	return NewTurn(id, strings.TrimSpace(m[2])), nil
}

// Lines renders a transcript in order.
func Lines(turns []Turn) []string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Line()
	}
	return lines
}
