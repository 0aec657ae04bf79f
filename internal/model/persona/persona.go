package persona

import (
	"fmt"
	"strings"
)

// ID identifies one of the fixed debate participants.
type ID string

const (
	Grok     ID = "GROK"
	Claude   ID = "CLAUDE"
	ChatGPT  ID = "CHATGPT"
	DeepSeek ID = "DEEPSEEK"
)

// IDs lists every known persona in table order.
var IDs = []ID{Grok, Claude, ChatGPT, DeepSeek}

// Tag is the lowercase form sent to viewers (e.g. "grok").
func (id ID) Tag() string {
	return strings.ToLower(string(id))
}

func (id ID) String() string { return string(id) }

// Valid reports whether id belongs to the persona table.
func (id ID) Valid() bool {
	for _, known := range IDs {
		if known == id {
			return true
		}
	}
	return false
}

// UnknownPersonaError is returned when a rotation or request names a persona outside the table.
type UnknownPersonaError struct {
	ID string
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown persona %q", e.ID)
}

// Parse resolves a case-insensitive persona name.
func Parse(raw string) (ID, error) {
	id := ID(strings.ToUpper(strings.TrimSpace(raw)))
	if !id.Valid() {
		return "", &UnknownPersonaError{ID: raw}
	}
	return id, nil
}

// Stance describes how a persona engages the previous speaker.
type Stance string

const (
	StanceProvoke Stance = "provoke"
	StanceReason  Stance = "reason"
	StanceOppose  Stance = "oppose"
	StanceAnalyze Stance = "analyze"
)

// Persona captures the voice profile a backend is asked to play.
type Persona struct {
	ID        ID       `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Provider  string   `json:"provider" yaml:"provider"`
	Voice     string   `json:"voice" yaml:"voice"`
	Stance    Stance   `json:"stance" yaml:"stance"`
	WordLimit int      `json:"wordLimit" yaml:"wordLimit"`
	Rules     []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Closing   string   `json:"closing,omitempty" yaml:"closing,omitempty"`
}

// DefaultWordLimit caps replies when a profile does not set its own limit.
const DefaultWordLimit = 25

// Seed provides the built-in debate roster.
func Seed() []Persona {
	return []Persona{
		{
			ID:        Grok,
			Name:      "Grok",
			Provider:  "xai",
			Voice:     "grumpy uncle who jokes everything off, provocative and irreverent, always lands a punchline",
			Stance:    StanceProvoke,
			WordLimit: DefaultWordLimit,
			Rules: []string{
				"Be provocative but answer the core question",
			},
			Closing: "Respond as GROK would - directly and with attitude!",
		},
		{
			ID:        Claude,
			Name:      "Claude",
			Provider:  "anthropic",
			Voice:     "diplomatic but firm, the voice of reason, like a friendly professor",
			Stance:    StanceReason,
			WordLimit: DefaultWordLimit,
			Rules: []string{
				"Speak up for fairness and gently correct others",
			},
			Closing: "Be diplomatic but take a clear stance!",
		},
		{
			ID:        ChatGPT,
			Name:      "ChatGPT",
			Provider:  "openai",
			Voice:     "the upbeat instigator who loves drama and stirring the pot",
			Stance:    StanceOppose,
			WordLimit: DefaultWordLimit,
			Rules: []string{
				"Be dramatic and push buttons",
			},
			Closing: "Stir the pot and challenge the previous response!",
		},
		{
			ID:        DeepSeek,
			Name:      "DeepSeek",
			Provider:  "deepseek",
			Voice:     "analytical and data-driven, the chill buddy who brings facts to arguments",
			Stance:    StanceAnalyze,
			WordLimit: DefaultWordLimit,
			Rules: []string{
				"Optionally toss in a quick follow-up question to keep the debate rolling",
			},
			Closing: "Use your analytical nature to respond with facts or logic!",
		},
	}
}
