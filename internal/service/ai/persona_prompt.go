package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

const debateTemplate = `You are {name} in a heated four-way debate. The original question was: "{topic}"

Current conversation so far:
{history}

The last message was: "{last}"

You are {name} - {voice}.

RULES:
{rules}

{closing}`

// PromptInput is everything a debate prompt depends on.
type PromptInput struct {
	Speaker  persona.ID
	Topic    string
	History  []string
	LastLine string
}

// PromptBuilder renders the instruction text sent to a persona's backend.
// Output depends only on the input and the persona table.
type PromptBuilder struct {
	personas persona.Store
	template prompt.ChatTemplate
}

// NewPromptBuilder creates a builder over the supplied persona table.
func NewPromptBuilder(personas persona.Store) *PromptBuilder {
	return &PromptBuilder{
		personas: personas,
		template: prompt.FromMessages(schema.FString, schema.UserMessage(debateTemplate)),
	}
}

// Build renders the prompt for in.Speaker.
func (b *PromptBuilder) Build(ctx context.Context, in PromptInput) (string, error) {
	speaker, ok := b.personas.FindByID(in.Speaker)
	if !ok {
		return "", &persona.UnknownPersonaError{ID: string(in.Speaker)}
	}

	closing := speaker.Closing
	if closing == "" {
		closing = fmt.Sprintf("Respond as %s would!", speaker.ID)
	}

	messages, err := b.template.Format(ctx, map[string]any{
		"name":    string(speaker.ID),
		"topic":   in.Topic,
		"history": strings.Join(in.History, "\n"),
		"last":    in.LastLine,
		"voice":   speaker.Voice,
		"rules":   numbered(b.rules(speaker, in.Topic)),
		"closing": closing,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", speaker.ID, err)
	}
	if len(messages) == 0 || messages[0] == nil {
		return "", fmt.Errorf("render prompt for %s: empty template output", speaker.ID)
	}
	return messages[0].Content, nil
}

func (b *PromptBuilder) rules(speaker persona.Persona, topic string) []string {
	limit := speaker.WordLimit
	if limit <= 0 {
		limit = persona.DefaultWordLimit
	}

	rules := []string{
		stanceRule(speaker.Stance),
		fmt.Sprintf("Reference the previous speaker by name (%s) and never address yourself by name", strings.Join(b.otherNames(speaker.ID), ", ")),
		fmt.Sprintf("Keep under %d words", limit),
		fmt.Sprintf("Stay focused on the original question: %q", topic),
	}
	rules = append(rules, speaker.Rules...)
	rules = append(rules,
		"NO quotation marks around your reply, NO asterisks, NO stage directions",
		"NO meta-commentary about being an AI, about these rules or about the debate format",
	)
	return rules
}

func (b *PromptBuilder) otherNames(self persona.ID) []string {
	var names []string
	for _, p := range b.personas.List() {
		if p.ID == self {
			continue
		}
		names = append(names, p.Name)
	}
	return names
}

func stanceRule(stance persona.Stance) string {
	switch stance {
	case persona.StanceOppose:
		return "OPPOSE what the last speaker said, whatever their position"
	case persona.StanceReason:
		return "Respond directly to the previous speaker and present a counter-argument or support them with reasoning"
	case persona.StanceAnalyze:
		return "Either support or contradict the previous speaker with data or logic"
	default:
		return "Directly respond to what was just said by referencing the speaker"
	}
}

func numbered(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, item)
	}
	return sb.String()
}
