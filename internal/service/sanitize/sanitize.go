// Package sanitize removes name echoes and AI self-disclosure from raw backend output.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

// disclaimerPattern also takes the blanks around a disclaimer so its removal leaves one space.
var disclaimerPattern = regexp.MustCompile(`(?i)[ \t]*\b(?:as an ai|i(?:'|’| a)?m an ai)(?: language model)?\b,?[ \t]*`)

// prefixesFor lists the echo variants a model tends to open with.
func prefixesFor(id persona.ID) []string {
	name := string(id)
	return []string{
		name + ":",
		"As " + name + ":",
		name + " here:",
	}
}

// Clean strips persona-name prefixes (speaker first, then every known persona) and AI
// disclaimers, then trims. It repeats until the text stops changing, so
// Clean(Clean(x)) == Clean(x).
func Clean(raw string, speaker persona.ID) string {
	candidates := make([]persona.ID, 0, len(persona.IDs)+1)
	if speaker != "" {
		candidates = append(candidates, speaker)
	}
	for _, id := range persona.IDs {
		if id != speaker {
			candidates = append(candidates, id)
		}
	}

	text := strings.TrimSpace(raw)
	for {
		next := pass(text, candidates)
		if next == text {
			return text
		}
		text = next
	}
}

func pass(text string, candidates []persona.ID) string {
	text = stripPrefix(text, candidates)
	text = disclaimerPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func stripPrefix(text string, candidates []persona.ID) string {
	for _, id := range candidates {
		for _, prefix := range prefixesFor(id) {
			if len(text) < len(prefix) {
				continue
			}
			if strings.EqualFold(text[:len(prefix)], prefix) {
				return strings.TrimSpace(text[len(prefix):])
			}
		}
	}
	return text
}
