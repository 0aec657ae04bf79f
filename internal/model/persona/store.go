package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes persona retrieval for the engine and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id ID) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the configured persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id ID) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

type profileFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadProfiles reads voice-profile overrides from a YAML file and merges them onto base.
// Only non-empty fields override; ids outside the table are rejected.
func LoadProfiles(path string, base []Persona) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse persona profiles %s: %w", path, err)
	}

	return MergeProfiles(base, file.Personas)
}

// MergeProfiles applies overrides onto base by persona id.
func MergeProfiles(base []Persona, overrides []Persona) ([]Persona, error) {
	merged := append([]Persona(nil), base...)
	for _, override := range overrides {
		id, err := Parse(string(override.ID))
		if err != nil {
			return nil, err
		}

		idx := -1
		for i := range merged {
			if merged[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &UnknownPersonaError{ID: string(override.ID)}
		}

		target := &merged[idx]
		if override.Name != "" {
			target.Name = override.Name
		}
		if override.Voice != "" {
			target.Voice = override.Voice
		}
		if override.Stance != "" {
			target.Stance = override.Stance
		}
		if override.WordLimit > 0 {
			target.WordLimit = override.WordLimit
		}
		if len(override.Rules) > 0 {
			target.Rules = append([]string(nil), override.Rules...)
		}
		if override.Closing != "" {
			target.Closing = override.Closing
		}
	}
	return merged, nil
}
