package data

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
)

// ErrUnknownArchetype is returned for an archetype missing from the tables.
var ErrUnknownArchetype = errors.New("unknown archetype")

// AttributeTables seeds attribute sets per archetype:
// archetype → set name → attribute → base value.
type AttributeTables struct {
	Archetypes map[string]map[string]map[attribute.Attribute]float64 `yaml:"archetypes"`
}

// LoadAttributeTables reads YAML attribute tables. An empty path loads the
// built-in ones.
func LoadAttributeTables(path string) (*AttributeTables, error) {
	raw := defaultAttributes
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading attribute tables %s: %w", path, err)
		}
	}
	var t AttributeTables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parsing attribute tables %q: %w", path, err)
	}
	return &t, nil
}

// NewSets builds fresh attribute sets for archetype, ordered by set name.
func (t *AttributeTables) NewSets(archetype string) ([]*attribute.Set, error) {
	sets, ok := t.Archetypes[archetype]
	if !ok {
		return nil, fmt.Errorf("%q: %w", archetype, ErrUnknownArchetype)
	}
	out := make([]*attribute.Set, 0, len(sets))
	for _, name := range slices.Sorted(maps.Keys(sets)) {
		out = append(out, attribute.NewSetFromTable(name, sets[name]))
	}
	return out, nil
}
