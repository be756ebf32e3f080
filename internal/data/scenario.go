package data

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is returned for a scenario that references unknown actors
// or has no action in a step.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario scripts a simulation run: the actors and a timeline of actions.
type Scenario struct {
	Name   string          `yaml:"name"`
	Actors []ScenarioActor `yaml:"actors"`
	Steps  []Step          `yaml:"steps"`
}

// ScenarioActor is one participant. Predicted actors are also driven from a
// predicting client replica.
type ScenarioActor struct {
	ID        string `yaml:"id"`
	Archetype string `yaml:"archetype"`
	Predicted bool   `yaml:"predicted"`
}

// Step is one timeline entry. Exactly one of Apply or RemoveTags is set.
type Step struct {
	At          time.Duration      `yaml:"at"`
	Source      string             `yaml:"source"`
	Target      string             `yaml:"target"`
	Apply       string             `yaml:"apply"`
	Level       float64            `yaml:"level"`
	Predict     bool               `yaml:"predict"`
	SetByCaller map[string]float64 `yaml:"set_by_caller"`
	RemoveTags  []string           `yaml:"remove_tags"`
}

// LoadScenario reads a YAML scenario. An empty path loads the built-in one.
func LoadScenario(path string) (*Scenario, error) {
	raw := defaultScenario
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading scenario %s: %w", path, err)
		}
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %q: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks actor references and sorts steps by time, keeping file
// order for steps at the same instant.
func (sc *Scenario) Validate() error {
	ids := make(map[string]struct{}, len(sc.Actors))
	for _, a := range sc.Actors {
		if a.ID == "" {
			return fmt.Errorf("%s: actor without id: %w", sc.Name, ErrInvalidScenario)
		}
		ids[a.ID] = struct{}{}
	}
	for i, st := range sc.Steps {
		if _, ok := ids[st.Target]; !ok {
			return fmt.Errorf("%s: step %d targets unknown actor %q: %w", sc.Name, i, st.Target, ErrInvalidScenario)
		}
		if st.Source != "" {
			if _, ok := ids[st.Source]; !ok {
				return fmt.Errorf("%s: step %d from unknown actor %q: %w", sc.Name, i, st.Source, ErrInvalidScenario)
			}
		}
		if (st.Apply == "") == (len(st.RemoveTags) == 0) {
			return fmt.Errorf("%s: step %d needs exactly one of apply or remove_tags: %w", sc.Name, i, ErrInvalidScenario)
		}
	}
	slices.SortStableFunc(sc.Steps, func(a, b Step) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})
	return nil
}

// SourceOrTarget returns the instigating actor, the target when unset.
func (st Step) SourceOrTarget() string {
	if st.Source == "" {
		return st.Target
	}
	return st.Source
}

// Actor returns the named actor.
func (sc *Scenario) Actor(id string) (ScenarioActor, bool) {
	i := slices.IndexFunc(sc.Actors, func(a ScenarioActor) bool { return a.ID == id })
	if i < 0 {
		return ScenarioActor{}, false
	}
	return sc.Actors[i], true
}
