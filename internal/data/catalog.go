package data

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// ErrDuplicateEffect is returned when a catalog defines the same name twice.
var ErrDuplicateEffect = errors.New("duplicate effect definition")

// Catalog is the set of authored effect definitions, keyed by name.
// Definitions are immutable once loaded.
type Catalog struct {
	defs map[string]*effect.Definition
}

// Definition returns the named definition.
func (c *Catalog) Definition(name string) (*effect.Definition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Names returns the definition names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

type catalogDoc struct {
	Effects []effectDoc `yaml:"effects"`
}

type effectDoc struct {
	Name                  string        `yaml:"name"`
	DurationPolicy        string        `yaml:"duration_policy"`
	Duration              time.Duration `yaml:"duration"`
	Period                time.Duration `yaml:"period"`
	ExecuteOnApplication  bool          `yaml:"execute_on_application"`
	Stacking              string        `yaml:"stacking"`
	StackingType          string        `yaml:"stacking_type"`
	Chance                float64       `yaml:"chance"`
	RequireTags           []string      `yaml:"require_tags"`
	IgnoreTags            []string      `yaml:"ignore_tags"`
	GrantedTags           []string      `yaml:"granted_tags"`
	AssetTags             []string      `yaml:"asset_tags"`
	RemoveEffectsWithTags []string      `yaml:"remove_effects_with_tags"`
	Modifiers             []modifierDoc `yaml:"modifiers"`
	Cues                  []cueDoc      `yaml:"cues"`
}

type modifierDoc struct {
	Attribute string       `yaml:"attribute"`
	Op        string       `yaml:"op"`
	Magnitude magnitudeDoc `yaml:"magnitude"`
}

type magnitudeDoc struct {
	Value       *float64  `yaml:"value"`
	PerLevel    []float64 `yaml:"per_level"`
	SetByCaller string    `yaml:"set_by_caller"`
	Attribute   string    `yaml:"attribute"`
	From        string    `yaml:"from"`
	Policy      string    `yaml:"policy"`
	Coefficient *float64  `yaml:"coefficient"`
	PreAdd      float64   `yaml:"pre_add"`
	PostAdd     float64   `yaml:"post_add"`
}

type cueDoc struct {
	Tags     []string `yaml:"tags"`
	MinLevel float64  `yaml:"min_level"`
	MaxLevel float64  `yaml:"max_level"`
}

// LoadCatalog reads a YAML effect catalog. An empty path loads the built-in one.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultEffects)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a YAML effect catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	c := &Catalog{defs: make(map[string]*effect.Definition, len(doc.Effects))}
	for i, ed := range doc.Effects {
		def, err := ed.definition()
		if err != nil {
			return nil, fmt.Errorf("effect #%d %q: %w", i, ed.Name, err)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.defs[def.Name]; ok {
			return nil, fmt.Errorf("%q: %w", def.Name, ErrDuplicateEffect)
		}
		c.defs[def.Name] = def
	}

	slog.Info("loaded effect catalog", "count", len(c.defs))
	return c, nil
}

func (ed effectDoc) definition() (*effect.Definition, error) {
	policy, err := parseDurationPolicy(ed.DurationPolicy)
	if err != nil {
		return nil, err
	}
	stacking, err := parseStacking(ed.Stacking)
	if err != nil {
		return nil, err
	}
	stackType, err := parseStackingType(ed.StackingType)
	if err != nil {
		return nil, err
	}

	def := &effect.Definition{
		Name:                         ed.Name,
		DurationPolicy:               policy,
		Duration:                     ed.Duration,
		Period:                       ed.Period,
		ExecutePeriodicOnApplication: ed.ExecuteOnApplication,
		Stacking:                     stacking,
		StackingType:                 stackType,
		ChanceToApply:                ed.Chance,
		ApplicationRequirements: tag.Requirements{
			Require: tag.FromStrings(ed.RequireTags),
			Ignore:  tag.FromStrings(ed.IgnoreTags),
		},
		GrantedTags:           tag.FromStrings(ed.GrantedTags),
		AssetTags:             tag.FromStrings(ed.AssetTags),
		RemoveEffectsWithTags: tag.FromStrings(ed.RemoveEffectsWithTags),
	}

	for i, md := range ed.Modifiers {
		m, err := md.modifier()
		if err != nil {
			return nil, fmt.Errorf("modifier %d: %w", i, err)
		}
		def.Modifiers = append(def.Modifiers, m)
	}
	for _, cd := range ed.Cues {
		def.Cues = append(def.Cues, effect.CueInfo{
			Tags:     tag.FromStrings(cd.Tags),
			MinLevel: cd.MinLevel,
			MaxLevel: cd.MaxLevel,
		})
	}
	return def, nil
}

func (md modifierDoc) modifier() (effect.ModifierInfo, error) {
	op, err := parseOp(md.Op)
	if err != nil {
		return effect.ModifierInfo{}, err
	}
	mag, err := md.Magnitude.magnitude()
	if err != nil {
		return effect.ModifierInfo{}, err
	}
	return effect.ModifierInfo{
		Attribute: attribute.Attribute(md.Attribute),
		Op:        op,
		Magnitude: mag,
	}, nil
}

func (m magnitudeDoc) magnitude() (effect.Magnitude, error) {
	switch {
	case m.SetByCaller != "":
		return effect.SetByCaller{Name: m.SetByCaller}, nil
	case m.Attribute != "":
		from, err := parseDirection(m.From)
		if err != nil {
			return nil, err
		}
		policy, err := parseCopyPolicy(m.Policy)
		if err != nil {
			return nil, err
		}
		coef := 1.0
		if m.Coefficient != nil {
			coef = *m.Coefficient
		}
		return effect.AttributeBased{
			Capture:              effect.CaptureDef{Attribute: attribute.Attribute(m.Attribute), From: from, Policy: policy},
			Coefficient:          coef,
			PreMultiplyAdditive:  m.PreAdd,
			PostMultiplyAdditive: m.PostAdd,
		}, nil
	case m.Value != nil:
		return effect.ScalableFloat{Value: *m.Value, PerLevel: m.PerLevel}, nil
	default:
		return nil, errors.New("magnitude needs value, attribute or set_by_caller")
	}
}

func parseDurationPolicy(s string) (effect.DurationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "instant":
		return effect.Instant, nil
	case "has_duration", "duration":
		return effect.HasDuration, nil
	case "infinite":
		return effect.Infinite, nil
	}
	return 0, fmt.Errorf("unknown duration policy %q", s)
}

func parseStacking(s string) (effect.StackingPolicy, error) {
	switch strings.ToLower(s) {
	case "", "unlimited":
		return effect.StackUnlimited, nil
	case "highest":
		return effect.StackHighest, nil
	case "lowest":
		return effect.StackLowest, nil
	case "replaces":
		return effect.StackReplaces, nil
	}
	return 0, fmt.Errorf("unknown stacking policy %q", s)
}

func parseStackingType(s string) (effect.StackingType, error) {
	switch strings.ToLower(s) {
	case "", "source":
		return effect.StackBySource, nil
	case "target":
		return effect.StackByTarget, nil
	}
	return 0, fmt.Errorf("unknown stacking type %q", s)
}

func parseOp(s string) (attribute.Op, error) {
	switch strings.ToLower(s) {
	case "", "add":
		return attribute.OpAdd, nil
	case "multiply":
		return attribute.OpMultiply, nil
	case "divide":
		return attribute.OpDivide, nil
	case "override":
		return attribute.OpOverride, nil
	case "callback":
		return 0, errors.New("callback modifiers must be registered in code")
	}
	return 0, fmt.Errorf("unknown modifier op %q", s)
}

func parseDirection(s string) (attribute.Direction, error) {
	switch strings.ToLower(s) {
	case "", "source":
		return attribute.Outgoing, nil
	case "target":
		return attribute.Incoming, nil
	}
	return 0, fmt.Errorf("unknown capture source %q", s)
}

func parseCopyPolicy(s string) (attribute.CopyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return attribute.CopyDefault, nil
	case "snapshot":
		return attribute.CopyAlwaysSnapshot, nil
	case "link":
		return attribute.CopyAlwaysLink, nil
	}
	return 0, fmt.Errorf("unknown copy policy %q", s)
}
