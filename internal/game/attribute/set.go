package attribute

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrMissingAttributeSet is returned when no attribute set backs an attribute.
var ErrMissingAttributeSet = errors.New("missing attribute set")

// Attribute names a numeric gameplay stat, e.g. "Health".
type Attribute string

// Set owns the values of a fixed group of attributes, one aggregator each.
// Exclusively owned by one component.
type Set struct {
	name  string
	order []Attribute
	aggs  map[Attribute]*Aggregator
}

// NewSet creates a set for the given attributes, all with base 0.
func NewSet(name string, attrs ...Attribute) *Set {
	s := &Set{
		name:  name,
		order: make([]Attribute, 0, len(attrs)),
		aggs:  make(map[Attribute]*Aggregator, len(attrs)),
	}
	for _, a := range attrs {
		if _, ok := s.aggs[a]; ok {
			continue
		}
		s.order = append(s.order, a)
		s.aggs[a] = NewAggregator(a, 0)
	}
	return s
}

// NewSetFromTable creates a set whose attributes and base values come from a
// data table row. Attribute order is alphabetical.
func NewSetFromTable(name string, defaults map[Attribute]float64) *Set {
	attrs := slices.Sorted(maps.Keys(defaults))
	s := NewSet(name, attrs...)
	for a, v := range defaults {
		s.aggs[a].SetBase(v)
	}
	return s
}

// Name returns the set name.
func (s *Set) Name() string {
	return s.name
}

// Attributes returns the attributes in declaration order.
func (s *Set) Attributes() []Attribute {
	return slices.Clone(s.order)
}

// Has reports whether the set backs attr.
func (s *Set) Has(attr Attribute) bool {
	_, ok := s.aggs[attr]
	return ok
}

// Aggregator returns the aggregator backing attr.
func (s *Set) Aggregator(attr Attribute) (*Aggregator, error) {
	agg, ok := s.aggs[attr]
	if !ok {
		return nil, fmt.Errorf("attribute %q in set %q: %w", attr, s.name, ErrMissingAttributeSet)
	}
	return agg, nil
}

// GetNumericAttribute returns the current (aggregated) value of attr.
func (s *Set) GetNumericAttribute(attr Attribute) (float64, error) {
	agg, err := s.Aggregator(attr)
	if err != nil {
		return 0, err
	}
	return agg.Evaluate(), nil
}

// GetBaseValue returns the base value of attr.
func (s *Set) GetBaseValue(attr Attribute) (float64, error) {
	agg, err := s.Aggregator(attr)
	if err != nil {
		return 0, err
	}
	return agg.Base(), nil
}

// SetNumericAttribute overrides the base value of attr, bypassing modifiers.
// Live contributions are recombined on top at the next read.
func (s *Set) SetNumericAttribute(attr Attribute, value float64) error {
	agg, err := s.Aggregator(attr)
	if err != nil {
		return err
	}
	agg.SetBase(value)
	return nil
}

// Snapshot returns the base values of all attributes.
func (s *Set) Snapshot() map[Attribute]float64 {
	out := make(map[Attribute]float64, len(s.aggs))
	for a, agg := range s.aggs {
		out[a] = agg.Base()
	}
	return out
}

// Restore overwrites base values from a snapshot. Unknown attributes are
// skipped and reported in the returned slice.
func (s *Set) Restore(values map[Attribute]float64) []Attribute {
	var unknown []Attribute
	for _, a := range slices.Sorted(maps.Keys(values)) {
		agg, ok := s.aggs[a]
		if !ok {
			unknown = append(unknown, a)
			continue
		}
		agg.SetBase(values[a])
	}
	return unknown
}
