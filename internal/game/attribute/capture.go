package attribute

// CopyPolicy decides whether a capture links to the aggregator or snapshots it.
type CopyPolicy uint8

const (
	// CopyDefault snapshots outgoing (source) captures and links incoming (target) ones.
	CopyDefault CopyPolicy = iota
	CopyAlwaysSnapshot
	CopyAlwaysLink
)

// Direction is the side of the application an attribute is captured from.
type Direction uint8

const (
	Outgoing Direction = iota // source / instigator
	Incoming                  // target
)

// Captured is an attribute value captured into a spec.
// A linked capture reads its aggregator on every Value call; a snapshot is frozen.
type Captured struct {
	attr   Attribute
	agg    *Aggregator
	value  float64
	linked bool
}

// Capture captures agg according to policy and direction.
func Capture(agg *Aggregator, policy CopyPolicy, dir Direction) Captured {
	var linked bool
	switch policy {
	case CopyAlwaysLink:
		linked = true
	case CopyAlwaysSnapshot:
	default:
		linked = dir == Incoming
	}

	c := Captured{attr: agg.Attribute(), linked: linked}
	if linked {
		c.agg = agg
	} else {
		c.value = agg.Evaluate()
	}
	return c
}

// Snapshot freezes a value directly, e.g. when restoring a replicated spec.
func Snapshot(attr Attribute, value float64) Captured {
	return Captured{attr: attr, value: value}
}

// Attribute returns the captured attribute.
func (c Captured) Attribute() Attribute {
	return c.attr
}

// IsLinked reports whether the capture follows its aggregator.
func (c Captured) IsLinked() bool {
	return c.linked
}

// Aggregator returns the linked aggregator, or nil for snapshots.
func (c Captured) Aggregator() *Aggregator {
	return c.agg
}

// Value returns the captured value.
func (c Captured) Value() float64 {
	if c.linked && c.agg != nil {
		return c.agg.Evaluate()
	}
	return c.value
}
