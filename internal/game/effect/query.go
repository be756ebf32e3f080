package effect

import (
	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// Query selects active effects. Empty fields match everything.
type Query struct {
	Definition    string
	Instigator    actor.ID
	OwningTagsAny tag.Container // asset or granted tags, any
	OwningTagsAll tag.Container // asset or granted tags, all
	Custom        func(ae *ActiveEffect) bool
}

// MatchAll returns a query matching every active effect.
func MatchAll() Query {
	return Query{}
}

// ByDefinition matches effects of the named definition.
func ByDefinition(name string) Query {
	return Query{Definition: name}
}

// ByOwningTags matches effects whose asset or granted tags include any of tags.
func ByOwningTags(tags ...tag.Tag) Query {
	return Query{OwningTagsAny: tag.NewContainer(tags...)}
}

// Matches reports whether ae satisfies the query.
func (q Query) Matches(ae *ActiveEffect) bool {
	def := ae.spec.Definition()
	if q.Definition != "" && def.Name != q.Definition {
		return false
	}
	if q.Instigator.IsValid() && ae.spec.Context().Instigator != q.Instigator {
		return false
	}
	if !q.OwningTagsAny.IsEmpty() || !q.OwningTagsAll.IsEmpty() {
		owning := ae.OwningTags()
		if !q.OwningTagsAny.IsEmpty() && !q.OwningTagsAny.HasAny(owning) {
			return false
		}
		if !q.OwningTagsAll.HasAll(owning) {
			return false
		}
	}
	if q.Custom != nil && !q.Custom(ae) {
		return false
	}
	return true
}
