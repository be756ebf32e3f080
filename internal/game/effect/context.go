package effect

import (
	"github.com/google/uuid"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// ContextKind tags which payload a Context carries.
type ContextKind uint8

const (
	ContextBasic ContextKind = iota
	ContextHit
	ContextArea
)

// ContextData is the kind-specific payload of a Context. Closed set:
// HitData and AreaData.
type ContextData interface {
	Kind() ContextKind
	contextData()
}

// Vector is a world-space position or direction.
type Vector struct {
	X, Y, Z float64
}

// HitData describes the hit that caused an application.
type HitData struct {
	Location Vector
	Normal   Vector
	HitActor actor.ID
}

// Kind implements ContextData.
func (HitData) Kind() ContextKind { return ContextHit }
func (HitData) contextData()      {}

// AreaData describes an area-of-effect application.
type AreaData struct {
	Origin Vector
	Radius float64
}

// Kind implements ContextData.
func (AreaData) Kind() ContextKind { return ContextArea }
func (AreaData) contextData()      {}

// Context is who and what caused an effect application.
type Context struct {
	ID               uuid.UUID
	Instigator       actor.ID // owner of the instigating ability system
	InstigatorAvatar actor.ID
	Causer           actor.ID // the thing that physically applied it (projectile, trap)
	SourceTags       tag.Container
	Data             ContextData // nil for basic contexts
}

// NewContext stamps a context for avatar, resolving its owner.
func NewContext(r actor.IdentityResolver, avatar, causer actor.ID) Context {
	if r == nil {
		r = actor.SelfOwned{}
	}
	if !causer.IsValid() {
		causer = avatar
	}
	return Context{
		ID:               uuid.New(),
		Instigator:       r.OwnerOf(avatar),
		InstigatorAvatar: avatar,
		Causer:           causer,
	}
}

// Kind returns the payload kind.
func (c Context) Kind() ContextKind {
	if c.Data == nil {
		return ContextBasic
	}
	return c.Data.Kind()
}

// WithData returns a copy of c carrying data.
func (c Context) WithData(data ContextData) Context {
	c.Data = data
	return c
}

// Hit returns the hit payload if the context carries one.
func (c Context) Hit() (HitData, bool) {
	h, ok := c.Data.(HitData)
	return h, ok
}

// Area returns the area payload if the context carries one.
func (c Context) Area() (AreaData, bool) {
	a, ok := c.Data.(AreaData)
	return a, ok
}
