package actor

// ID identifies an owning actor or avatar in the host world.
type ID string

// IsValid reports whether the id is set.
func (id ID) IsValid() bool {
	return id != ""
}

// IdentityResolver maps an avatar (the thing in the world) to the actor that
// owns its ability system. The host world implements it.
type IdentityResolver interface {
	OwnerOf(avatar ID) ID
}

// SelfOwned resolves every avatar to itself.
type SelfOwned struct{}

// OwnerOf returns avatar unchanged.
func (SelfOwned) OwnerOf(avatar ID) ID {
	return avatar
}

// OwnerMap is a static avatar → owner table; unknown avatars own themselves.
type OwnerMap map[ID]ID

// OwnerOf looks avatar up in the table.
func (m OwnerMap) OwnerOf(avatar ID) ID {
	if owner, ok := m[avatar]; ok {
		return owner
	}
	return avatar
}
