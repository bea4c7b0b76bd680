// Package role defines participant roles within a collection and their
// authority ordering.
package role

// Role is the part a pseud plays in a collection. None is a pending or
// invited participant with no standing yet.
type Role string

const (
	None      Role = "None"
	Member    Role = "Member"
	Moderator Role = "Moderator"
	Owner     Role = "Owner"
)

// Roles lists every valid role.
var Roles = []Role{None, Member, Moderator, Owner}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case None, Member, Moderator, Owner:
		return true
	default:
		return false
	}
}

// Authority orders roles for permission checks: None < Member < Moderator < Owner.
func (r Role) Authority() int {
	switch r {
	case Owner:
		return 3
	case Moderator:
		return 2
	case Member:
		return 1
	default:
		return 0
	}
}

func (r Role) IsOwner() bool {
	return r == Owner
}

func (r Role) IsModerator() bool {
	return r == Moderator
}

// IsMaintainer reports whether r may moderate the collection (owner or moderator).
func (r Role) IsMaintainer() bool {
	return r == Owner || r == Moderator
}

func (r Role) IsMember() bool {
	return r == Member
}

// IsPosting reports whether r may post into the collection.
func (r Role) IsPosting() bool {
	return r == Member || r == Moderator || r == Owner
}

// Normalize maps an arbitrary string onto a valid role, defaulting to None.
func Normalize(raw string) Role {
	if r := Role(raw); r.Valid() {
		return r
	}
	return None
}
