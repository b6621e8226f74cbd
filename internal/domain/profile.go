package domain

import "time"

// Role enumerates caller roles supplied by the identity boundary.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAuthority, RoleAdmin:
		return true
	default:
		return false
	}
}

// Profile is the domain model for registered users.
type Profile struct {
	ID           string
	FullName     string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor identifies who performs an engine operation. A zero Actor (empty
// ProfileID) represents the system, e.g. the SLA sweep.
type Actor struct {
	ProfileID string
	Role      Role
}

// System reports whether the actor is the engine itself.
func (a Actor) System() bool {
	return a.ProfileID == ""
}

// SystemActor is used for sweep-generated transitions.
func SystemActor() Actor {
	return Actor{}
}
