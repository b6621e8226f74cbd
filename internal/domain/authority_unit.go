package domain

import "time"

// AuthorityUnit models a responding organization or team.
type AuthorityUnit struct {
	ID        string
	ProfileID *string
	Name      string
	ZoneID    *string
	Active    bool
	Meta      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
