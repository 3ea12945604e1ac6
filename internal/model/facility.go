package model

import (
	"time"

	"gorm.io/datatypes"
)

// RoleHousekeeping is the staff role eligible for cleaning assignments.
const RoleHousekeeping = "housekeeping"

// Facility represents a hotel building.
type Facility struct {
	ID        string                      `gorm:"primaryKey;size:64" json:"id"`
	Name      string                      `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Roster    datatypes.JSONSlice[string] `json:"roster"` // Empty means any housekeeping staff
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Staff is a collaborator who can be assigned tasks. Name is the identity
// used as a task assignee and in facility rosters.
type Staff struct {
	Name      string    `gorm:"primaryKey;size:128" json:"name"`
	Role      string    `gorm:"size:64;not null;index" json:"role"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the collective noun.
func (Staff) TableName() string { return "staff" }

// IsHousekeeper reports whether s may receive cleaning tasks.
func (s Staff) IsHousekeeper() bool {
	return s.Active && s.Role == RoleHousekeeping
}
