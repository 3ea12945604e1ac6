package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RoomStatus is the physical cleanliness state of a room.
type RoomStatus string

const (
	RoomClean        RoomStatus = "Clean"
	RoomDirty        RoomStatus = "Dirty"
	RoomCleaning     RoomStatus = "Cleaning"
	RoomOutOfService RoomStatus = "OutOfService"
)

// Valid reports whether s is a known room status.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomClean, RoomDirty, RoomCleaning, RoomOutOfService:
		return true
	}
	return false
}

// RoomKey identifies a room across facilities.
type RoomKey struct {
	FacilityID string `json:"facility_id"`
	RoomCode   string `json:"room_code"`
}

func (k RoomKey) String() string { return fmt.Sprintf("%s/%s", k.FacilityID, k.RoomCode) }

// Room represents a bookable room inside a facility.
type Room struct {
	FacilityID string          `gorm:"primaryKey;size:64" json:"facility_id"`
	Code       string          `gorm:"primaryKey;size:32" json:"code"`
	Status     RoomStatus      `gorm:"size:32;not null" json:"status"`
	Type       string          `gorm:"size:64" json:"type"` // Recipe key
	BasePrice  decimal.Decimal `gorm:"type:decimal(20,2)" json:"base_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Key returns the room's identity.
func (r Room) Key() RoomKey { return RoomKey{FacilityID: r.FacilityID, RoomCode: r.Code} }
