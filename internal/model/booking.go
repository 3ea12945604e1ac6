package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "Confirmed"
	BookingCheckedIn  BookingStatus = "CheckedIn"
	BookingCheckedOut BookingStatus = "CheckedOut"
	BookingCancelled  BookingStatus = "Cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingConfirmed, BookingCheckedIn, BookingCheckedOut, BookingCancelled:
		return true
	}
	return false
}

// LendingLine is an item loaned to the guest for the stay.
type LendingLine struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name,omitempty"`
	Quantity int    `json:"quantity"`
}

// ServiceLine is a billable item consumed during the stay.
type ServiceLine struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
}

// Booking is a reservation of one room. Bookings are never hard-deleted.
type Booking struct {
	ID               string                           `gorm:"primaryKey;size:64" json:"id"`
	FacilityName     string                           `gorm:"size:128;not null;index:idx_booking_room,priority:1" json:"facility_name"`
	RoomCode         string                           `gorm:"size:32;not null;index:idx_booking_room,priority:2" json:"room_code"`
	GuestName        string                           `gorm:"size:256" json:"guest_name"`
	Status           BookingStatus                    `gorm:"size:32;not null;index" json:"status"`
	CheckinTime      time.Time                        `gorm:"not null" json:"checkin_time"`
	CheckoutTime     time.Time                        `gorm:"not null;index" json:"checkout_time"`
	LendingItems     datatypes.JSONSlice[LendingLine] `json:"lending_items"`
	ServicesConsumed datatypes.JSONSlice[ServiceLine] `json:"services_consumed"`
	RoomCharge       decimal.Decimal                  `gorm:"type:decimal(20,2)" json:"room_charge"`
	PaidAmount       decimal.Decimal                  `gorm:"type:decimal(20,2)" json:"paid_amount"`
	TotalRevenue     decimal.Decimal                  `gorm:"type:decimal(20,2)" json:"total_revenue"`
	RemainingAmount  decimal.Decimal                  `gorm:"type:decimal(20,2)" json:"remaining_amount"`
	CreatedAt        time.Time                        `json:"created_at"`
	UpdatedAt        time.Time                        `json:"updated_at"`
}

// Occupying reports whether the booking still holds its room.
func (b Booking) Occupying() bool {
	return b.Status != BookingCancelled && b.Status != BookingCheckedOut
}

// RecomputeTotals derives TotalRevenue and RemainingAmount from the room
// charge, the consumed services and the amount already paid.
func (b *Booking) RecomputeTotals() {
	total := b.RoomCharge
	for _, s := range b.ServicesConsumed {
		total = total.Add(s.Total)
	}
	b.TotalRevenue = total
	b.RemainingAmount = total.Sub(b.PaidAmount)
}
