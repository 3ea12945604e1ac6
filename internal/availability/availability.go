// Package availability decides whether a room is free for a stay.
package availability

import (
	"time"

	"housekeeping-backend/internal/model"
)

// Request describes a candidate stay. ExcludeBookingID lets an edited
// booking ignore its own current interval.
type Request struct {
	FacilityName     string
	RoomCode         string
	Checkin          time.Time
	Checkout         time.Time
	ExcludeBookingID string
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Conflicts returns the bookings that would collide with req.
func Conflicts(bookings []model.Booking, req Request) []model.Booking {
	var out []model.Booking
	for _, b := range bookings {
		if req.ExcludeBookingID != "" && b.ID == req.ExcludeBookingID {
			continue
		}
		if b.FacilityName != req.FacilityName || b.RoomCode != req.RoomCode {
			continue
		}
		if !b.Occupying() {
			continue
		}
		if Overlaps(req.Checkin, req.Checkout, b.CheckinTime, b.CheckoutTime) {
			out = append(out, b)
		}
	}
	return out
}

// IsAvailable reports whether no other live booking on the room overlaps req.
// The answer is only as fresh as the bookings passed in.
func IsAvailable(bookings []model.Booking, req Request) bool {
	return len(Conflicts(bookings, req)) == 0
}
