// Package booking writes reservations after checking room availability.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"housekeeping-backend/internal/availability"
	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/state"
)

// Store is the persistence the service needs.
type Store interface {
	CreateBooking(ctx context.Context, b model.Booking) error
	UpdateBooking(ctx context.Context, b model.Booking) error
	UpsertRoom(ctx context.Context, room model.Room) error
}

// Announcer forwards committed changes to other sessions.
type Announcer interface {
	Announce(ctx context.Context, ev state.Event)
}

// Service creates and edits bookings.
type Service struct {
	mu        sync.Locker
	state     *state.Store
	store     Store
	announcer Announcer

	now   func() time.Time
	newID func() string
}

// NewService creates a booking service.
func NewService(st *state.Store, s Store) *Service {
	return &Service{mu: &sync.Mutex{}, state: st, store: s, now: time.Now, newID: uuid.NewString}
}

// SetAnnouncer enables change announcements.
func (s *Service) SetAnnouncer(a Announcer) { s.announcer = a }

// SetLocker makes Update share l with the writers that bill and lend
// against a booking, so an edit never drops their lines.
func (s *Service) SetLocker(l sync.Locker) { s.mu = l }

// Availability checks req against the cached bookings and returns the
// bookings in the way.
func (s *Service) Availability(req availability.Request) (bool, []model.Booking) {
	clash := availability.Conflicts(s.state.Current().Bookings, req)
	return len(clash) == 0, clash
}

// Create stores a new booking. The room must exist and be free for the stay.
func (s *Service) Create(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.ID == "" {
		b.ID = s.newID()
	}
	if b.Status == "" {
		b.Status = model.BookingConfirmed
	}
	if err := s.check(b); err != nil {
		return model.Booking{}, err
	}
	now := s.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.RecomputeTotals()

	if _, err := s.state.Mutate(ctx, "create booking", state.BookingUpserted{Booking: b}, func(ctx context.Context) error {
		return s.store.CreateBooking(ctx, b)
	}); err != nil {
		log.Printf("Error: create booking %s failed: %v", b.ID, err)
		return model.Booking{}, unwrapConflict(err)
	}
	log.Printf("Booking %s created for %s/%s", b.ID, b.FacilityName, b.RoomCode)
	s.announce(ctx, state.BookingUpserted{Booking: b})
	return b, nil
}

// Update replaces the editable fields of booking id. Lending and consumed
// services are kept; they change through the inventory service. Checking a
// guest out leaves the room dirty.
func (s *Service) Update(ctx context.Context, id string, b model.Booking) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.state.Current().Booking(id)
	if !ok {
		return model.Booking{}, errs.NotFound("booking", id)
	}
	b.ID = id
	if b.Status == "" {
		b.Status = prev.Status
	}
	if err := s.check(b); err != nil {
		return model.Booking{}, err
	}
	b.LendingItems = prev.LendingItems
	b.ServicesConsumed = prev.ServicesConsumed
	b.CreatedAt = prev.CreatedAt
	b.UpdatedAt = s.now()
	b.RecomputeTotals()

	if _, err := s.state.Mutate(ctx, "update booking", state.BookingUpserted{Booking: b}, func(ctx context.Context) error {
		return s.store.UpdateBooking(ctx, b)
	}); err != nil {
		log.Printf("Error: update booking %s failed: %v", b.ID, err)
		return model.Booking{}, unwrapConflict(err)
	}
	s.announce(ctx, state.BookingUpserted{Booking: b})

	if prev.Status != model.BookingCheckedOut && b.Status == model.BookingCheckedOut {
		if err := s.dirtyRoom(ctx, b); err != nil {
			log.Printf("Warning: booking %s checked out but room status not updated: %v", b.ID, err)
		}
	}
	return b, nil
}

func (s *Service) dirtyRoom(ctx context.Context, b model.Booking) error {
	snap := s.state.Current()
	f, ok := snap.FacilityByName(b.FacilityName)
	if !ok {
		return errs.NotFound("facility", b.FacilityName)
	}
	room, ok := snap.Room(model.RoomKey{FacilityID: f.ID, RoomCode: b.RoomCode})
	if !ok || room.Status == model.RoomDirty || room.Status == model.RoomOutOfService {
		return nil
	}
	room.Status = model.RoomDirty
	room.UpdatedAt = s.now()
	ev := state.RoomUpserted{Room: room}
	if _, err := s.state.Mutate(ctx, "mark room dirty", ev, func(ctx context.Context) error {
		return s.store.UpsertRoom(ctx, room)
	}); err != nil {
		return err
	}
	s.announce(ctx, ev)
	return nil
}

func (s *Service) check(b model.Booking) error {
	if strings.TrimSpace(b.FacilityName) == "" {
		return errs.Validation("facility_name", "is required")
	}
	if strings.TrimSpace(b.RoomCode) == "" {
		return errs.Validation("room_code", "is required")
	}
	if !b.Status.Valid() {
		return errs.Validation("status", "unknown booking status %q", b.Status)
	}
	if b.CheckinTime.IsZero() || b.CheckoutTime.IsZero() {
		return errs.Validation("checkin_time", "checkin and checkout times are required")
	}
	if !b.CheckinTime.Before(b.CheckoutTime) {
		return errs.Validation("checkout_time", "must be after checkin_time")
	}
	if b.RoomCharge.IsNegative() || b.PaidAmount.IsNegative() {
		return errs.Validation("room_charge", "amounts must not be negative")
	}

	snap := s.state.Current()
	f, ok := snap.FacilityByName(b.FacilityName)
	if !ok {
		return errs.NotFound("facility", b.FacilityName)
	}
	if _, ok := snap.Room(model.RoomKey{FacilityID: f.ID, RoomCode: b.RoomCode}); !ok {
		return errs.NotFound("room", fmt.Sprintf("%s/%s", b.FacilityName, b.RoomCode))
	}
	if !b.Occupying() {
		return nil
	}
	clash := availability.Conflicts(snap.Bookings, availability.Request{
		FacilityName:     b.FacilityName,
		RoomCode:         b.RoomCode,
		Checkin:          b.CheckinTime,
		Checkout:         b.CheckoutTime,
		ExcludeBookingID: b.ID,
	})
	if len(clash) > 0 {
		return &errs.ConflictError{Reason: fmt.Sprintf("room %s in %s is already booked by %s", b.RoomCode, b.FacilityName, clash[0].ID)}
	}
	return nil
}

// unwrapConflict surfaces a refusal by the store directly; the local change
// has been reverted either way.
func unwrapConflict(err error) error {
	var (
		conflict *errs.ConflictError
		notFound *errs.NotFoundError
	)
	switch {
	case errors.As(err, &conflict):
		return conflict
	case errors.As(err, &notFound):
		return notFound
	}
	return err
}

func (s *Service) announce(ctx context.Context, ev state.Event) {
	if s.announcer != nil {
		s.announcer.Announce(ctx, ev)
	}
}
