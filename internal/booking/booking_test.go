package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"housekeeping-backend/internal/availability"
	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/state"
)

type fakeStore struct {
	err     error
	created []model.Booking
	updated []model.Booking
	rooms   []model.Room
}

func (f *fakeStore) CreateBooking(ctx context.Context, b model.Booking) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, b)
	return nil
}

func (f *fakeStore) UpdateBooking(ctx context.Context, b model.Booking) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, b)
	return nil
}

func (f *fakeStore) UpsertRoom(ctx context.Context, room model.Room) error {
	f.rooms = append(f.rooms, room)
	return nil
}

func day(d, hour int) time.Time {
	return time.Date(2026, 10, d, hour, 0, 0, 0, time.UTC)
}

func fixture() state.Snapshot {
	return state.Snapshot{
		Facilities: []model.Facility{{ID: "f1", Name: "Riverside"}},
		Rooms: []model.Room{
			{FacilityID: "f1", Code: "101", Status: model.RoomClean},
			{FacilityID: "f1", Code: "102", Status: model.RoomClean},
		},
		Bookings: []model.Booking{{
			ID: "b1", FacilityName: "Riverside", RoomCode: "101", Status: model.BookingCheckedIn,
			CheckinTime: day(18, 14), CheckoutTime: day(21, 12),
			LendingItems: datatypes.JSONSlice[model.LendingLine]{{ItemID: "robe", Quantity: 1}},
			RoomCharge:   decimal.NewFromInt(900000),
		}},
	}
}

func newTestService() (*Service, *state.Store, *fakeStore) {
	st := state.NewStore(fixture())
	fs := &fakeStore{}
	s := NewService(st, fs)
	s.now = func() time.Time { return day(19, 9) }
	s.newID = func() string { return "b-new" }
	return s, st, fs
}

func TestCreate(t *testing.T) {
	testCases := []struct {
		name    string
		booking model.Booking
		check   func(t *testing.T, got model.Booking, err error)
	}{
		{
			name: "Touching stays do not clash",
			booking: model.Booking{FacilityName: "Riverside", RoomCode: "101", CheckinTime: day(21, 12), CheckoutTime: day(23, 12),
				RoomCharge: decimal.NewFromInt(600000), PaidAmount: decimal.NewFromInt(200000)},
			check: func(t *testing.T, got model.Booking, err error) {
				require.NoError(t, err)
				assert.Equal(t, "b-new", got.ID)
				assert.Equal(t, model.BookingConfirmed, got.Status)
				assert.True(t, decimal.NewFromInt(400000).Equal(got.RemainingAmount))
			},
		},
		{
			name:    "Overlap is a conflict",
			booking: model.Booking{FacilityName: "Riverside", RoomCode: "101", CheckinTime: day(20, 14), CheckoutTime: day(22, 12)},
			check: func(t *testing.T, got model.Booking, err error) {
				var conflict *errs.ConflictError
				assert.True(t, errors.As(err, &conflict))
			},
		},
		{
			name:    "Cancelled bookings never clash",
			booking: model.Booking{FacilityName: "Riverside", RoomCode: "101", Status: model.BookingCancelled, CheckinTime: day(20, 14), CheckoutTime: day(22, 12)},
			check: func(t *testing.T, got model.Booking, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:    "Checkout must follow checkin",
			booking: model.Booking{FacilityName: "Riverside", RoomCode: "102", CheckinTime: day(22, 14), CheckoutTime: day(22, 12)},
			check: func(t *testing.T, got model.Booking, err error) {
				var verr *errs.ValidationError
				assert.True(t, errors.As(err, &verr))
			},
		},
		{
			name:    "Unknown room",
			booking: model.Booking{FacilityName: "Riverside", RoomCode: "999", CheckinTime: day(22, 14), CheckoutTime: day(23, 12)},
			check: func(t *testing.T, got model.Booking, err error) {
				var nf *errs.NotFoundError
				assert.True(t, errors.As(err, &nf))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestService()
			got, err := s.Create(context.Background(), tc.booking)
			tc.check(t, got, err)
		})
	}
}

func TestCreateStoreConflictIsReverted(t *testing.T) {
	s, st, fs := newTestService()
	fs.err = &errs.ConflictError{Reason: "exclusion constraint"}

	_, err := s.Create(context.Background(), model.Booking{FacilityName: "Riverside", RoomCode: "102", CheckinTime: day(22, 14), CheckoutTime: day(23, 12)})

	var conflict *errs.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Len(t, st.Current().Bookings, 1)
}

func TestUpdateKeepsInventoryFields(t *testing.T) {
	s, st, fs := newTestService()

	got, err := s.Update(context.Background(), "b1", model.Booking{
		FacilityName: "Riverside", RoomCode: "101", GuestName: "Tran",
		CheckinTime: day(18, 14), CheckoutTime: day(22, 12),
		RoomCharge: decimal.NewFromInt(1200000),
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingCheckedIn, got.Status)
	assert.Len(t, got.LendingItems, 1)
	require.Len(t, fs.updated, 1)
	b, _ := st.Current().Booking("b1")
	assert.Equal(t, "Tran", b.GuestName)
	assert.Empty(t, fs.rooms)
}

func TestUpdateSeesBillsWrittenWhileWaiting(t *testing.T) {
	s, st, fs := newTestService()
	var shared sync.Mutex
	s.SetLocker(&shared)

	shared.Lock()
	done := make(chan model.Booking)
	go func() {
		got, err := s.Update(context.Background(), "b1", model.Booking{
			FacilityName: "Riverside", RoomCode: "101", GuestName: "Tran",
			CheckinTime: day(18, 14), CheckoutTime: day(22, 12),
			RoomCharge: decimal.NewFromInt(900000),
		})
		assert.NoError(t, err)
		done <- got
	}()

	b, _ := st.Current().Booking("b1")
	b.ServicesConsumed = append(b.ServicesConsumed, model.ServiceLine{
		ItemID: "coke", Name: "Coke", Quantity: 2,
		Price: decimal.NewFromInt(15000), Total: decimal.NewFromInt(30000),
	})
	b.RecomputeTotals()
	st.Apply(state.BookingUpserted{Booking: b})
	shared.Unlock()

	got := <-done
	require.Len(t, got.ServicesConsumed, 1)
	assert.Equal(t, "coke", got.ServicesConsumed[0].ItemID)
	assert.True(t, decimal.NewFromInt(930000).Equal(got.TotalRevenue))
	require.Len(t, fs.updated, 1)
	assert.Len(t, fs.updated[0].ServicesConsumed, 1)
}

func TestCheckoutDirtiesRoom(t *testing.T) {
	s, st, fs := newTestService()

	_, err := s.Update(context.Background(), "b1", model.Booking{
		FacilityName: "Riverside", RoomCode: "101", Status: model.BookingCheckedOut,
		CheckinTime: day(18, 14), CheckoutTime: day(19, 9),
	})
	require.NoError(t, err)

	require.Len(t, fs.rooms, 1)
	room, _ := st.Current().Room(model.RoomKey{FacilityID: "f1", RoomCode: "101"})
	assert.Equal(t, model.RoomDirty, room.Status)

	ok, _ := s.Availability(availability.Request{FacilityName: "Riverside", RoomCode: "101", Checkin: day(19, 14), Checkout: day(20, 12)})
	assert.True(t, ok, "a checked-out stay frees the room")
}

func TestUpdateUnknownBooking(t *testing.T) {
	s, _, _ := newTestService()
	_, err := s.Update(context.Background(), "nope", model.Booking{})
	var nf *errs.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestAvailability(t *testing.T) {
	s, _, _ := newTestService()

	ok, clash := s.Availability(availability.Request{FacilityName: "Riverside", RoomCode: "101", Checkin: day(20, 14), Checkout: day(21, 12)})
	assert.False(t, ok)
	require.Len(t, clash, 1)
	assert.Equal(t, "b1", clash[0].ID)

	ok, _ = s.Availability(availability.Request{FacilityName: "Riverside", RoomCode: "101", Checkin: day(20, 14), Checkout: day(21, 12), ExcludeBookingID: "b1"})
	assert.True(t, ok)
}
