// Package state holds the in-memory view of the hotel as a sequence of
// immutable revisions. Every change goes through Reduce; nothing patches a
// Snapshot in place.
package state

import (
	"context"
	"reflect"
	"sync"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
)

// TransactionLimit caps how many inventory transactions a snapshot keeps.
const TransactionLimit = 200

// Snapshot is one revision of the cached collections. Slices are shared
// between revisions and must be treated as read-only.
type Snapshot struct {
	Revision     int64
	Facilities   []model.Facility
	Staff        []model.Staff
	Rooms        []model.Room
	Bookings     []model.Booking
	Tasks        []model.HousekeepingTask
	Items        []model.InventoryItem
	Transactions []model.InventoryTransaction // Newest first
	Recipes      []model.RoomRecipe
}

// Facility looks a facility up by id.
func (s Snapshot) Facility(id string) (model.Facility, bool) {
	for _, f := range s.Facilities {
		if f.ID == id {
			return f, true
		}
	}
	return model.Facility{}, false
}

// FacilityByName looks a facility up by name.
func (s Snapshot) FacilityByName(name string) (model.Facility, bool) {
	for _, f := range s.Facilities {
		if f.Name == name {
			return f, true
		}
	}
	return model.Facility{}, false
}

// Room looks a room up by key.
func (s Snapshot) Room(key model.RoomKey) (model.Room, bool) {
	for _, r := range s.Rooms {
		if r.Key() == key {
			return r, true
		}
	}
	return model.Room{}, false
}

// Booking looks a booking up by id.
func (s Snapshot) Booking(id string) (model.Booking, bool) {
	for _, b := range s.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return model.Booking{}, false
}

// ActiveBooking returns the checked-in booking holding a room, if any.
func (s Snapshot) ActiveBooking(facilityName, roomCode string) (model.Booking, bool) {
	for _, b := range s.Bookings {
		if b.FacilityName == facilityName && b.RoomCode == roomCode && b.Status == model.BookingCheckedIn {
			return b, true
		}
	}
	return model.Booking{}, false
}

// Recipe returns the recipe for a room type.
func (s Snapshot) Recipe(roomType string) (model.RoomRecipe, bool) {
	for _, r := range s.Recipes {
		if r.RoomType == roomType {
			return r, true
		}
	}
	return model.RoomRecipe{}, false
}

// Task looks a persisted task up by id.
func (s Snapshot) Task(id string) (model.HousekeepingTask, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.HousekeepingTask{}, false
}

// Store serialises access to the current Snapshot.
type Store struct {
	mu  sync.RWMutex
	cur Snapshot
}

// NewStore starts a store at s.
func NewStore(s Snapshot) *Store {
	return &Store{cur: s}
}

// Current returns the latest revision.
func (st *Store) Current() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Apply reduces ev into the current revision and returns the result.
func (st *Store) Apply(ev Event) Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur = Reduce(st.cur, ev)
	return st.cur
}

// Mutate applies ev locally, then runs write against the backing store. When
// write fails, the records ev changed are put back to the values they had
// before, and a *errs.StaleWriteError is returned. Records other writers
// changed in the meantime are kept.
func (st *Store) Mutate(ctx context.Context, op string, ev Event, write func(ctx context.Context) error) (Snapshot, error) {
	st.mu.Lock()
	prev := st.cur
	st.cur = Reduce(prev, ev)
	next := st.cur
	st.mu.Unlock()

	if err := write(ctx); err != nil {
		st.mu.Lock()
		st.cur = restore(st.cur, prev, next, ev.Touches())
		st.mu.Unlock()
		return prev, &errs.StaleWriteError{Op: op, Err: err}
	}
	return next, nil
}

// restore undoes the difference between prev and next on top of cur, record
// by record.
func restore(cur, prev, next Snapshot, c Collection) Snapshot {
	if c.Has(Facilities) {
		cur.Facilities = revert(cur.Facilities, prev.Facilities, next.Facilities, facilityID, nil)
	}
	if c.Has(Staff) {
		cur.Staff = revert(cur.Staff, prev.Staff, next.Staff, staffName, nil)
	}
	if c.Has(Rooms) {
		cur.Rooms = revert(cur.Rooms, prev.Rooms, next.Rooms, model.Room.Key, nil)
	}
	if c.Has(Bookings) {
		cur.Bookings = revert(cur.Bookings, prev.Bookings, next.Bookings, bookingID, nil)
	}
	if c.Has(Tasks) {
		cur.Tasks = revert(cur.Tasks, prev.Tasks, next.Tasks, taskID, restoreTask)
	}
	if c.Has(Items) {
		cur.Items = revert(cur.Items, prev.Items, next.Items, itemID, nil)
	}
	if c.Has(Transactions) {
		cur.Transactions = newestFirst(revert(cur.Transactions, prev.Transactions, next.Transactions, txID, nil))
	}
	if c.Has(Recipes) {
		cur.Recipes = revert(cur.Recipes, prev.Recipes, next.Recipes, recipeType, nil)
	}
	cur.Revision++
	return cur
}

// revert finds the records that differ between prev and next and sets each
// of them in cur back to its prev value, removing those prev did not have.
// put, when set, replaces the plain upsert for restored records.
func revert[T any, K comparable](cur, prev, next []T, key func(T) K, put func([]T, T) []T) []T {
	if put == nil {
		put = func(list []T, v T) []T { return upsert(list, v, key) }
	}
	before := make(map[K]T, len(prev))
	for _, x := range prev {
		before[key(x)] = x
	}
	after := make(map[K]T, len(next))
	for _, x := range next {
		after[key(x)] = x
	}

	out := cur
	for _, x := range next {
		if _, ok := before[key(x)]; !ok {
			out = remove(out, key(x), key)
		}
	}
	for _, x := range prev {
		if y, ok := after[key(x)]; !ok || !reflect.DeepEqual(x, y) {
			out = put(out, x)
		}
	}
	if len(out) == 0 && prev == nil {
		return nil
	}
	return out
}

// restoreTask puts t back unless another writer has since opened a
// different task for the same room.
func restoreTask(list []model.HousekeepingTask, t model.HousekeepingTask) []model.HousekeepingTask {
	if t.Status != model.TaskDone {
		for _, x := range list {
			if x.ID != t.ID && x.Status != model.TaskDone && x.Key() == t.Key() {
				return list
			}
		}
	}
	return upsert(list, t, taskID)
}
