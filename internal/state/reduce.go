package state

import (
	"sort"

	"housekeeping-backend/internal/model"
)

// Collection is a set of snapshot collections.
type Collection uint16

const (
	Facilities Collection = 1 << iota
	Staff
	Rooms
	Bookings
	Tasks
	Items
	Transactions
	Recipes

	All = Facilities | Staff | Rooms | Bookings | Tasks | Items | Transactions | Recipes
)

// Has reports whether c includes o.
func (c Collection) Has(o Collection) bool { return c&o != 0 }

// Event is a change to the snapshot.
type Event interface {
	Touches() Collection
}

// Loaded replaces everything with a fresh read from the store.
type Loaded struct {
	Snapshot Snapshot
}

// TasksCommitted records task writes together with the room statuses they
// drove.
type TasksCommitted struct {
	Tasks []model.HousekeepingTask
	Rooms []model.Room
}

// RoomUpserted records a single room write.
type RoomUpserted struct {
	Room model.Room
}

// BookingUpserted records a booking write.
type BookingUpserted struct {
	Booking model.Booking
}

// InventoryCommitted records the outcome of one ledger operation.
type InventoryCommitted struct {
	Items        []model.InventoryItem
	Transactions []model.InventoryTransaction
	Booking      *model.Booking
	Task         *model.HousekeepingTask
}

// Op is the kind of change a feed notification reports.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// RecordChanged merges one change notification. Record holds a model value
// such as model.Room or model.Booking.
type RecordChanged struct {
	Op     Op
	Record any
}

func (Loaded) Touches() Collection          { return All }
func (TasksCommitted) Touches() Collection  { return Tasks | Rooms }
func (RoomUpserted) Touches() Collection    { return Rooms }
func (BookingUpserted) Touches() Collection { return Bookings }

func (e InventoryCommitted) Touches() Collection {
	c := Items | Transactions
	if e.Booking != nil {
		c |= Bookings
	}
	if e.Task != nil {
		c |= Tasks
	}
	return c
}

func (e RecordChanged) Touches() Collection {
	switch e.Record.(type) {
	case model.Facility:
		return Facilities
	case model.Staff:
		return Staff
	case model.Room:
		return Rooms
	case model.Booking:
		return Bookings
	case model.HousekeepingTask:
		return Tasks
	case model.InventoryItem:
		return Items
	case model.InventoryTransaction:
		return Transactions
	case model.RoomRecipe:
		return Recipes
	}
	return 0
}

// Reduce returns the revision that follows s once ev is applied. s is left
// untouched.
func Reduce(s Snapshot, ev Event) Snapshot {
	next := s
	switch e := ev.(type) {
	case Loaded:
		next = e.Snapshot
		next.Transactions = newestFirst(e.Snapshot.Transactions)
	case TasksCommitted:
		for _, t := range e.Tasks {
			next.Tasks = upsertTask(next.Tasks, t)
		}
		for _, r := range e.Rooms {
			next.Rooms = upsert(next.Rooms, r, model.Room.Key)
		}
	case RoomUpserted:
		next.Rooms = upsert(next.Rooms, e.Room, model.Room.Key)
	case BookingUpserted:
		next.Bookings = upsert(next.Bookings, e.Booking, bookingID)
	case InventoryCommitted:
		for _, it := range e.Items {
			next.Items = upsert(next.Items, it, itemID)
		}
		next.Transactions = prependTransactions(next.Transactions, e.Transactions)
		if e.Booking != nil {
			next.Bookings = upsert(next.Bookings, *e.Booking, bookingID)
		}
		if e.Task != nil {
			next.Tasks = upsertTask(next.Tasks, *e.Task)
		}
	case RecordChanged:
		next = merge(next, e)
	default:
		return s
	}
	next.Revision = s.Revision + 1
	return next
}

func merge(s Snapshot, e RecordChanged) Snapshot {
	del := e.Op == OpDelete
	switch r := e.Record.(type) {
	case model.Facility:
		s.Facilities = change(s.Facilities, r, facilityID, del)
	case model.Staff:
		s.Staff = change(s.Staff, r, staffName, del)
	case model.Room:
		s.Rooms = change(s.Rooms, r, model.Room.Key, del)
	case model.Booking:
		s.Bookings = change(s.Bookings, r, bookingID, del)
	case model.HousekeepingTask:
		if del {
			s.Tasks = remove(s.Tasks, r.ID, taskID)
		} else {
			s.Tasks = upsertTask(s.Tasks, r)
		}
	case model.InventoryItem:
		s.Items = change(s.Items, r, itemID, del)
	case model.InventoryTransaction:
		if del {
			s.Transactions = remove(s.Transactions, r.ID, txID)
		} else {
			s.Transactions = prependTransactions(remove(s.Transactions, r.ID, txID), []model.InventoryTransaction{r})
		}
	case model.RoomRecipe:
		s.Recipes = change(s.Recipes, r, recipeType, del)
	}
	return s
}

func facilityID(f model.Facility) string { return f.ID }
func staffName(s model.Staff) string { return s.Name }
func bookingID(b model.Booking) string { return b.ID }
func taskID(t model.HousekeepingTask) string { return t.ID }
func itemID(i model.InventoryItem) string { return i.ID }
func txID(t model.InventoryTransaction) string { return t.ID }
func recipeType(r model.RoomRecipe) string { return r.RoomType }

func change[T any, K comparable](list []T, v T, key func(T) K, del bool) []T {
	if del {
		return remove(list, key(v), key)
	}
	return upsert(list, v, key)
}

// upsert returns a new slice with v replacing the element of the same key,
// or appended.
func upsert[T any, K comparable](list []T, v T, key func(T) K) []T {
	k := key(v)
	out := make([]T, 0, len(list)+1)
	replaced := false
	for _, x := range list {
		if key(x) == k {
			if !replaced {
				out = append(out, v)
				replaced = true
			}
			continue
		}
		out = append(out, x)
	}
	if !replaced {
		out = append(out, v)
	}
	return out
}

func remove[T any, K comparable](list []T, k K, key func(T) K) []T {
	out := make([]T, 0, len(list))
	for _, x := range list {
		if key(x) != k {
			out = append(out, x)
		}
	}
	return out
}

// upsertTask writes t by id. An open task also retires any other open task
// for the same room, so the latest write wins.
func upsertTask(list []model.HousekeepingTask, t model.HousekeepingTask) []model.HousekeepingTask {
	out := make([]model.HousekeepingTask, 0, len(list)+1)
	for _, x := range list {
		if x.ID == t.ID {
			continue
		}
		if t.Status != model.TaskDone && x.Status != model.TaskDone && x.Key() == t.Key() {
			continue
		}
		out = append(out, x)
	}
	return append(out, t)
}

func prependTransactions(list, added []model.InventoryTransaction) []model.InventoryTransaction {
	if len(added) == 0 {
		return list
	}
	out := make([]model.InventoryTransaction, 0, len(list)+len(added))
	for i := len(added) - 1; i >= 0; i-- {
		out = append(out, added[i])
	}
	out = append(out, list...)
	if len(out) > TransactionLimit {
		out = out[:TransactionLimit]
	}
	return out
}

func newestFirst(list []model.InventoryTransaction) []model.InventoryTransaction {
	out := append([]model.InventoryTransaction(nil), list...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > TransactionLimit {
		out = out[:TransactionLimit]
	}
	return out
}
