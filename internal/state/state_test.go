package state

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
)

func seed() Snapshot {
	return Snapshot{
		Rooms: []model.Room{
			{FacilityID: "f1", Code: "101", Status: model.RoomDirty},
			{FacilityID: "f1", Code: "102", Status: model.RoomClean},
		},
		Tasks: []model.HousekeepingTask{
			{ID: "old", FacilityID: "f1", RoomCode: "101", Status: model.TaskPending},
			{ID: "done", FacilityID: "f1", RoomCode: "101", Status: model.TaskDone},
		},
		Bookings: []model.Booking{{ID: "b1", FacilityName: "Riverside", RoomCode: "102", Status: model.BookingCheckedIn}},
	}
}

func TestReduceTasksCommitted(t *testing.T) {
	s := seed()
	next := Reduce(s, TasksCommitted{
		Tasks: []model.HousekeepingTask{{ID: "new", FacilityID: "f1", RoomCode: "101", Status: model.TaskInProgress}},
		Rooms: []model.Room{{FacilityID: "f1", Code: "101", Status: model.RoomCleaning}},
	})

	assert.Equal(t, int64(1), next.Revision)
	ids := []string{}
	for _, tk := range next.Tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"done", "new"}, ids, "the open task for the room is replaced")

	room, _ := next.Room(model.RoomKey{FacilityID: "f1", RoomCode: "101"})
	assert.Equal(t, model.RoomCleaning, room.Status)

	assert.Len(t, s.Tasks, 2, "the previous revision is untouched")
	assert.Equal(t, model.RoomDirty, s.Rooms[0].Status)
}

func TestReduceRecordChanged(t *testing.T) {
	s := seed()

	s = Reduce(s, RecordChanged{Op: OpUpdate, Record: model.Booking{ID: "b1", Status: model.BookingCheckedOut}})
	b, ok := s.Booking("b1")
	require.True(t, ok)
	assert.Equal(t, model.BookingCheckedOut, b.Status)
	assert.Len(t, s.Bookings, 1)

	s = Reduce(s, RecordChanged{Op: OpInsert, Record: model.Room{FacilityID: "f1", Code: "103", Status: model.RoomClean}})
	assert.Len(t, s.Rooms, 3)

	s = Reduce(s, RecordChanged{Op: OpDelete, Record: model.HousekeepingTask{ID: "old"}})
	_, ok = s.Task("old")
	assert.False(t, ok)
	assert.Len(t, s.Tasks, 1)

	before := s.Revision
	assert.Equal(t, Collection(0), RecordChanged{Record: "bogus"}.Touches())
	s = Reduce(s, RecordChanged{Op: OpInsert, Record: "bogus"})
	assert.Equal(t, before+1, s.Revision)
}

func TestTransactionsKeepNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	var txs []model.InventoryTransaction
	for i := 0; i < TransactionLimit+10; i++ {
		txs = append(txs, model.InventoryTransaction{ID: fmt.Sprintf("t%03d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	s := Reduce(Snapshot{}, Loaded{Snapshot: Snapshot{Transactions: txs}})
	require.Len(t, s.Transactions, TransactionLimit)
	assert.Equal(t, "t209", s.Transactions[0].ID)

	s = Reduce(s, InventoryCommitted{Transactions: []model.InventoryTransaction{{ID: "a"}, {ID: "b"}}})
	require.Len(t, s.Transactions, TransactionLimit)
	assert.Equal(t, "b", s.Transactions[0].ID)
	assert.Equal(t, "a", s.Transactions[1].ID)
}

func TestMutateRollsBack(t *testing.T) {
	st := NewStore(seed())
	prev := st.Current()
	boom := errors.New("connection reset")

	_, err := st.Mutate(context.Background(), "assign task", TasksCommitted{
		Tasks: []model.HousekeepingTask{{ID: "new", FacilityID: "f1", RoomCode: "101", Status: model.TaskInProgress}},
		Rooms: []model.Room{{FacilityID: "f1", Code: "101", Status: model.RoomCleaning}},
	}, func(ctx context.Context) error {
		during := st.Current()
		_, ok := during.Task("new")
		assert.True(t, ok, "local state is updated before the write")
		return boom
	})

	var stale *errs.StaleWriteError
	require.True(t, errors.As(err, &stale))
	assert.ErrorIs(t, err, boom)

	cur := st.Current()
	assert.ElementsMatch(t, prev.Tasks, cur.Tasks)
	assert.Equal(t, prev.Rooms, cur.Rooms)
	assert.Greater(t, cur.Revision, prev.Revision)
}

func TestMutateKeepsUnrelatedChanges(t *testing.T) {
	st := NewStore(seed())

	_, err := st.Mutate(context.Background(), "update room", RoomUpserted{Room: model.Room{FacilityID: "f1", Code: "102", Status: model.RoomDirty}}, func(ctx context.Context) error {
		st.Apply(BookingUpserted{Booking: model.Booking{ID: "b2", FacilityName: "Riverside", RoomCode: "101"}})
		return errors.New("timeout")
	})
	require.Error(t, err)

	cur := st.Current()
	room, _ := cur.Room(model.RoomKey{FacilityID: "f1", RoomCode: "102"})
	assert.Equal(t, model.RoomClean, room.Status)
	_, ok := cur.Booking("b2")
	assert.True(t, ok, "bookings were not part of the failed write")
}

func TestMutateKeepsConcurrentCommitToSameCollection(t *testing.T) {
	st := NewStore(seed())
	ctx := context.Background()

	_, err := st.Mutate(ctx, "assign task", TasksCommitted{
		Tasks: []model.HousekeepingTask{{ID: "a", FacilityID: "f1", RoomCode: "101", Status: model.TaskInProgress}},
		Rooms: []model.Room{{FacilityID: "f1", Code: "101", Status: model.RoomCleaning}},
	}, func(ctx context.Context) error {
		_, err := st.Mutate(ctx, "assign task", TasksCommitted{
			Tasks: []model.HousekeepingTask{{ID: "b", FacilityID: "f1", RoomCode: "102", Status: model.TaskPending}},
			Rooms: []model.Room{{FacilityID: "f1", Code: "102", Status: model.RoomDirty}},
		}, func(ctx context.Context) error { return nil })
		require.NoError(t, err)
		return errors.New("deadlock detected")
	})
	require.Error(t, err)

	cur := st.Current()
	_, ok := cur.Task("b")
	assert.True(t, ok, "the other commit survives the rollback")
	_, ok = cur.Task("a")
	assert.False(t, ok)
	old, ok := cur.Task("old")
	require.True(t, ok)
	assert.Equal(t, model.TaskPending, old.Status)

	room101, _ := cur.Room(model.RoomKey{FacilityID: "f1", RoomCode: "101"})
	assert.Equal(t, model.RoomDirty, room101.Status)
	room102, _ := cur.Room(model.RoomKey{FacilityID: "f1", RoomCode: "102"})
	assert.Equal(t, model.RoomDirty, room102.Status)
}

func TestMutateRollbackYieldsToNewerOpenTask(t *testing.T) {
	st := NewStore(seed())
	ctx := context.Background()

	_, err := st.Mutate(ctx, "assign task", TasksCommitted{
		Tasks: []model.HousekeepingTask{{ID: "a", FacilityID: "f1", RoomCode: "101", Status: model.TaskInProgress}},
	}, func(ctx context.Context) error {
		_, err := st.Mutate(ctx, "assign task", TasksCommitted{
			Tasks: []model.HousekeepingTask{{ID: "b", FacilityID: "f1", RoomCode: "101", Status: model.TaskPending}},
		}, func(ctx context.Context) error { return nil })
		require.NoError(t, err)
		return errors.New("deadlock detected")
	})
	require.Error(t, err)

	open := 0
	for _, task := range st.Current().Tasks {
		if task.Status != model.TaskDone && task.RoomCode == "101" {
			open++
			assert.Equal(t, "b", task.ID)
		}
	}
	assert.Equal(t, 1, open)
}

func TestMutateSuccess(t *testing.T) {
	st := NewStore(seed())

	next, err := st.Mutate(context.Background(), "update room", RoomUpserted{Room: model.Room{FacilityID: "f1", Code: "102", Status: model.RoomOutOfService}}, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, next, st.Current())
	room, _ := next.Room(model.RoomKey{FacilityID: "f1", RoomCode: "102"})
	assert.Equal(t, model.RoomOutOfService, room.Status)
}
