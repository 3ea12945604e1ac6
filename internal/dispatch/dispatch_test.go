package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/parse"
	"housekeeping-backend/internal/state"
	"housekeeping-backend/internal/worklist"
)

var loc = time.FixedZone("ICT", 7*3600)

const today parse.Day = "2026-10-19"

type fakeWriter struct {
	mu    sync.Mutex
	err   error
	calls [][]model.HousekeepingTask
	rooms [][]model.Room
}

func (f *fakeWriter) CommitTasks(ctx context.Context, tasks []model.HousekeepingTask, rooms []model.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, tasks)
	f.rooms = append(f.rooms, rooms)
	return nil
}

func (f *fakeWriter) UpsertRoom(ctx context.Context, room model.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rooms = append(f.rooms, []model.Room{room})
	return nil
}

type sent struct{ staff, room string }

type fakeNotifier struct{ sent []sent }

func (f *fakeNotifier) NotifyAssignment(staffName string, task model.HousekeepingTask, facilityName string) {
	f.sent = append(f.sent, sent{staff: staffName, room: task.RoomCode})
}

type fakeAnnouncer struct{ events []state.Event }

func (f *fakeAnnouncer) Announce(ctx context.Context, ev state.Event) { f.events = append(f.events, ev) }

func at(day parse.Day, hour int) time.Time {
	return day.Start(loc).Add(time.Duration(hour) * time.Hour)
}

func fixture() state.Snapshot {
	return state.Snapshot{
		Facilities: []model.Facility{{ID: "f1", Name: "Riverside", Roster: datatypes.JSONSlice[string]{"Lan", "Mai"}}},
		Staff: []model.Staff{
			{Name: "Lan", Role: model.RoleHousekeeping, Active: true},
			{Name: "Mai", Role: model.RoleHousekeeping, Active: true},
		},
		Rooms: []model.Room{
			{FacilityID: "f1", Code: "101", Status: model.RoomDirty},
			{FacilityID: "f1", Code: "102", Status: model.RoomClean},
			{FacilityID: "f1", Code: "103", Status: model.RoomClean},
		},
		Bookings: []model.Booking{
			{ID: "b2", FacilityName: "Riverside", RoomCode: "102", Status: model.BookingCheckedIn, CheckinTime: at("2026-10-17", 14), CheckoutTime: at("2026-10-22", 12)},
			{ID: "b3", FacilityName: "Riverside", RoomCode: "103", Status: model.BookingCheckedIn, CheckinTime: at("2026-10-17", 14), CheckoutTime: at(today, 12)},
		},
	}
}

func newTestService(snap state.Snapshot) (*Service, *state.Store, *fakeWriter) {
	st := state.NewStore(snap)
	w := &fakeWriter{}
	s := NewService(st, w, loc)
	s.now = func() time.Time { return at(today, 10) }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}
	return s, st, w
}

func key(room string) model.RoomKey { return model.RoomKey{FacilityID: "f1", RoomCode: room} }

func TestNextRoomStatus(t *testing.T) {
	testCases := []struct {
		name     string
		prev     model.RoomStatus
		task     model.TaskStatus
		expected model.RoomStatus
	}{
		{name: "Done cleans", prev: model.RoomCleaning, task: model.TaskDone, expected: model.RoomClean},
		{name: "In progress means cleaning", prev: model.RoomDirty, task: model.TaskInProgress, expected: model.RoomCleaning},
		{name: "Reopening a clean room dirties it", prev: model.RoomClean, task: model.TaskPending, expected: model.RoomDirty},
		{name: "Pending on a dirty room keeps it", prev: model.RoomDirty, task: model.TaskPending, expected: model.RoomDirty},
		{name: "Pending on a room being cleaned keeps it", prev: model.RoomCleaning, task: model.TaskPending, expected: model.RoomCleaning},
		{name: "Out of service stays out when pending", prev: model.RoomOutOfService, task: model.TaskPending, expected: model.RoomOutOfService},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NextRoomStatus(tc.prev, tc.task))
		})
	}
}

func TestUpdatePromotesVirtualEntry(t *testing.T) {
	s, st, w := newTestService(fixture())
	n := &fakeNotifier{}
	a := &fakeAnnouncer{}
	s.SetNotifier(n)
	s.SetAnnouncer(a)

	before, err := s.Entry(today, key("101"))
	require.NoError(t, err)
	require.Equal(t, worklist.Virtual, before.Ref.Kind)

	lan := "Lan"
	task, err := s.Update(context.Background(), today, key("101"), Mutation{Assignee: &lan})
	require.NoError(t, err)

	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, model.TaskDirty, task.TaskType)
	assert.Equal(t, "101", task.RoomCode)
	assert.Equal(t, model.TaskInProgress, task.Status, "assigning starts the job")
	assert.Equal(t, 2, task.Points)
	assert.Equal(t, at(today, 10), task.CreatedAt)

	require.Len(t, w.calls, 1)
	require.Len(t, w.rooms[0], 1)
	assert.Equal(t, model.RoomCleaning, w.rooms[0][0].Status)

	after, err := s.Entry(today, key("101"))
	require.NoError(t, err)
	assert.Equal(t, worklist.Persisted, after.Ref.Kind)
	assert.Equal(t, "task-1", after.Ref.ID)

	room, _ := st.Current().Room(key("101"))
	assert.Equal(t, model.RoomCleaning, room.Status)

	assert.Equal(t, []sent{{staff: "Lan", room: "101"}}, n.sent)
	assert.Len(t, a.events, 1)

	done := model.TaskDone
	task, err = s.Update(context.Background(), today, key("101"), Mutation{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID, "persisted tasks keep their identity")
	require.NotNil(t, task.CompletedAt)
	room, _ = st.Current().Room(key("101"))
	assert.Equal(t, model.RoomClean, room.Status)
	assert.Len(t, n.sent, 1, "no push without a new assignee")
}

func TestPromotionOnFutureDayUsesDayStart(t *testing.T) {
	s, st, w := newTestService(fixture())
	high := model.PriorityHigh

	task, err := s.Update(context.Background(), "2026-10-21", key("102"), Mutation{Priority: &high})
	require.NoError(t, err)

	assert.Equal(t, model.TaskStayover, task.TaskType)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, parse.Day("2026-10-21").Start(loc), task.CreatedAt)

	e, err := s.Entry("2026-10-21", key("102"))
	require.NoError(t, err)
	assert.Equal(t, worklist.Persisted, e.Ref.Kind)

	assert.Empty(t, w.rooms[0], "a planned task does not touch the room today")
	room, _ := st.Current().Room(key("102"))
	assert.Equal(t, model.RoomClean, room.Status)
}

func TestUpdateRollsBackOnWriteFailure(t *testing.T) {
	s, st, w := newTestService(fixture())
	w.err = errors.New("connection refused")
	prev := st.Current()

	lan := "Lan"
	_, err := s.Update(context.Background(), today, key("101"), Mutation{Assignee: &lan})

	var stale *errs.StaleWriteError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, prev.Tasks, st.Current().Tasks)
	assert.Equal(t, prev.Rooms, st.Current().Rooms)

	e, err := s.Entry(today, key("101"))
	require.NoError(t, err)
	assert.Equal(t, worklist.Virtual, e.Ref.Kind)
}

func TestUpdateRejects(t *testing.T) {
	s, _, _ := newTestService(fixture())
	ctx := context.Background()

	bogus := model.TaskStatus("Lost")
	_, err := s.Update(ctx, today, key("101"), Mutation{Status: &bogus})
	var verr *errs.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = s.Update(ctx, today, key("101"), Mutation{})
	assert.True(t, errors.As(err, &verr))

	done := model.TaskDone
	_, err = s.Update(ctx, today, key("102"), Mutation{Status: &done})
	assert.True(t, errors.As(err, &verr), "inquiries are answered, not updated")

	_, err = s.Update(ctx, today, key("999"), Mutation{Status: &done})
	var nf *errs.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestResolveInquiry(t *testing.T) {
	t.Run("Declined hides the room", func(t *testing.T) {
		s, st, _ := newTestService(fixture())

		task, err := s.ResolveInquiry(context.Background(), today, key("102"), false, "Mai")
		require.NoError(t, err)

		assert.True(t, task.Suppressed)
		assert.Equal(t, model.DeclineNote, task.Note)
		assert.Equal(t, model.TaskDone, task.Status)
		assert.Equal(t, model.PriorityLow, task.Priority)
		assert.Equal(t, 0, task.Points)
		assert.Equal(t, "Mai", task.AssigneeName())

		_, err = s.Entry(today, key("102"))
		assert.Error(t, err)

		b, _ := st.Current().Booking("b2")
		assert.Equal(t, model.BookingCheckedIn, b.Status, "occupancy is untouched")
	})

	t.Run("Needs cleaning joins the pipeline", func(t *testing.T) {
		s, st, _ := newTestService(fixture())

		task, err := s.ResolveInquiry(context.Background(), today, key("102"), true, "Mai")
		require.NoError(t, err)
		assert.Equal(t, model.TaskPending, task.Status)
		assert.Equal(t, model.TaskStayover, task.TaskType)
		assert.Nil(t, task.Assignee)

		e, err := s.Entry(today, key("102"))
		require.NoError(t, err)
		assert.Equal(t, worklist.Persisted, e.Ref.Kind)
		room, _ := st.Current().Room(key("102"))
		assert.Equal(t, model.RoomDirty, room.Status)
	})

	t.Run("Only inquiries can be answered", func(t *testing.T) {
		s, _, _ := newTestService(fixture())
		_, err := s.ResolveInquiry(context.Background(), today, key("101"), true, "Mai")
		var nf *errs.NotFoundError
		assert.True(t, errors.As(err, &nf))
	})
}

func TestAutoAssign(t *testing.T) {
	s, st, w := newTestService(fixture())
	n := &fakeNotifier{}
	s.SetNotifier(n)

	got, err := s.AutoAssign(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, got, 2, "the inquiry is not assignable")

	assert.Equal(t, "103", got[0].Ref.RoomCode, "checkout is high priority and comes first")
	assert.Equal(t, "Lan", got[0].Assignee)
	assert.Equal(t, "101", got[1].Ref.RoomCode)
	assert.Equal(t, "Mai", got[1].Assignee)
	require.Len(t, w.calls, 1, "one write for the whole batch")
	assert.Len(t, n.sent, 2)

	for _, e := range s.Worklist(today, worklist.Filter{}) {
		if e.IsInquiry() {
			continue
		}
		assert.Equal(t, worklist.Persisted, e.Ref.Kind)
		assert.Equal(t, model.TaskInProgress, e.Task.Status)
	}
	room, _ := st.Current().Room(key("103"))
	assert.Equal(t, model.RoomCleaning, room.Status)

	again, err := s.AutoAssign(context.Background(), today)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, w.calls, 1)
}

func TestBulk(t *testing.T) {
	s, _, _ := newTestService(fixture())
	mai := "Mai"

	res, err := s.Bulk(context.Background(), today, []model.RoomKey{key("101"), key("102"), key("103"), key("404")}, Mutation{Assignee: &mai})
	require.NoError(t, err)

	assert.Len(t, res.Updated, 2)
	assert.Equal(t, []string{"f1/102", "f1/404"}, res.Skipped)
	for _, task := range res.Updated {
		assert.Equal(t, "Mai", task.AssigneeName())
	}
}

func TestBulkRepeatedRoomPromotesOnce(t *testing.T) {
	s, st, w := newTestService(fixture())
	mai := "Mai"

	res, err := s.Bulk(context.Background(), today, []model.RoomKey{key("101"), key("101")}, Mutation{Assignee: &mai})
	require.NoError(t, err)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, []string{"f1/101"}, res.Skipped)
	require.Len(t, w.calls, 1)
	assert.Len(t, w.calls[0], 1)

	open := 0
	for _, task := range st.Current().Tasks {
		if task.Key() == key("101") && task.Status != model.TaskDone {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestSetRoomStatus(t *testing.T) {
	withOpenTask := func() state.Snapshot {
		snap := fixture()
		snap.Tasks = []model.HousekeepingTask{
			{ID: "open", FacilityID: "f1", RoomCode: "101", TaskType: model.TaskDirty, Status: model.TaskInProgress, CreatedAt: at(today, 8)},
			{ID: "other", FacilityID: "f1", RoomCode: "102", TaskType: model.TaskStayover, Status: model.TaskPending, CreatedAt: at(today, 8)},
		}
		return snap
	}

	t.Run("clean closes open tasks", func(t *testing.T) {
		s, st, w := newTestService(withOpenTask())

		room, err := s.SetRoomStatus(context.Background(), key("101"), model.RoomClean)
		require.NoError(t, err)
		assert.Equal(t, model.RoomClean, room.Status)

		require.Len(t, w.calls, 1)
		require.Len(t, w.calls[0], 1)
		assert.Equal(t, "open", w.calls[0][0].ID)
		assert.Equal(t, model.TaskDone, w.calls[0][0].Status)
		require.NotNil(t, w.calls[0][0].CompletedAt)

		snap := st.Current()
		task, _ := snap.Task("open")
		assert.Equal(t, model.TaskDone, task.Status)
		other, _ := snap.Task("other")
		assert.Equal(t, model.TaskPending, other.Status)
		stored, _ := snap.Room(key("101"))
		assert.Equal(t, model.RoomClean, stored.Status)
	})

	t.Run("out of service leaves tasks alone", func(t *testing.T) {
		s, st, w := newTestService(withOpenTask())

		_, err := s.SetRoomStatus(context.Background(), key("101"), model.RoomOutOfService)
		require.NoError(t, err)
		assert.Empty(t, w.calls)
		require.Len(t, w.rooms, 1)
		assert.Equal(t, model.RoomOutOfService, w.rooms[0][0].Status)

		task, _ := st.Current().Task("open")
		assert.Equal(t, model.TaskInProgress, task.Status)
	})

	t.Run("write failure restores the room", func(t *testing.T) {
		s, st, w := newTestService(withOpenTask())
		w.err = errors.New("connection refused")

		_, err := s.SetRoomStatus(context.Background(), key("102"), model.RoomDirty)
		var stale *errs.StaleWriteError
		require.True(t, errors.As(err, &stale))
		room, _ := st.Current().Room(key("102"))
		assert.Equal(t, model.RoomClean, room.Status)
	})

	testCases := []struct {
		name   string
		key    model.RoomKey
		status model.RoomStatus
		code   int
	}{
		{name: "unknown room", key: key("404"), status: model.RoomDirty, code: http.StatusNotFound},
		{name: "cleaning is derived", key: key("101"), status: model.RoomCleaning, code: http.StatusBadRequest},
		{name: "unknown status", key: key("101"), status: "Sparkling", code: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestService(fixture())
			_, err := s.SetRoomStatus(context.Background(), tc.key, tc.status)
			assert.Equal(t, tc.code, errs.HTTPStatus(err))
		})
	}
}
