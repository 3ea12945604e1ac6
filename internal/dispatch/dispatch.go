// Package dispatch turns worklist interactions into persisted tasks and the
// room statuses that follow from them.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"housekeeping-backend/internal/assign"
	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/parse"
	"housekeeping-backend/internal/state"
	"housekeeping-backend/internal/worklist"
)

// TaskWriter persists tasks and rooms together.
type TaskWriter interface {
	CommitTasks(ctx context.Context, tasks []model.HousekeepingTask, rooms []model.Room) error
	UpsertRoom(ctx context.Context, room model.Room) error
}

// Notifier tells a staff member about a new assignment.
type Notifier interface {
	NotifyAssignment(staffName string, task model.HousekeepingTask, facilityName string)
}

// Announcer forwards committed changes to other sessions.
type Announcer interface {
	Announce(ctx context.Context, ev state.Event)
}

// Mutation is a change requested on a worklist entry. Nil fields are left
// alone; an empty Assignee unassigns.
type Mutation struct {
	Assignee *string
	Status   *model.TaskStatus
	Priority *model.Priority
}

func (m Mutation) validate() error {
	if m.Status != nil && !m.Status.Valid() {
		return errs.Validation("status", "unknown task status %q", *m.Status)
	}
	if m.Priority != nil && !m.Priority.Valid() {
		return errs.Validation("priority", "unknown priority %q", *m.Priority)
	}
	if m.Assignee == nil && m.Status == nil && m.Priority == nil {
		return errs.Validation("", "nothing to change")
	}
	return nil
}

// NextRoomStatus derives a room's status from the new status of its task.
func NextRoomStatus(prev model.RoomStatus, task model.TaskStatus) model.RoomStatus {
	switch {
	case task == model.TaskDone:
		return model.RoomClean
	case task == model.TaskInProgress:
		return model.RoomCleaning
	case task == model.TaskPending && prev == model.RoomClean:
		return model.RoomDirty
	}
	return prev
}

// Service applies worklist interactions.
type Service struct {
	state     *state.Store
	writer    TaskWriter
	loc       *time.Location
	notifier  Notifier
	announcer Announcer

	now   func() time.Time
	newID func() string
}

// NewService creates a dispatch service over the shared snapshot.
func NewService(st *state.Store, w TaskWriter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		state:  st,
		writer: w,
		loc:    loc,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetNotifier enables assignment pushes.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetAnnouncer enables change announcements.
func (s *Service) SetAnnouncer(a Announcer) { s.announcer = a }

// Location returns the hotel's timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Today returns the current day in the hotel's timezone.
func (s *Service) Today() parse.Day { return parse.DayOf(s.now(), s.loc) }

// Worklist derives the entries for date and applies f.
func (s *Service) Worklist(date parse.Day, f worklist.Filter) []worklist.Entry {
	return f.Apply(s.derive(s.state.Current(), date))
}

func (s *Service) derive(snap state.Snapshot, date parse.Day) []worklist.Entry {
	return worklist.Derive(worklist.Input{
		ViewDate:   date,
		Today:      s.Today(),
		Loc:        s.loc,
		Facilities: snap.Facilities,
		Staff:      snap.Staff,
		Rooms:      snap.Rooms,
		Bookings:   snap.Bookings,
		Tasks:      snap.Tasks,
	})
}

// Entry returns the entry for one room on date.
func (s *Service) Entry(date parse.Day, key model.RoomKey) (worklist.Entry, error) {
	e, ok := worklist.Find(s.derive(s.state.Current(), date), key)
	if !ok {
		return worklist.Entry{}, errs.NotFound("worklist entry", fmt.Sprintf("%s on %s", key, date))
	}
	return e, nil
}

// Update applies m to the room's entry. A synthetic entry is promoted to a
// persisted task first.
func (s *Service) Update(ctx context.Context, date parse.Day, key model.RoomKey, m Mutation) (model.HousekeepingTask, error) {
	if err := m.validate(); err != nil {
		return model.HousekeepingTask{}, err
	}
	snap := s.state.Current()
	e, ok := worklist.Find(s.derive(snap, date), key)
	if !ok {
		return model.HousekeepingTask{}, errs.NotFound("worklist entry", fmt.Sprintf("%s on %s", key, date))
	}
	if e.IsInquiry() {
		return model.HousekeepingTask{}, errs.Validation("status", "a stay-over inquiry is answered, not updated")
	}

	prevAssignee := e.Task.AssigneeName()
	task := s.apply(s.materialize(e, date), m)

	var c change
	c.add(snap, task, s.now())
	if err := s.commit(ctx, "update task", c); err != nil {
		return model.HousekeepingTask{}, err
	}
	if name := task.AssigneeName(); name != "" && name != prevAssignee {
		s.notify(name, task, e.FacilityName)
	}
	return task, nil
}

// ResolveInquiry answers a stay-over inquiry. Cleaning wanted yields a
// pending stay-over task; a decline yields a finished, suppressed task that
// hides the room for the rest of the day.
func (s *Service) ResolveInquiry(ctx context.Context, date parse.Day, key model.RoomKey, needsCleaning bool, actor string) (model.HousekeepingTask, error) {
	snap := s.state.Current()
	e, ok := worklist.Find(s.derive(snap, date), key)
	if !ok || !e.IsInquiry() {
		return model.HousekeepingTask{}, errs.NotFound("stay-over inquiry", fmt.Sprintf("%s on %s", key, date))
	}

	task := s.materialize(e, date)
	if needsCleaning {
		task.Status = model.TaskPending
		task.Priority = model.PriorityNormal
		task.Points = model.Weight(model.TaskStayover)
	} else {
		now := s.now()
		task.Status = model.TaskDone
		task.Priority = model.PriorityLow
		task.Points = 0
		task.Note = model.DeclineNote
		task.Suppressed = true
		task.CompletedAt = &now
		if actor != "" {
			task.Assignee = &actor
		}
	}

	var c change
	c.add(snap, task, s.now())
	if err := s.commit(ctx, "answer stay-over inquiry", c); err != nil {
		return model.HousekeepingTask{}, err
	}
	return task, nil
}

// AutoAssign balances every open, unassigned entry of date across eligible
// staff and persists the result in one write.
func (s *Service) AutoAssign(ctx context.Context, date parse.Day) ([]assign.Assignment, error) {
	snap := s.state.Current()
	entries := s.derive(snap, date)
	decisions := assign.AutoAssign(entries)
	if len(decisions) == 0 {
		return nil, nil
	}

	type pending struct {
		task         model.HousekeepingTask
		facilityName string
	}
	var (
		c     change
		sends []pending
	)
	for _, d := range decisions {
		e, ok := worklist.Find(entries, d.Ref.Key())
		if !ok {
			continue
		}
		name := d.Assignee
		inProgress := model.TaskInProgress
		task := s.apply(s.materialize(e, date), Mutation{Assignee: &name, Status: &inProgress})
		c.add(snap, task, s.now())
		sends = append(sends, pending{task: task, facilityName: e.FacilityName})
	}

	if err := s.commit(ctx, "auto-assign", c); err != nil {
		return nil, err
	}
	log.Printf("Auto-assigned %d tasks for %s", len(decisions), date)
	for _, p := range sends {
		s.notify(p.task.AssigneeName(), p.task, p.facilityName)
	}
	return decisions, nil
}

// BulkResult reports a bulk update. Rooms without an updatable entry, and
// repeats of a room already listed, are skipped, not fatal.
type BulkResult struct {
	Updated []model.HousekeepingTask `json:"updated"`
	Skipped []string                 `json:"skipped"`
}

// Bulk applies m to several rooms in one write.
func (s *Service) Bulk(ctx context.Context, date parse.Day, keys []model.RoomKey, m Mutation) (BulkResult, error) {
	if err := m.validate(); err != nil {
		return BulkResult{}, err
	}
	snap := s.state.Current()
	entries := s.derive(snap, date)

	var (
		res  BulkResult
		c    change
		prev = map[string]string{}
		fac  = map[string]string{}
		seen = map[model.RoomKey]bool{}
	)
	for _, key := range keys {
		e, ok := worklist.Find(entries, key)
		if !ok || e.IsInquiry() || seen[key] {
			res.Skipped = append(res.Skipped, key.String())
			continue
		}
		seen[key] = true
		task := s.apply(s.materialize(e, date), m)
		prev[task.ID] = e.Task.AssigneeName()
		fac[task.ID] = e.FacilityName
		c.add(snap, task, s.now())
		res.Updated = append(res.Updated, task)
	}
	if len(res.Updated) == 0 {
		return res, nil
	}

	if err := s.commit(ctx, "bulk update", c); err != nil {
		return BulkResult{}, err
	}
	for _, t := range res.Updated {
		if name := t.AssigneeName(); name != "" && name != prev[t.ID] {
			s.notify(name, t, fac[t.ID])
		}
	}
	return res, nil
}

// SetRoomStatus sets a room's status by hand. Marking a room Clean closes
// every open task for it; Dirty and OutOfService only touch the room.
func (s *Service) SetRoomStatus(ctx context.Context, key model.RoomKey, status model.RoomStatus) (model.Room, error) {
	switch status {
	case model.RoomClean, model.RoomDirty, model.RoomOutOfService:
	case model.RoomCleaning:
		return model.Room{}, errs.Validation("status", "Cleaning follows from a task in progress")
	default:
		return model.Room{}, errs.Validation("status", "unknown room status %q", status)
	}
	snap := s.state.Current()
	room, ok := snap.Room(key)
	if !ok {
		return model.Room{}, errs.NotFound("room", key.String())
	}
	now := s.now()
	room.Status = status
	room.UpdatedAt = now

	if status != model.RoomClean {
		ev := state.RoomUpserted{Room: room}
		if _, err := s.state.Mutate(ctx, "set room status", ev, func(ctx context.Context) error {
			return s.writer.UpsertRoom(ctx, room)
		}); err != nil {
			log.Printf("Error: set room status failed: %v", err)
			return model.Room{}, err
		}
		if s.announcer != nil {
			s.announcer.Announce(ctx, ev)
		}
		return room, nil
	}

	c := change{rooms: []model.Room{room}}
	for _, t := range snap.Tasks {
		if t.Key() != key || t.Status == model.TaskDone {
			continue
		}
		t.Status = model.TaskDone
		t.CompletedAt = &now
		c.tasks = append(c.tasks, t)
	}
	if err := s.commit(ctx, "set room status", c); err != nil {
		return model.Room{}, err
	}
	log.Printf("Room %s marked clean, closed %d open tasks", key, len(c.tasks))
	return room, nil
}

// materialize returns the persisted task behind e, allocating an identity
// and creation time for a synthetic entry.
func (s *Service) materialize(e worklist.Entry, date parse.Day) model.HousekeepingTask {
	task := e.Task
	if !e.Ref.Synthetic() {
		return task
	}
	task.ID = s.newID()
	task.FacilityID = e.Ref.FacilityID
	task.RoomCode = e.Ref.RoomCode
	task.Points = model.Weight(task.TaskType)
	if date == s.Today() {
		task.CreatedAt = s.now()
	} else {
		task.CreatedAt = date.Start(s.loc)
	}
	return task
}

func (s *Service) apply(task model.HousekeepingTask, m Mutation) model.HousekeepingTask {
	if m.Assignee != nil {
		if *m.Assignee == "" {
			task.Assignee = nil
		} else {
			name := *m.Assignee
			task.Assignee = &name
			if m.Status == nil && task.Status == model.TaskPending {
				task.Status = model.TaskInProgress
			}
		}
	}
	if m.Status != nil {
		task.Status = *m.Status
	}
	if m.Priority != nil {
		task.Priority = *m.Priority
	}
	if task.Status == model.TaskDone {
		if task.CompletedAt == nil {
			now := s.now()
			task.CompletedAt = &now
		}
	} else {
		task.CompletedAt = nil
	}
	return task
}

// change accumulates tasks and the rooms whose status they move. Tasks
// planned for a later day leave the room alone.
type change struct {
	tasks []model.HousekeepingTask
	rooms []model.Room
}

func (c *change) add(snap state.Snapshot, task model.HousekeepingTask, now time.Time) {
	c.tasks = append(c.tasks, task)
	room, ok := snap.Room(task.Key())
	if !ok || task.CreatedAt.After(now) {
		return
	}
	next := NextRoomStatus(room.Status, task.Status)
	if next == room.Status {
		return
	}
	room.Status = next
	room.UpdatedAt = now
	c.rooms = append(c.rooms, room)
}

func (s *Service) commit(ctx context.Context, op string, c change) error {
	ev := state.TasksCommitted{Tasks: c.tasks, Rooms: c.rooms}
	if _, err := s.state.Mutate(ctx, op, ev, func(ctx context.Context) error {
		return s.writer.CommitTasks(ctx, c.tasks, c.rooms)
	}); err != nil {
		log.Printf("Error: %s failed: %v", op, err)
		return err
	}
	if s.announcer != nil {
		s.announcer.Announce(ctx, ev)
	}
	return nil
}

func (s *Service) notify(staffName string, task model.HousekeepingTask, facilityName string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyAssignment(staffName, task, facilityName)
}
