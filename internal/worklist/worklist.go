// Package worklist derives the day's cleaning jobs from rooms, bookings and
// persisted tasks. Derivation is pure: the same input always yields the same
// entries in the same order.
package worklist

import (
	"sort"
	"time"

	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/parse"
)

// Kind tells a persisted task apart from the synthetic ones that only exist
// in derived output.
type Kind int

const (
	Persisted Kind = iota
	Virtual        // room is dirty with no task on record
	Predicted      // forecast from a booking
	Inquiry        // stay-over decision gate, never assignable
)

var kindNames = [...]string{"persisted", "virtual", "predicted", "inquiry"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Ref identifies an entry. ID is set only for persisted tasks; synthetic
// entries are addressed by their room.
type Ref struct {
	Kind       Kind   `json:"kind"`
	ID         string `json:"id,omitempty"`
	FacilityID string `json:"facility_id"`
	RoomCode   string `json:"room_code"`
}

// Synthetic reports whether the entry has no persisted record yet.
func (r Ref) Synthetic() bool { return r.Kind != Persisted }

// Key returns the room the entry belongs to.
func (r Ref) Key() model.RoomKey { return model.RoomKey{FacilityID: r.FacilityID, RoomCode: r.RoomCode} }

// Entry is one row of the worklist.
type Entry struct {
	Ref           Ref                    `json:"ref"`
	Task          model.HousekeepingTask `json:"task"`
	FacilityName  string                 `json:"facility_name"`
	RoomStatus    model.RoomStatus       `json:"room_status"`
	EligibleStaff []string               `json:"eligible_staff"`
	ViewDate      parse.Day              `json:"view_date"`
}

// IsInquiry reports whether the entry is a stay-over decision gate.
func (e Entry) IsInquiry() bool { return e.Ref.Kind == Inquiry }

// Input is everything derivation looks at.
type Input struct {
	ViewDate   parse.Day
	Today      parse.Day
	Loc        *time.Location
	Facilities []model.Facility
	Staff      []model.Staff
	Rooms      []model.Room
	Bookings   []model.Booking
	Tasks      []model.HousekeepingTask
}

// Derive returns at most one entry per room for in.ViewDate, sorted.
func Derive(in Input) []Entry {
	loc := in.Loc
	if loc == nil {
		loc = time.UTC
	}
	viewingToday := in.ViewDate == in.Today

	facilities := make(map[string]model.Facility, len(in.Facilities))
	eligible := make(map[string][]string, len(in.Facilities))
	for _, f := range in.Facilities {
		facilities[f.ID] = f
		eligible[f.ID] = Eligible(f, in.Staff)
	}

	tasksByRoom := make(map[model.RoomKey][]model.HousekeepingTask)
	for _, t := range in.Tasks {
		tasksByRoom[t.Key()] = append(tasksByRoom[t.Key()], t)
	}
	bookingsByRoom := make(map[[2]string][]model.Booking)
	for _, b := range in.Bookings {
		k := [2]string{b.FacilityName, b.RoomCode}
		bookingsByRoom[k] = append(bookingsByRoom[k], b)
	}

	var out []Entry
	for _, room := range in.Rooms {
		f, ok := facilities[room.FacilityID]
		if !ok {
			continue
		}
		base := Entry{
			Ref:           Ref{FacilityID: room.FacilityID, RoomCode: room.Code},
			FacilityName:  f.Name,
			RoomStatus:    room.Status,
			EligibleStaff: eligible[f.ID],
			ViewDate:      in.ViewDate,
		}

		matches := matching(tasksByRoom[room.Key()], in, loc)
		if len(matches) > 0 {
			if e, show := fromPersisted(base, room, matches, in, loc); show {
				out = append(out, e)
			}
			continue
		}

		bookings := bookingsByRoom[[2]string{f.Name, room.Code}]

		if viewingToday && room.Status == model.RoomClean {
			if inquiring(bookings, in.Today, loc) {
				out = append(out, synthetic(base, Inquiry, model.TaskStayover, model.TaskPending, model.PriorityNormal))
				continue
			}
		}

		if viewingToday && (room.Status == model.RoomDirty || room.Status == model.RoomCleaning) {
			status := model.TaskPending
			if room.Status == model.RoomCleaning {
				status = model.TaskInProgress
			}
			out = append(out, synthetic(base, Virtual, model.TaskDirty, status, model.PriorityHigh))
			continue
		}

		if room.Status == model.RoomOutOfService {
			continue
		}
		if b, ok := forecast(bookings, in.ViewDate, loc); ok {
			if parse.DayOf(b.CheckoutTime, loc) == in.ViewDate {
				out = append(out, synthetic(base, Predicted, model.TaskCheckout, model.TaskPending, model.PriorityHigh))
			} else {
				out = append(out, synthetic(base, Predicted, model.TaskStayover, model.TaskPending, model.PriorityNormal))
			}
		}
	}

	Sort(out)
	return out
}

// matching returns the persisted tasks that belong to the view date: those
// created on it and, when viewing today, the unfinished backlog.
func matching(tasks []model.HousekeepingTask, in Input, loc *time.Location) []model.HousekeepingTask {
	var out []model.HousekeepingTask
	for _, t := range tasks {
		created := parse.DayOf(t.CreatedAt, loc)
		switch {
		case created == in.ViewDate:
			out = append(out, t)
		case in.ViewDate == in.Today && t.Status != model.TaskDone && created < in.Today:
			out = append(out, t)
		}
	}
	return out
}

func fromPersisted(base Entry, room model.Room, matches []model.HousekeepingTask, in Input, loc *time.Location) (Entry, bool) {
	// A decline hides the room for the day whatever else is on record.
	for _, t := range matches {
		if t.IsSuppressed() {
			return Entry{}, false
		}
	}

	latest := matches[0]
	for _, t := range matches[1:] {
		if t.CreatedAt.After(latest.CreatedAt) || (t.CreatedAt.Equal(latest.CreatedAt) && t.ID > latest.ID) {
			latest = t
		}
	}

	stale := parse.DayOf(latest.CreatedAt, loc) < in.Today
	if room.Status == model.RoomClean && latest.Status != model.TaskDone && stale {
		return Entry{}, false
	}

	base.Ref.Kind = Persisted
	base.Ref.ID = latest.ID
	base.Task = latest
	return base, true
}

// inquiring reports whether a checked-in guest is mid-stay on today.
func inquiring(bookings []model.Booking, today parse.Day, loc *time.Location) bool {
	for _, b := range bookings {
		if b.Status != model.BookingCheckedIn {
			continue
		}
		if parse.DayOf(b.CheckinTime, loc) < today && parse.DayOf(b.CheckoutTime, loc) > today {
			return true
		}
	}
	return false
}

// forecast picks the booking that drives a predicted job on day. A
// departure beats a continuing stay.
func forecast(bookings []model.Booking, day parse.Day, loc *time.Location) (model.Booking, bool) {
	var (
		best  model.Booking
		found bool
	)
	for _, b := range bookings {
		if !b.Occupying() {
			continue
		}
		in, out := parse.DayOf(b.CheckinTime, loc), parse.DayOf(b.CheckoutTime, loc)
		if day < in || day > out {
			continue
		}
		if !found {
			best, found = b, true
			continue
		}
		bestDeparts := parse.DayOf(best.CheckoutTime, loc) == day
		departs := out == day
		if departs && !bestDeparts || departs == bestDeparts && b.CheckinTime.Before(best.CheckinTime) {
			best = b
		}
	}
	return best, found
}

func synthetic(base Entry, kind Kind, typ model.TaskType, status model.TaskStatus, prio model.Priority) Entry {
	base.Ref.Kind = kind
	base.Task = model.HousekeepingTask{
		FacilityID: base.Ref.FacilityID,
		RoomCode:   base.Ref.RoomCode,
		TaskType:   typ,
		Status:     status,
		Priority:   prio,
		Points:     model.Weight(typ),
	}
	return base
}

// Eligible lists the staff who may take tasks in f, in roster order. An
// empty roster means every active housekeeper, by name. Roster names of
// known staff who are inactive or not housekeepers are dropped.
func Eligible(f model.Facility, staff []model.Staff) []string {
	known := make(map[string]model.Staff, len(staff))
	for _, s := range staff {
		known[s.Name] = s
	}

	out := []string{}
	if len(f.Roster) == 0 {
		for _, s := range staff {
			if s.IsHousekeeper() {
				out = append(out, s.Name)
			}
		}
		sort.Strings(out)
		return out
	}

	seen := make(map[string]bool, len(f.Roster))
	for _, name := range f.Roster {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if s, ok := known[name]; ok && !s.IsHousekeeper() {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Sort orders entries for display and processing: inquiries first, then by
// status, priority and type, then by facility and room.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsInquiry() != b.IsInquiry() {
			return a.IsInquiry()
		}
		if x, y := a.Task.Status.Rank(), b.Task.Status.Rank(); x != y {
			return x < y
		}
		if x, y := a.Task.Priority.Rank(), b.Task.Priority.Rank(); x != y {
			return x < y
		}
		if x, y := a.Task.TaskType.Rank(), b.Task.TaskType.Rank(); x != y {
			return x < y
		}
		if a.FacilityName != b.FacilityName {
			return a.FacilityName < b.FacilityName
		}
		return a.Ref.RoomCode < b.Ref.RoomCode
	})
}

// Filter narrows a worklist. Zero fields match everything. Staff keeps the
// entries assigned to that person plus the unassigned ones they may claim.
type Filter struct {
	Status model.TaskStatus
	Type   model.TaskType
	Staff  string
}

// Apply returns the entries matching f.
func (f Filter) Apply(entries []Entry) []Entry {
	if f.Status == "" && f.Type == "" && f.Staff == "" {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Status != "" && e.Task.Status != f.Status {
			continue
		}
		if f.Type != "" && e.Task.TaskType != f.Type {
			continue
		}
		if f.Staff != "" && !e.visibleTo(f.Staff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (e Entry) visibleTo(staff string) bool {
	if name := e.Task.AssigneeName(); name != "" {
		return name == staff
	}
	for _, n := range e.EligibleStaff {
		if n == staff {
			return true
		}
	}
	return false
}

// Find returns the entry for a room.
func Find(entries []Entry, key model.RoomKey) (Entry, bool) {
	for _, e := range entries {
		if e.Ref.Key() == key {
			return e, true
		}
	}
	return Entry{}, false
}
