// Package inventory runs ledger operations against the shared snapshot and
// persists their outcome together with the booking bill and task they touch.
package inventory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/ledger"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/parse"
	"housekeeping-backend/internal/state"
	"housekeeping-backend/internal/store"
)

// Store is the persistence the service needs.
type Store interface {
	CommitInventory(ctx context.Context, c store.InventoryCommit) error
	ListTransactions(ctx context.Context, f store.TransactionFilter) ([]model.InventoryTransaction, error)
}

// Announcer forwards committed changes to other sessions.
type Announcer interface {
	Announce(ctx context.Context, ev state.Event)
}

// Request is an inventory movement at a room. RoomCode is optional for
// Launder.
type Request struct {
	FacilityName string        `json:"facility_name"`
	RoomCode     string        `json:"room_code"`
	StaffID      string        `json:"staff_id"`
	Note         string        `json:"note"`
	Items        []ledger.Line `json:"items"`
}

// Result is what an operation did.
type Result struct {
	ledger.Outcome
	Missing string                  `json:"missing,omitempty"`
	Unknown []string                `json:"unknown_items,omitempty"`
	Booking *model.Booking          `json:"booking,omitempty"`
	Task    *model.HousekeepingTask `json:"task,omitempty"`
}

// Service applies ledger operations. Operations are serialised so counters
// read from the snapshot are never stale within one process.
type Service struct {
	mu        sync.Mutex
	state     *state.Store
	store     Store
	loc       *time.Location
	announcer Announcer

	now   func() time.Time
	newID func() string
}

// NewService creates an inventory service.
func NewService(st *state.Store, s Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		state: st,
		store: s,
		loc:   loc,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Locker returns the lock operations are serialised on.
func (s *Service) Locker() sync.Locker { return &s.mu }

// SetAnnouncer enables change announcements.
func (s *Service) SetAnnouncer(a Announcer) { s.announcer = a }

// Items returns the cached items sorted by category then name.
func (s *Service) Items() []model.InventoryItem {
	items := append([]model.InventoryItem(nil), s.state.Current().Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
	return items
}

// Transactions reads the log from the store, newest first.
func (s *Service) Transactions(ctx context.Context, f store.TransactionFilter) ([]model.InventoryTransaction, error) {
	return s.store.ListTransactions(ctx, f)
}

// Consume uses items up in a room. Priced items are billed to the guest
// currently checked in, if any.
func (s *Service) Consume(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "consume inventory", req, true, func(snap state.Snapshot, l *ledger.Ledger, ev ledger.Event) (Result, error) {
		out, err := l.Consume(ev, req.Items)
		if err != nil {
			return Result{}, err
		}
		res := Result{Outcome: out}
		if len(out.Charges) == 0 {
			return res, nil
		}
		b, ok := snap.ActiveBooking(req.FacilityName, req.RoomCode)
		if !ok {
			log.Printf("Warning: no checked-in booking for %s/%s, %d charges not billed", req.FacilityName, req.RoomCode, len(out.Charges))
			return res, nil
		}
		b.ServicesConsumed = append(append(b.ServicesConsumed[:0:0], b.ServicesConsumed...), out.Charges...)
		b.RecomputeTotals()
		b.UpdatedAt = ev.At
		res.Booking = &b
		return res, nil
	})
}

// Lend issues items to the guest in a room and records the loan on their
// booking.
func (s *Service) Lend(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "lend inventory", req, true, func(snap state.Snapshot, l *ledger.Ledger, ev ledger.Event) (Result, error) {
		out, err := l.Lend(ev, req.Items)
		if err != nil {
			return Result{}, err
		}
		res := Result{Outcome: out}
		if len(out.Loans) == 0 {
			return res, nil
		}
		b, ok := snap.ActiveBooking(req.FacilityName, req.RoomCode)
		if !ok {
			return res, nil
		}
		b.LendingItems = mergeLoans(b.LendingItems, out.Loans)
		b.UpdatedAt = ev.At
		res.Booking = &b
		return res, nil
	})
}

// Return reconciles a room at checkout. Items holds the counted units; what
// the room should hold comes from its recipe and the loans on its booking.
// Shortfalls are appended to the room's cleaning task note.
func (s *Service) Return(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "checkout return", req, true, func(snap state.Snapshot, l *ledger.Ledger, ev ledger.Event) (Result, error) {
		f, ok := snap.FacilityByName(req.FacilityName)
		if !ok {
			return Result{}, errs.NotFound("facility", req.FacilityName)
		}
		key := model.RoomKey{FacilityID: f.ID, RoomCode: req.RoomCode}
		room, ok := snap.Room(key)
		if !ok {
			return Result{}, errs.NotFound("room", key.String())
		}

		var recipe *model.RoomRecipe
		if r, ok := snap.Recipe(room.Type); ok {
			recipe = &r
		}
		today := parse.DayOf(ev.At, s.loc)
		booking, hasBooking := departing(snap, req.FacilityName, req.RoomCode, today, s.loc)
		var bp *model.Booking
		if hasBooking {
			bp = &booking
		}

		out, err := l.Return(ev, req.Items, ledger.Expected(recipe, snap.Items, bp))
		if err != nil {
			return Result{}, err
		}
		res := Result{Outcome: out, Missing: ledger.ShortageNote(out.Shortages)}

		if hasBooking && len(booking.LendingItems) > 0 {
			booking.LendingItems = nil
			booking.UpdatedAt = ev.At
			res.Booking = &booking
		}
		if task, ok := roomTask(snap, key, today, s.loc); ok {
			task.LinenExchanged = out.Returned
			if res.Missing != "" {
				task.Note = appendNote(task.Note, res.Missing)
			}
			res.Task = &task
		} else if res.Missing != "" {
			log.Printf("Warning: %s/%s checkout shortage with no task to note it on: %s", req.FacilityName, req.RoomCode, res.Missing)
		}
		return res, nil
	})
}

// Exchange swaps used linen in an occupied room for fresh units.
func (s *Service) Exchange(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "linen exchange", req, true, func(_ state.Snapshot, l *ledger.Ledger, ev ledger.Event) (Result, error) {
		out, err := l.Exchange(ev, req.Items)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: out}, nil
	})
}

// Launder restocks clean units from laundry.
func (s *Service) Launder(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "launder", req, false, func(_ state.Snapshot, l *ledger.Ledger, ev ledger.Event) (Result, error) {
		out, err := l.Launder(ev, req.Items)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: out}, nil
	})
}

type operation func(snap state.Snapshot, l *ledger.Ledger, ev ledger.Event) (Result, error)

func (s *Service) run(ctx context.Context, op string, req Request, needsRoom bool, fn operation) (Result, error) {
	if needsRoom && (strings.TrimSpace(req.FacilityName) == "" || strings.TrimSpace(req.RoomCode) == "") {
		return Result{}, errs.Validation("room_code", "facility_name and room_code are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.Current()
	l := ledger.New(snap.Items, s.newID)
	ev := ledger.Event{
		FacilityName: req.FacilityName,
		RoomCode:     req.RoomCode,
		StaffID:      req.StaffID,
		Note:         req.Note,
		At:           s.now(),
	}

	res, err := fn(snap, l, ev)
	if err != nil {
		return Result{}, err
	}
	for _, e := range res.Skipped {
		res.Unknown = append(res.Unknown, e.Error())
	}

	items := l.Items()
	for i := range items {
		items[i].UpdatedAt = ev.At
	}
	commit := store.InventoryCommit{
		Items:        items,
		Transactions: l.Transactions(),
		Booking:      res.Booking,
		Task:         res.Task,
	}
	if len(commit.Items) == 0 && len(commit.Transactions) == 0 && commit.Booking == nil && commit.Task == nil {
		return res, nil
	}

	committed := state.InventoryCommitted{
		Items:        commit.Items,
		Transactions: commit.Transactions,
		Booking:      commit.Booking,
		Task:         commit.Task,
	}
	if _, err := s.state.Mutate(ctx, op, committed, func(ctx context.Context) error {
		return s.store.CommitInventory(ctx, commit)
	}); err != nil {
		log.Printf("Error: %s failed: %v", op, err)
		return Result{}, err
	}
	log.Printf("%s: %d items, %d transactions at %s/%s", op, len(commit.Items), len(commit.Transactions), req.FacilityName, req.RoomCode)
	if s.announcer != nil {
		s.announcer.Announce(ctx, committed)
	}
	return res, nil
}

// departing returns the booking whose loans are due back at a room: the
// one checked in, else one checked out today.
func departing(snap state.Snapshot, facilityName, roomCode string, today parse.Day, loc *time.Location) (model.Booking, bool) {
	if b, ok := snap.ActiveBooking(facilityName, roomCode); ok {
		return b, true
	}
	for _, b := range snap.Bookings {
		if b.FacilityName != facilityName || b.RoomCode != roomCode || b.Status != model.BookingCheckedOut {
			continue
		}
		if parse.DayOf(b.CheckoutTime, loc) == today {
			return b, true
		}
	}
	return model.Booking{}, false
}

// roomTask returns the task a checkout count belongs to: the room's open
// task, else the latest one created today.
func roomTask(snap state.Snapshot, key model.RoomKey, today parse.Day, loc *time.Location) (model.HousekeepingTask, bool) {
	var (
		latest model.HousekeepingTask
		found  bool
	)
	for _, t := range snap.Tasks {
		if t.Key() != key || t.IsSuppressed() {
			continue
		}
		if t.Status != model.TaskDone {
			return t, true
		}
		if parse.DayOf(t.CreatedAt, loc) != today {
			continue
		}
		if !found || t.CreatedAt.After(latest.CreatedAt) {
			latest, found = t, true
		}
	}
	return latest, found
}

func mergeLoans(existing []model.LendingLine, added []model.LendingLine) []model.LendingLine {
	out := append([]model.LendingLine(nil), existing...)
	for _, a := range added {
		merged := false
		for i := range out {
			if out[i].ItemID == a.ItemID {
				out[i].Quantity += a.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, a)
		}
	}
	return out
}

func appendNote(note, line string) string {
	if strings.TrimSpace(note) == "" {
		return line
	}
	return fmt.Sprintf("%s\n%s", note, line)
}
