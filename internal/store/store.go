package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/state"
)

// Store defines the interface for all database operations.
type Store interface {
	LoadSnapshot(ctx context.Context, since time.Time) (state.Snapshot, error)
	CommitTasks(ctx context.Context, tasks []model.HousekeepingTask, rooms []model.Room) error
	UpsertRoom(ctx context.Context, room model.Room) error
	CommitInventory(ctx context.Context, c InventoryCommit) error
	CreateBooking(ctx context.Context, b model.Booking) error
	UpdateBooking(ctx context.Context, b model.Booking) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]model.InventoryTransaction, error)
	SaveSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsFor(ctx context.Context, staffName string) ([]model.PushSubscription, error)
}

// InventoryCommit is everything one ledger operation writes.
type InventoryCommit struct {
	Items        []model.InventoryItem
	Transactions []model.InventoryTransaction
	Booking      *model.Booking
	Task         *model.HousekeepingTask
}

// TransactionFilter narrows ListTransactions. Zero fields match everything.
type TransactionFilter struct {
	ItemID       string
	FacilityName string
	Since        time.Time
	Limit        int
}

const (
	tableTasks         = "housekeeping_tasks"
	tableRooms         = "rooms"
	tableBookings      = "bookings"
	tableItems         = "inventory_items"
	tableTransactions  = "inventory_transactions"
	tableSubscriptions = "push_subscriptions"
)

// DefaultTransactionLimit bounds ListTransactions when no limit is given.
const DefaultTransactionLimit = 200

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// LoadSnapshot reads every collection the engine caches. Bookings and tasks
// are limited to those still open or touched since the given time.
func (s *gormStore) LoadSnapshot(ctx context.Context, since time.Time) (state.Snapshot, error) {
	var snap state.Snapshot
	db := s.db.WithContext(ctx)

	if err := db.Find(&snap.Facilities).Error; err != nil {
		return snap, fmt.Errorf("failed to load facilities: %w", err)
	}
	if err := db.Find(&snap.Staff).Error; err != nil {
		return snap, fmt.Errorf("failed to load staff: %w", err)
	}
	if err := db.Order("facility_id, code").Find(&snap.Rooms).Error; err != nil {
		return snap, fmt.Errorf("failed to load rooms: %w", err)
	}
	if err := db.Where("checkout_time >= ? OR status IN ?", since,
		[]model.BookingStatus{model.BookingConfirmed, model.BookingCheckedIn}).
		Order("checkin_time").Find(&snap.Bookings).Error; err != nil {
		return snap, fmt.Errorf("failed to load bookings: %w", err)
	}
	if err := db.Where("created_at >= ? OR status <> ?", since, model.TaskDone).
		Order("created_at").Find(&snap.Tasks).Error; err != nil {
		return snap, fmt.Errorf("failed to load tasks: %w", err)
	}
	if err := db.Order("name").Find(&snap.Items).Error; err != nil {
		return snap, fmt.Errorf("failed to load inventory items: %w", err)
	}
	if err := db.Order("created_at DESC").Limit(state.TransactionLimit).Find(&snap.Transactions).Error; err != nil {
		return snap, fmt.Errorf("failed to load inventory transactions: %w", err)
	}
	if err := db.Find(&snap.Recipes).Error; err != nil {
		return snap, fmt.Errorf("failed to load room recipes: %w", err)
	}
	return snap, nil
}

// CommitTasks writes tasks and the room statuses they drove in one
// transaction. Writing an open task removes any other open task for the
// same room.
func (s *gormStore) CommitTasks(ctx context.Context, tasks []model.HousekeepingTask, rooms []model.Room) error {
	return s.write(ctx, func(tx *gorm.DB, o omitted) error {
		if err := upsertTasks(tx, o, tasks); err != nil {
			return err
		}
		if len(rooms) == 0 {
			return nil
		}
		batch := append([]model.Room(nil), rooms...)
		if err := tx.Omit(o.cols(tableRooms)...).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "facility_id"}, {Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("batch upsert rooms failed: %w", err)
		}
		return nil
	})
}

func upsertTasks(tx *gorm.DB, o omitted, tasks []model.HousekeepingTask) error {
	tasks = lastPerRoom(tasks)
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if t.Status == model.TaskDone {
			continue
		}
		if err := tx.Where("facility_id = ? AND room_code = ? AND status <> ? AND id <> ?",
			t.FacilityID, t.RoomCode, model.TaskDone, t.ID).
			Delete(&model.HousekeepingTask{}).Error; err != nil {
			return fmt.Errorf("failed to retire open tasks for room %s: %w", t.Key(), err)
		}
	}
	batch := append([]model.HousekeepingTask(nil), tasks...)
	log.Printf("Batch upserting %d tasks...", len(batch))
	if err := tx.Omit(o.cols(tableTasks)...).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&batch).Error; err != nil {
		return fmt.Errorf("batch upsert tasks failed: %w", err)
	}
	return nil
}

// lastPerRoom drops every task a later one in the batch supersedes: an
// earlier copy of the same ID, or an earlier open task for the same room.
func lastPerRoom(tasks []model.HousekeepingTask) []model.HousekeepingTask {
	seenID := make(map[string]bool, len(tasks))
	seenRoom := make(map[model.RoomKey]bool, len(tasks))
	keep := make([]bool, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		t := tasks[i]
		if seenID[t.ID] {
			continue
		}
		seenID[t.ID] = true
		if t.Status != model.TaskDone {
			if seenRoom[t.Key()] {
				continue
			}
			seenRoom[t.Key()] = true
		}
		keep[i] = true
	}
	out := make([]model.HousekeepingTask, 0, len(tasks))
	for i, t := range tasks {
		if keep[i] {
			out = append(out, t)
		}
	}
	return out
}

// UpsertRoom writes a whole room record.
func (s *gormStore) UpsertRoom(ctx context.Context, room model.Room) error {
	return s.write(ctx, func(tx *gorm.DB, o omitted) error {
		if err := tx.Omit(o.cols(tableRooms)...).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "facility_id"}, {Name: "code"}},
			UpdateAll: true,
		}).Create(&room).Error; err != nil {
			return fmt.Errorf("upsert room %s failed: %w", room.Key(), err)
		}
		return nil
	})
}

// CommitInventory writes counters, log entries, and the booking and task
// they affected in one transaction.
func (s *gormStore) CommitInventory(ctx context.Context, c InventoryCommit) error {
	return s.write(ctx, func(tx *gorm.DB, o omitted) error {
		if len(c.Items) > 0 {
			items := append([]model.InventoryItem(nil), c.Items...)
			if err := tx.Omit(o.cols(tableItems)...).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"clean_stock", "in_circulation", "laundry_stock", "updated_at"}),
			}).Create(&items).Error; err != nil {
				return fmt.Errorf("batch upsert inventory items failed: %w", err)
			}
		}
		if len(c.Transactions) > 0 {
			txs := append([]model.InventoryTransaction(nil), c.Transactions...)
			if err := tx.Omit(o.cols(tableTransactions)...).Create(&txs).Error; err != nil {
				return fmt.Errorf("append inventory transactions failed: %w", err)
			}
		}
		if c.Booking != nil {
			b := *c.Booking
			if err := tx.Omit(o.cols(tableBookings)...).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&b).Error; err != nil {
				return fmt.Errorf("update booking %s failed: %w", b.ID, err)
			}
		}
		if c.Task != nil {
			return upsertTasks(tx, o, []model.HousekeepingTask{*c.Task})
		}
		return nil
	})
}

// CreateBooking inserts b after checking, inside the same transaction, that
// no live booking overlaps it.
func (s *gormStore) CreateBooking(ctx context.Context, b model.Booking) error {
	return s.write(ctx, func(tx *gorm.DB, o omitted) error {
		if err := checkOverlap(tx, b); err != nil {
			return err
		}
		if err := tx.Omit(o.cols(tableBookings)...).Create(&b).Error; err != nil {
			return bookingError(b, err)
		}
		return nil
	})
}

// UpdateBooking replaces b with the same overlap check as CreateBooking.
func (s *gormStore) UpdateBooking(ctx context.Context, b model.Booking) error {
	return s.write(ctx, func(tx *gorm.DB, o omitted) error {
		var count int64
		if err := tx.Model(&model.Booking{}).Where("id = ?", b.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up booking %s: %w", b.ID, err)
		}
		if count == 0 {
			return errs.NotFound("booking", b.ID)
		}
		if err := checkOverlap(tx, b); err != nil {
			return err
		}
		if err := tx.Omit(o.cols(tableBookings)...).Save(&b).Error; err != nil {
			return bookingError(b, err)
		}
		return nil
	})
}

func checkOverlap(tx *gorm.DB, b model.Booking) error {
	if !b.Occupying() {
		return nil
	}
	var clash []model.Booking
	if err := tx.Where("facility_name = ? AND room_code = ? AND id <> ? AND status NOT IN ?",
		b.FacilityName, b.RoomCode, b.ID,
		[]model.BookingStatus{model.BookingCancelled, model.BookingCheckedOut}).
		Where("checkin_time < ? AND checkout_time > ?", b.CheckoutTime, b.CheckinTime).
		Limit(1).Find(&clash).Error; err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}
	if len(clash) > 0 {
		return &errs.ConflictError{Reason: fmt.Sprintf("room %s in %s is already booked by %s", b.RoomCode, b.FacilityName, clash[0].ID)}
	}
	return nil
}

func bookingError(b model.Booking, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return &errs.ConflictError{Reason: fmt.Sprintf("room %s in %s is already booked", b.RoomCode, b.FacilityName)}
	}
	return fmt.Errorf("save booking %s failed: %w", b.ID, err)
}

// ListTransactions returns log entries newest first.
func (s *gormStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.InventoryTransaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	if f.FacilityName != "" {
		q = q.Where("facility_name = ?", f.FacilityName)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	var txs []model.InventoryTransaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory transactions: %w", err)
	}
	return txs, nil
}
