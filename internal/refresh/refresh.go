package refresh

import (
	"context"
	"log"
	"time"

	"housekeeping-backend/config"
	"housekeeping-backend/internal/state"
)

// Loader reads a full snapshot from the backing store.
type Loader interface {
	LoadSnapshot(ctx context.Context, since time.Time) (state.Snapshot, error)
}

// Service keeps the cached snapshot in step with the store by reloading it
// on a timer. It backs up the change feed, which can drop messages.
type Service struct {
	cfg    *config.Config
	loader Loader
	state  *state.Store
	now    func() time.Time
}

// NewService creates a refresh service.
func NewService(cfg *config.Config, loader Loader, st *state.Store) *Service {
	return &Service{cfg: cfg, loader: loader, state: st, now: time.Now}
}

// Run reloads every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Refresh.Enabled {
		log.Println("Periodic refresh is disabled. Not starting.")
		return
	}
	log.Println("Starting refresh service...")

	timer := time.NewTimer(s.cfg.Refresh.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Refresh service shutting down.")
			return
		case <-timer.C:
			if err := s.RefreshOnce(ctx); err != nil {
				log.Printf("Error refreshing snapshot: %v", err)
			}
			timer.Reset(s.cfg.Refresh.Interval)
		}
	}
}

// Since returns the start of the recency window for bookings and tasks.
func (s *Service) Since() time.Time {
	return s.now().AddDate(0, -s.cfg.Housekeeping.HistoryMonths, 0)
}

// RefreshOnce replaces the cached snapshot with a fresh read. On error the
// current snapshot is kept.
func (s *Service) RefreshOnce(ctx context.Context) error {
	snap, err := s.loader.LoadSnapshot(ctx, s.Since())
	if err != nil {
		return err
	}
	next := s.state.Apply(state.Loaded{Snapshot: snap})
	log.Printf("Snapshot refreshed to revision %d: %d rooms, %d bookings, %d tasks, %d items",
		next.Revision, len(next.Rooms), len(next.Bookings), len(next.Tasks), len(next.Items))
	return nil
}
