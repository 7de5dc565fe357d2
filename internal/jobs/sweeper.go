package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"farmlens/api/internal/config"
	"farmlens/api/internal/storage"
)

// ObjectLister is the storage surface the sweep walks.
type ObjectLister interface {
	ListObjects(ctx context.Context) ([]storage.ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

// ScanIndex answers whether any record still references a stored object.
type ScanIndex interface {
	ExistsByImageKey(ctx context.Context, key string) (bool, error)
}

// Sweeper reclaims stored objects that no scan record references anymore:
// the leftovers of an upload whose persist step failed and whose
// compensating delete also failed. Objects younger than the grace period
// are skipped so an in-flight analysis is never raced.
type Sweeper struct {
	cron  *cron.Cron
	scans ScanIndex
	store ObjectLister
	cfg   config.SweeperConfig
	log   zerolog.Logger
}

func NewSweeper(scans ScanIndex, store ObjectLister, cfg config.SweeperConfig, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:  cron.New(cron.WithSeconds()),
		scans: scans,
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Sweeper) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 3 * * *", s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits briefly for a running sweep to finish.
func (s *Sweeper) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("sweeper stop timed out")
	}
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	s.sweep(ctx, time.Now())
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	objects, err := s.store.ListObjects(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("orphan sweep: list objects failed")
		return
	}

	cutoff := now.Add(-s.cfg.GracePeriod)
	var removed int

	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}

		referenced, err := s.scans.ExistsByImageKey(ctx, obj.Key)
		if err != nil {
			s.log.Error().Err(err).Str("key", obj.Key).Msg("orphan sweep: reference check failed")
			continue
		}
		if referenced {
			continue
		}

		if err := s.store.Remove(ctx, obj.Key); err != nil {
			s.log.Error().Err(err).Str("key", obj.Key).Msg("orphan sweep: remove failed")
			continue
		}
		removed++
	}

	s.log.Info().Int("scanned", len(objects)).Int("removed", removed).Msg("orphan sweep finished")
}
