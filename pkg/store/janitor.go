package store

import (
	"context"
	"time"

	"github.com/luminasec/sentinel/pkg/logging"
)

// Janitor runs the decay sweep and persistence on a fixed cadence.
// Implements suture.Service.
type Janitor struct {
	store     *Store
	persister Persister
	interval  time.Duration
}

// NewJanitor creates a janitor. interval defaults to one hour.
func NewJanitor(store *Store, persister Persister, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if persister == nil {
		persister = NopPersister{}
	}
	return &Janitor{store: store, persister: persister, interval: interval}
}

// Serve sweeps and persists until ctx is cancelled. A final persist runs on
// shutdown so learned patterns survive a clean stop.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", j.interval).Msg("pattern janitor started")

	for {
		select {
		case <-ctx.Done():
			j.persist(context.Background())
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			evicted := j.store.DecayPass(now)
			if evicted > 0 {
				logging.Info().Int("evicted", evicted).Int("remaining", j.store.Size()).Msg("pattern decay sweep")
			}
			j.persist(ctx)
		}
	}
}

func (j *Janitor) persist(ctx context.Context) {
	ctx, cancel := timeoutCtx(ctx, 30*time.Second)
	defer cancel()
	if err := j.persister.Save(ctx, j.store.Snapshot()); err != nil {
		logging.Error().Err(err).Msg("pattern store persist failed")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (j *Janitor) String() string { return "pattern-janitor" }
