package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// PoolStatter reports connection pool usage
type PoolStatter interface {
	PoolStats() (acquired, idle int32)
}

// Updater periodically copies connection pool statistics into gauges
type Updater struct {
	pool     PoolStatter
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater
func NewUpdater(pool PoolStatter, interval time.Duration) *Updater {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Updater{
		pool:     pool,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the update loop until Stop is called or ctx is done
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.update()

	for {
		select {
		case <-ticker.C:
			u.update()
		case <-u.stopCh:
			log.Info().Msg("Metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater
func (u *Updater) Stop() {
	close(u.stopCh)
}

func (u *Updater) update() {
	acquired, idle := u.pool.PoolStats()
	UpdateDatabaseConnections(acquired, idle)
	log.Debug().
		Int32("acquired", acquired).
		Int32("idle", idle).
		Msg("Updated database pool metrics")
}
