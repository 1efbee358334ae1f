package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor closes sessions the participant walked away from.
type Janitor struct {
	log         *zap.Logger
	registry    *Registry
	idleTimeout time.Duration
	interval    time.Duration
}

func NewJanitor(log *zap.Logger, registry *Registry, idleTimeout, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		log:         log,
		registry:    registry,
		idleTimeout: idleTimeout,
		interval:    interval,
	}
}

// Start runs the janitor in a goroutine until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	j.log.Info("Starting session janitor...", zap.Duration("idle_timeout", j.idleTimeout))
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.Sweep(time.Now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sweep closes every run idle as of now and returns how many it closed.
func (j *Janitor) Sweep(now time.Time) int {
	idle := j.registry.Idle(now, j.idleTimeout)
	for _, r := range idle {
		s := r.Snapshot()
		j.log.Info("Closing idle session",
			zap.String("session_id", r.Session.ID),
			zap.String("state", s.State.String()),
			zap.Int("rows", s.Rows),
			zap.Duration("idle", r.IdleFor(now)),
		)
		j.registry.Remove(r.Session.ID)
	}
	return len(idle)
}
