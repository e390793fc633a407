// internal/quiz/reaper.go
package quiz

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper periodically evicts lobbies that have sat idle past a threshold.
type Reaper struct {
	svc      *Service
	interval time.Duration
	maxIdle  time.Duration
	logger   *logrus.Logger
}

// NewReaper builds a reaper; zero durations fall back to a 60s sweep and the
// one-hour inactivity default.
func NewReaper(svc *Service, interval, maxIdle time.Duration, logger *logrus.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxIdle <= 0 {
		maxIdle = time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Reaper{svc: svc, interval: interval, maxIdle: maxIdle, logger: logger}
}

// Run sweeps until the context is cancelled. Meant to be started as a
// goroutine from main.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Infof("Reaper: sweeping every %s, evicting lobbies idle > %s", r.interval, r.maxIdle)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper: stopping")
			return
		case <-ticker.C:
			if n := r.svc.ReapIdle(r.maxIdle); n > 0 {
				r.logger.Infof("Reaper: evicted %d idle lobbies", n)
			}
		}
	}
}
