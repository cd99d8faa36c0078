// Package roster caches the backend's technician list and refreshes it on a
// cron schedule.
package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/benchdesk/internal/backend"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Lister is the backend call the roster needs.
type Lister interface {
	ListTechnicians(ctx context.Context) ([]backend.Technician, error)
}

// Roster is a technician cache.
type Roster struct {
	source   Lister
	schedule cron.Schedule
	log      *zap.Logger

	mu      sync.RWMutex
	techs   []backend.Technician
	updated time.Time
}

// New creates a Roster refreshed on the given cron expression.
func New(source Lister, expr string, log *zap.Logger) (*Roster, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("roster: parse schedule %q: %w", expr, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Roster{source: source, schedule: sched, log: log}, nil
}

// Refresh reloads the roster. On error the previous list is kept.
func (r *Roster) Refresh(ctx context.Context) error {
	techs, err := r.source.ListTechnicians(ctx)
	if err != nil {
		return fmt.Errorf("roster: refresh: %w", err)
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i].Username < techs[j].Username })

	r.mu.Lock()
	r.techs = techs
	r.updated = time.Now()
	r.mu.Unlock()
	r.log.Debug("roster refreshed", zap.Int("technicians", len(techs)))
	return nil
}

// Technicians returns the cached roster sorted by username, loading it first
// if it was never loaded.
func (r *Roster) Technicians(ctx context.Context) ([]backend.Technician, error) {
	r.mu.RLock()
	loaded := !r.updated.IsZero()
	r.mu.RUnlock()
	if !loaded {
		if err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]backend.Technician, len(r.techs))
	copy(out, r.techs)
	return out, nil
}

// Get returns the cached technician with the given id.
func (r *Roster) Get(id backend.ID) (backend.Technician, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.techs {
		if t.ID == id {
			return t, true
		}
	}
	return backend.Technician{}, false
}

// Updated returns the time of the last successful refresh.
func (r *Roster) Updated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

// next returns the duration until the next scheduled refresh.
func (r *Roster) next(now time.Time) time.Duration {
	d := r.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run refreshes the roster now and then on schedule until ctx is done.
func (r *Roster) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.log.Warn("roster refresh failed", zap.Error(err))
	}

	timer := time.NewTimer(r.next(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := r.Refresh(ctx); err != nil {
				r.log.Warn("roster refresh failed", zap.Error(err))
			}
			timer.Reset(r.next(time.Now()))
		}
	}
}
