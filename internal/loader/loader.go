// Package loader supplies the initial record collection of a desk. A
// load completes once, with records or an error, and may be delayed to
// simulate network latency. Delayed loads can be cancelled so that an
// abandoned desk is never mutated after teardown.
package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pbaille/helpdesk/internal/clock"
	"github.com/pbaille/helpdesk/internal/domain"
)

// Loader fetches a collection
type Loader[R any] interface {
	Load(ctx context.Context) ([]R, error)
}

// Func adapts a function to Loader
type Func[R any] func(ctx context.Context) ([]R, error)

// Load calls f
func (f Func[R]) Load(ctx context.Context) ([]R, error) { return f(ctx) }

// Fixture returns a loader yielding a copy of records
func Fixture[R any](records ...R) Loader[R] {
	return Func[R](func(ctx context.Context) ([]R, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return slices.Clone(records), nil
	})
}

// RecordReader is the persistence side of a Snapshot loader
type RecordReader interface {
	LoadRecords(key string, records any) error
}

// Snapshot loads records persisted under key, falling back to seed when
// nothing has been stored yet
type Snapshot[R any] struct {
	Store RecordReader
	Key   string
	Seed  Loader[R]
}

// Load reads the snapshot
func (s Snapshot[R]) Load(ctx context.Context) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []R
	err := s.Store.LoadRecords(s.Key, &records)
	if errors.Is(err, domain.ErrNotFound) && s.Seed != nil {
		return s.Seed.Load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return records, nil
}

// Pending is a scheduled single-shot load
type Pending struct {
	timer  *clock.Timer
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
	done      bool
}

// Delayed schedules l to run after d on clk and hands the outcome to
// done. Load failures reach done as a *domain.TransportError. done is
// not called if Cancel returns true.
func Delayed[R any](clk clock.Clock, d time.Duration, l Loader[R], done func([]R, error)) *Pending {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pending{cancel: cancel}

	run := func() {
		records, err := l.Load(ctx)
		if err != nil {
			err = &domain.TransportError{Err: err}
		}

		p.mu.Lock()
		if p.cancelled {
			p.mu.Unlock()
			return
		}
		p.done = true
		p.mu.Unlock()

		cancel()
		done(records, err)
	}

	p.timer = clk.AfterFunc(d, run)
	return p
}

// Cancel abandons the load. It reports whether the load was still
// pending.
func (p *Pending) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled || p.done {
		return false
	}
	p.cancelled = true
	p.cancel()
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}
