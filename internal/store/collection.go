package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pbaille/helpdesk/internal/clock"
	"github.com/pbaille/helpdesk/internal/domain"
)

// ErrNotViewable is returned by RecordView for kinds without a view counter
var ErrNotViewable = errors.New("record kind has no view counter")

// Record is an entity held by a Collection
type Record interface {
	RecordID() int64
}

// Kind tells a Collection how to build and mutate records of type R
// from forms of type F
type Kind[R Record, F any] interface {
	Name() string
	New(id int64, form F, now time.Time) R
	Merge(existing R, form F, now time.Time) R
	Touch(record R, now time.Time) R
	Viewed(record R) (R, bool)
}

// Collection is the in-memory owner of one kind of record.
//
// A Collection is not safe for concurrent use. It assumes a single
// logical writer; callers that serve several goroutines must serialize
// access (desk.Desk does).
type Collection[R Record, F any] struct {
	kind    Kind[R, F]
	clock   clock.Clock
	records []R
	lastID  int64
}

// NewCollection creates an empty collection
func NewCollection[R Record, F any](kind Kind[R, F], clk clock.Clock) *Collection[R, F] {
	return &Collection[R, F]{kind: kind, clock: clk}
}

// Kind returns the collection's record kind
func (c *Collection[R, F]) Kind() Kind[R, F] { return c.kind }

// Replace installs a loaded set of records, keeping their order
func (c *Collection[R, F]) Replace(records []R) {
	c.records = slices.Clone(records)
	c.lastID = 0
	for _, r := range c.records {
		c.lastID = max(c.lastID, r.RecordID())
	}
}

// List returns the records, newest created first for records created
// through this collection and load order otherwise
func (c *Collection[R, F]) List() []R {
	return slices.Clone(c.records)
}

// Len returns the number of records
func (c *Collection[R, F]) Len() int { return len(c.records) }

// Get returns the record with the given id
func (c *Collection[R, F]) Get(id int64) (R, error) {
	i := c.index(id)
	if i < 0 {
		var zero R
		return zero, domain.NotFound(c.kind.Name(), id)
	}
	return c.records[i], nil
}

// Create builds a record with a fresh id and prepends it
func (c *Collection[R, F]) Create(form F) R {
	now := c.clock.Now()
	r := c.kind.New(c.nextID(now), form, now)
	c.records = slices.Insert(c.records, 0, r)
	return r
}

// Update merges form over the record with the given id
func (c *Collection[R, F]) Update(id int64, form F) (R, error) {
	i := c.index(id)
	if i < 0 {
		var zero R
		return zero, domain.NotFound(c.kind.Name(), id)
	}
	c.records[i] = c.kind.Merge(c.records[i], form, c.clock.Now())
	return c.records[i], nil
}

// Modify applies fn to the record with the given id and refreshes its
// update time. An error from fn leaves the record unchanged.
func (c *Collection[R, F]) Modify(id int64, fn func(R) (R, error)) (R, error) {
	i := c.index(id)
	if i < 0 {
		var zero R
		return zero, domain.NotFound(c.kind.Name(), id)
	}
	r, err := fn(c.records[i])
	if err != nil {
		var zero R
		return zero, err
	}
	if r.RecordID() != id {
		var zero R
		return zero, fmt.Errorf("modify %s %d: id changed to %d", c.kind.Name(), id, r.RecordID())
	}
	c.records[i] = c.kind.Touch(r, c.clock.Now())
	return c.records[i], nil
}

// Delete removes the record with the given id. Deleting twice fails.
func (c *Collection[R, F]) Delete(id int64) error {
	i := c.index(id)
	if i < 0 {
		return domain.NotFound(c.kind.Name(), id)
	}
	c.records = slices.Delete(c.records, i, i+1)
	return nil
}

// RecordView counts one view of the record without touching its
// update time
func (c *Collection[R, F]) RecordView(id int64) (R, error) {
	i := c.index(id)
	if i < 0 {
		var zero R
		return zero, domain.NotFound(c.kind.Name(), id)
	}
	r, ok := c.kind.Viewed(c.records[i])
	if !ok {
		var zero R
		return zero, fmt.Errorf("view %s %d: %w", c.kind.Name(), id, ErrNotViewable)
	}
	c.records[i] = r
	return r, nil
}

func (c *Collection[R, F]) index(id int64) int {
	return slices.IndexFunc(c.records, func(r R) bool { return r.RecordID() == id })
}

// nextID derives an id from the clock, falling back to the next integer
// when the clock has not moved past the highest id seen
func (c *Collection[R, F]) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}
