// Package desk binds a record collection, its filter and its editor into
// one view model. Every user intent is an event method that returns the
// next immutable Snapshot.
//
// A Desk serializes all access with a mutex so it has exactly one writer
// at a time, including the completion of its delayed initial load.
package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pbaille/helpdesk/internal/clock"
	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/pbaille/helpdesk/internal/editor"
	"github.com/pbaille/helpdesk/internal/filter"
	"github.com/pbaille/helpdesk/internal/loader"
	"github.com/pbaille/helpdesk/internal/store"
)

// ErrClosed is returned by events on a closed desk
var ErrClosed = errors.New("desk is closed")

// ErrNotReady is returned by events that need loaded data
var ErrNotReady = errors.New("desk is not loaded")

// Status is the load state of a desk
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is what a desk can hold
type Record interface {
	store.Record
	filter.Searchable
}

// Kind is everything a desk needs to know about its record type
type Kind[R Record, F any] interface {
	store.Kind[R, F]
	editor.Forms[R, F]
}

// Snapshot is an immutable projection of a desk
type Snapshot[R Record, F any] struct {
	Status   Status         `json:"status"`
	Err      error          `json:"-"`
	Query    string         `json:"query"`
	Records  []R            `json:"records"`
	Filtered []R            `json:"filtered"`
	Selected *R             `json:"selected,omitempty"`
	Editor   editor.View[F] `json:"editor"`
}

// Options configures a desk
type Options[R Record] struct {
	Clock  clock.Clock
	Loader loader.Loader[R]
	// Delay is the simulated latency before the loader runs.
	Delay time.Duration
	// OnChange is called with the full record list after every
	// mutation, while the desk lock is held.
	OnChange func(records []R)
	Logger   *slog.Logger
}

// Desk is the view binder for one kind of record
type Desk[R Record, F any] struct {
	mu sync.Mutex

	kind     Kind[R, F]
	clock    clock.Clock
	records  *store.Collection[R, F]
	session  *editor.Session[R, F]
	loader   loader.Loader[R]
	delay    time.Duration
	onChange func([]R)
	logger   *slog.Logger

	status   Status
	err      error
	pending  *loader.Pending
	loadGen  int
	loaded   chan struct{}
	closed   bool
	query    string
	pred     filter.Predicate[R]
	selected int64
	hasSel   bool
}

// New creates an idle desk. Call Start to load its records.
func New[R Record, F any](kind Kind[R, F], opts Options[R]) *Desk[R, F] {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	records := store.NewCollection(store.Kind[R, F](kind), clk)
	return &Desk[R, F]{
		kind:     kind,
		clock:    clk,
		records:  records,
		session:  editor.New[R, F](kind, records),
		loader:   opts.Loader,
		delay:    opts.Delay,
		onChange: opts.OnChange,
		logger:   logger.With("kind", kind.Name()),
		loaded:   make(chan struct{}),
	}
}

// Start schedules the initial load. Starting a desk that is loading or
// ready does nothing; starting a failed desk retries.
func (d *Desk[R, F]) Start() Snapshot[R, F] {
	d.mu.Lock()
	if d.closed || d.status == Loading || d.status == Ready {
		defer d.mu.Unlock()
		return d.snapshot()
	}
	if d.loader == nil {
		d.status = Ready
		close(d.loaded)
		defer d.mu.Unlock()
		return d.snapshot()
	}

	d.status = Loading
	d.err = nil
	d.loadGen++
	gen := d.loadGen
	if d.isLoadedLocked() {
		d.loaded = make(chan struct{})
	}
	d.mu.Unlock()

	d.logger.Debug("loading records", "delay", d.delay)
	pending := loader.Delayed(d.clock, d.delay, d.loader, func(records []R, err error) {
		d.finishLoad(gen, records, err)
	})

	d.mu.Lock()
	if gen != d.loadGen {
		// closed or restarted while scheduling
		d.mu.Unlock()
		pending.Cancel()
		return d.Snapshot()
	}
	defer d.mu.Unlock()
	if d.status == Loading {
		d.pending = pending
	}
	return d.snapshot()
}

// Retry restarts a failed load
func (d *Desk[R, F]) Retry() (Snapshot[R, F], error) {
	d.mu.Lock()
	status := d.status
	d.mu.Unlock()
	if status != Failed {
		return d.Snapshot(), fmt.Errorf("retry: desk is %s", status)
	}
	return d.Start(), nil
}

// Wait blocks until the current load settles or ctx is done
func (d *Desk[R, F]) Wait(ctx context.Context) (Snapshot[R, F], error) {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()

	select {
	case <-loaded:
	case <-ctx.Done():
		return d.Snapshot(), ctx.Err()
	}

	snap := d.Snapshot()
	return snap, snap.Err
}

// Close cancels a pending load. No event mutates the desk afterwards.
func (d *Desk[R, F]) Close() {
	d.mu.Lock()
	d.closed = true
	d.loadGen++
	pending := d.pending
	d.pending = nil
	if d.status == Loading {
		d.status = Idle
	}
	if !d.isLoadedLocked() {
		close(d.loaded)
	}
	d.mu.Unlock()

	if pending != nil && pending.Cancel() {
		d.logger.Debug("pending load cancelled")
	}
}

func (d *Desk[R, F]) finishLoad(gen int, records []R, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || gen != d.loadGen {
		return
	}

	d.pending = nil
	if err != nil {
		d.status = Failed
		d.err = err
		d.records.Replace(nil)
		d.logger.Warn("load failed", "error", err)
	} else {
		d.status = Ready
		d.records.Replace(records)
		d.logger.Debug("records loaded", "count", len(records))
	}
	if !d.isLoadedLocked() {
		close(d.loaded)
	}
}

func (d *Desk[R, F]) isLoadedLocked() bool {
	select {
	case <-d.loaded:
		return true
	default:
		return false
	}
}

// Snapshot returns the current projection without changing anything
func (d *Desk[R, F]) Snapshot() Snapshot[R, F] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

// Search sets the free-text query
func (d *Desk[R, F]) Search(text string) Snapshot[R, F] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.query = text
	return d.snapshot()
}

// FilterBy sets the categorical predicate; nil clears it
func (d *Desk[R, F]) FilterBy(pred filter.Predicate[R]) Snapshot[R, F] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pred = pred
	return d.snapshot()
}

// Select opens a record for viewing, counting a view for kinds that
// have a view counter
func (d *Desk[R, F]) Select(id int64) (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return d.snapshot(), err
	}

	if _, err := d.records.RecordView(id); err != nil {
		if !errors.Is(err, store.ErrNotViewable) {
			return d.snapshot(), err
		}
		if _, err := d.records.Get(id); err != nil {
			return d.snapshot(), err
		}
	} else {
		d.changed()
	}
	d.selected, d.hasSel = id, true
	return d.snapshot(), nil
}

// Deselect clears the selection
func (d *Desk[R, F]) Deselect() Snapshot[R, F] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasSel = false
	return d.snapshot()
}

// Create opens the editor on a blank form
func (d *Desk[R, F]) Create() (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return d.snapshot(), err
	}
	d.session.Open(nil)
	return d.snapshot(), nil
}

// Edit opens the editor on a copy of the record's fields
func (d *Desk[R, F]) Edit(id int64) (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return d.snapshot(), err
	}
	r, err := d.records.Get(id)
	if err != nil {
		return d.snapshot(), err
	}
	d.session.Open(&r)
	return d.snapshot(), nil
}

// Change replaces the editor's in-progress form
func (d *Desk[R, F]) Change(form F) (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.session.SetForm(form); err != nil {
		return d.snapshot(), err
	}
	return d.snapshot(), nil
}

// Save commits the form through the editor. The saved record becomes
// the selection.
func (d *Desk[R, F]) Save(form F) (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return d.snapshot(), err
	}
	return d.save(form)
}

// Commit opens the editor on target (or a blank form when target is
// nil), lets edit adjust the form and saves it, all under one lock. It
// is the atomic form of Create/Edit followed by Save.
//
// Commit reuses the desk's editor session: a draft opened with Create or
// Edit and changed with Change is discarded, and the session is closed
// afterwards whether the save succeeds or not.
func (d *Desk[R, F]) Commit(target *int64, edit func(form *F)) (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return d.snapshot(), err
	}

	if target == nil {
		d.session.Open(nil)
	} else {
		r, err := d.records.Get(*target)
		if err != nil {
			return d.snapshot(), err
		}
		d.session.Open(&r)
	}

	form := d.session.Form()
	if edit != nil {
		edit(&form)
	}
	snap, err := d.save(form)
	if err != nil {
		d.session.Cancel()
		return d.snapshot(), err
	}
	return snap, nil
}

func (d *Desk[R, F]) save(form F) (Snapshot[R, F], error) {
	saved, err := d.session.Save(form)
	if err != nil {
		return d.snapshot(), err
	}
	d.selected, d.hasSel = saved.RecordID(), true
	d.changed()
	return d.snapshot(), nil
}

// Cancel closes the editor, discarding the form
func (d *Desk[R, F]) Cancel() Snapshot[R, F] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.Cancel()
	return d.snapshot()
}

// Delete removes a record. Callers confirm before calling. A selection
// or editor pointing at the record is cleared.
func (d *Desk[R, F]) Delete(id int64) (Snapshot[R, F], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return d.snapshot(), err
	}
	if err := d.records.Delete(id); err != nil {
		return d.snapshot(), err
	}
	if d.hasSel && d.selected == id {
		d.hasSel = false
	}
	if target, editing := d.session.TargetID(); editing && target == id {
		d.session.Cancel()
	}
	d.changed()
	return d.snapshot(), nil
}

// Get returns a record without selecting it
func (d *Desk[R, F]) Get(id int64) (R, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records.Get(id)
}

// Modify applies a content edit to a record outside the editor
func (d *Desk[R, F]) Modify(id int64, fn func(R) (R, error)) (R, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		var zero R
		return zero, err
	}
	r, err := d.records.Modify(id, fn)
	if err != nil {
		return r, err
	}
	d.changed()
	return r, nil
}

func (d *Desk[R, F]) usable() error {
	switch {
	case d.closed:
		return ErrClosed
	case d.status == Failed:
		return d.err
	case d.status != Ready:
		return ErrNotReady
	}
	return nil
}

func (d *Desk[R, F]) changed() {
	if d.onChange != nil {
		d.onChange(d.records.List())
	}
}

func (d *Desk[R, F]) snapshot() Snapshot[R, F] {
	records := cloneAll(d.records.List())
	snap := Snapshot[R, F]{
		Status:   d.status,
		Err:      d.err,
		Query:    d.query,
		Records:  records,
		Filtered: filter.Apply(records, d.query, d.pred),
		Editor:   d.session.View(),
	}
	if d.hasSel {
		if r, err := d.records.Get(d.selected); err == nil {
			r = cloneAll([]R{r})[0]
			snap.Selected = &r
		}
	}
	return snap
}

// cloneAll detaches records that hold slices from the desk's copy
func cloneAll[R any](records []R) []R {
	for i, r := range records {
		if c, ok := any(r).(interface{ Clone() R }); ok {
			records[i] = c.Clone()
		}
	}
	return records
}

// compile-time check that the domain kinds fit a desk
var (
	_ Kind[domain.Ticket, domain.TicketForm]   = domain.TicketKind{}
	_ Kind[domain.Article, domain.ArticleForm] = domain.ArticleKind{}
)
