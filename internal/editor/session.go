// Package editor holds the transient create/edit state of a record. The
// session works on a copy of the record's fields (a form) and only
// touches the store when a valid form is saved.
package editor

import (
	"errors"
	"fmt"

	"github.com/pbaille/helpdesk/internal/store"
)

// ErrSessionClosed is returned by Save when nothing is being edited
var ErrSessionClosed = errors.New("editor session is closed")

// State is the editor's mode
type State int

const (
	Closed State = iota
	Creating
	Editing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Forms converts records to editable forms and validates them
type Forms[R store.Record, F any] interface {
	Blank() F
	Form(record R) F
	Validate(form F) error
}

// Target is where saved forms are committed
type Target[R store.Record, F any] interface {
	Create(form F) R
	Update(id int64, form F) (R, error)
}

// View is an immutable copy of the session state
type View[F any] struct {
	State    State `json:"state"`
	TargetID int64 `json:"target_id,omitempty"`
	Form     F     `json:"form"`
}

// Session is a single editor. At most one record is open at a time.
type Session[R store.Record, F any] struct {
	forms  Forms[R, F]
	target Target[R, F]
	state  State
	id     int64
	form   F
}

// New creates a closed session committing to target
func New[R store.Record, F any](forms Forms[R, F], target Target[R, F]) *Session[R, F] {
	return &Session[R, F]{forms: forms, target: target}
}

// Open starts creating a record when record is nil, otherwise starts
// editing a copy of record's fields. Any unsaved edits are discarded.
func (s *Session[R, F]) Open(record *R) {
	if record == nil {
		s.state = Creating
		s.id = 0
		s.form = s.forms.Blank()
		return
	}
	s.state = Editing
	s.id = (*record).RecordID()
	s.form = s.forms.Form(*record)
}

// Cancel closes the session and discards the form
func (s *Session[R, F]) Cancel() {
	var zero F
	s.state = Closed
	s.id = 0
	s.form = zero
}

// SetForm replaces the in-progress form without saving it
func (s *Session[R, F]) SetForm(form F) error {
	if s.state == Closed {
		return ErrSessionClosed
	}
	s.form = form
	return nil
}

// Save validates form and commits it: a create in Creating state, an
// update of the target in Editing state. The session closes on success
// and keeps its state and form on failure.
func (s *Session[R, F]) Save(form F) (R, error) {
	var zero R
	switch s.state {
	case Closed:
		return zero, ErrSessionClosed
	case Creating, Editing:
	default:
		return zero, fmt.Errorf("save: unknown state %v", s.state)
	}

	s.form = form
	if err := s.forms.Validate(form); err != nil {
		return zero, err
	}

	var saved R
	if s.state == Creating {
		saved = s.target.Create(form)
	} else {
		var err error
		saved, err = s.target.Update(s.id, form)
		if err != nil {
			return zero, err
		}
	}

	s.Cancel()
	return saved, nil
}

// State returns the current mode
func (s *Session[R, F]) State() State { return s.state }

// TargetID returns the id being edited, if any
func (s *Session[R, F]) TargetID() (int64, bool) {
	return s.id, s.state == Editing
}

// Form returns a copy of the in-progress form
func (s *Session[R, F]) Form() F { return s.form }

// View returns an immutable copy of the session state
func (s *Session[R, F]) View() View[F] {
	return View[F]{State: s.state, TargetID: s.id, Form: s.form}
}
