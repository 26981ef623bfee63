// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

// Package autosave saves issue edits in the background. Edits are debounced
// and only written when they change the fingerprint of the last save.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDebounce    = 800 * time.Millisecond
	DefaultAckDuration = 1200 * time.Millisecond
)

// State of the reconciler
type State int

const (
	Idle State = iota
	PendingSave
	Saving
)

func (s State) String() string {
	switch s {
	case PendingSave:
		return "pending"
	case Saving:
		return "saving"
	default:
		return "idle"
	}
}

// Saver persists the full set of fields
type Saver interface {
	Save(ctx context.Context, fields Fields) error
}

// SaverFunc adapts a function to the Saver interface
type SaverFunc func(ctx context.Context, fields Fields) error

func (fn SaverFunc) Save(ctx context.Context, fields Fields) error {
	return fn(ctx, fields)
}

type Options struct {
	Debounce    time.Duration // Quiet period before a save
	AckDuration time.Duration // How long the saved acknowledgment stays on
	OnError     func(error)   // Receives save failures
	OnChange    func(Status)  // Called after every state change
}

var DefaultOptions = &Options{
	Debounce:    DefaultDebounce,
	AckDuration: DefaultAckDuration,
}

// Status is a snapshot of the reconciler state
type Status struct {
	State State
	Saved bool // True for AckDuration after a successful save
	Err   error
}

// Reconciler owns the fields of one edit session
type Reconciler struct {
	opts  *Options
	saver Saver
	ctx   context.Context

	mu        sync.Mutex
	fields    Fields
	lastSaved string
	state     State
	saved     bool
	lastErr   error
	closed    bool
	timer     *time.Timer
	token     uint64 // Invalidates timers armed before the current one
	ackTimer  *time.Timer

	// saveMu serializes saves
	saveMu sync.Mutex
}

// New returns a reconciler seeded with fields. The seed counts as saved.
func New(ctx context.Context, saver Saver, fields Fields) *Reconciler {
	return NewWithOptions(ctx, saver, fields, DefaultOptions)
}

func NewWithOptions(ctx context.Context, saver Saver, fields Fields, opts *Options) *Reconciler {
	o := *DefaultOptions
	if opts != nil {
		o = *opts
	}
	opts = &o
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.AckDuration <= 0 {
		opts.AckDuration = DefaultAckDuration
	}
	r := &Reconciler{
		opts:   opts,
		saver:  saver,
		ctx:    ctx,
		fields: fields.Clone(),
	}
	r.lastSaved = r.fields.Fingerprint()
	return r
}

// Fields returns a copy of the current fields
func (r *Reconciler) Fields() Fields {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.Clone()
}

// Status returns the current state of the reconciler
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Reconciler) statusLocked() Status {
	return Status{State: r.state, Saved: r.saved, Err: r.lastErr}
}

// Dirty returns true if the fields differ from the last saved version
func (r *Reconciler) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.Fingerprint() != r.lastSaved
}

// Edit applies fn to the fields and schedules a save
func (r *Reconciler) Edit(fn func(*Fields)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		logrus.Warn("Ignoring edit on a closed autosave session")
		return
	}
	fn(&r.fields)
	r.scheduleLocked()
	r.mu.Unlock()
	r.notify()
}

// scheduleLocked replaces the pending timer. The old timer is stopped and
// its token invalidated before the new one is armed, so a callback that
// already fired sees a stale token and does nothing.
func (r *Reconciler) scheduleLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.token++
	token := r.token
	if r.state != Saving {
		r.state = PendingSave
	}
	r.timer = time.AfterFunc(r.opts.Debounce, func() {
		r.fire(token)
	})
}

// fire runs when a debounce timer expires
func (r *Reconciler) fire(token uint64) {
	// Wait for any save in flight before looking at the fingerprint
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	if r.closed || token != r.token {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	if _, err := r.save(); err != nil {
		logrus.Warnf("Autosave failed: %v", err)
	}
}

// save writes the fields if they changed since the last save. The caller
// must hold saveMu.
func (r *Reconciler) save() (bool, error) {
	r.mu.Lock()
	fields := r.fields.Clone()
	fingerprint := fields.Fingerprint()
	if fingerprint == r.lastSaved {
		r.state = Idle
		r.mu.Unlock()
		r.notify()
		logrus.Debug("Fields unchanged since last save, skipping")
		return false, nil
	}
	r.state = Saving
	r.saved = false
	r.mu.Unlock()
	r.notify()

	err := r.saver.Save(r.ctx, fields)

	r.mu.Lock()
	if r.closed {
		// The session is gone, the result is of no use to anyone
		r.mu.Unlock()
		return err == nil, err
	}
	r.state = Idle
	if r.timer != nil {
		// An edit arrived while saving
		r.state = PendingSave
	}
	if err != nil {
		r.lastErr = err
		r.mu.Unlock()
		r.notify()
		if r.opts.OnError != nil {
			r.opts.OnError(err)
		}
		return false, errors.Wrap(err, "autosave")
	}
	r.lastSaved = fingerprint
	r.lastErr = nil
	r.saved = true
	if r.ackTimer != nil {
		r.ackTimer.Stop()
	}
	r.ackTimer = time.AfterFunc(r.opts.AckDuration, r.clearAck)
	r.mu.Unlock()
	r.notify()
	logrus.Info("Saved")
	return true, nil
}

func (r *Reconciler) clearAck() {
	r.mu.Lock()
	if !r.saved || r.closed {
		r.mu.Unlock()
		return
	}
	r.saved = false
	r.mu.Unlock()
	r.notify()
}

// Flush cancels the pending timer and saves right away if needed. It
// returns true when a write was made.
func (r *Reconciler) Flush() (bool, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, errors.New("autosave session is closed")
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.token++
	r.mu.Unlock()
	return r.save()
}

// Close ends the session. Pending timers are cancelled, a save already in
// flight completes but its result is discarded.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.token++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.ackTimer != nil {
		r.ackTimer.Stop()
	}
}

func (r *Reconciler) notify() {
	if r.opts.OnChange == nil {
		return
	}
	r.opts.OnChange(r.Status())
}
