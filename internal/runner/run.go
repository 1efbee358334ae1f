// Package runner hosts participant sessions. Each Run owns one experiment
// driver and serializes user events and display timers on a single goroutine.
package runner

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"foodval-go/internal/assets"
	"foodval-go/internal/experiment"
	"foodval-go/internal/models"

	"go.uber.org/zap"
)

// ErrRunClosed is returned by Do once the run has been closed.
var ErrRunClosed = errors.New("session run is closed")

// Params is everything needed to start one participant session.
type Params struct {
	Session     experiment.Session
	CSRFToken   string
	Experiment  *models.Experiment
	Images      *experiment.ImageSets
	Manifest    *assets.Manifest
	Placeholder string
	Rand        *rand.Rand
}

// Run is a live participant session.
type Run struct {
	Session   experiment.Session
	CSRFToken string

	log    *zap.Logger
	driver *experiment.Driver
	view   *ViewRenderer

	jobs    chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu       sync.Mutex
	timers   []*time.Timer
	snapshot experiment.Snapshot

	lastActive atomic.Int64
}

// Start builds the driver, launches the loop and shows the first screen.
func Start(log *zap.Logger, p Params) (*Run, error) {
	r := &Run{
		Session:   p.Session,
		CSRFToken: p.CSRFToken,
		log:       log.With(zap.String("session_id", p.Session.ID)),
		view:      NewViewRenderer(p.Manifest, p.Placeholder),
		jobs:      make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	driver, err := experiment.NewDriver(r.log, p.Experiment, p.Images, p.Session, r.view, loopClock{run: r}, rnd)
	if err != nil {
		return nil, err
	}
	r.driver = driver
	r.touch()

	go r.loop()

	if _, err := r.Do(context.Background(), func(d *experiment.Driver) error { return d.Start() }); err != nil {
		r.Close()
		return nil, err
	}
	r.log.Info("Session started", zap.String("participant_id", p.Session.Participant()))
	return r, nil
}

func (r *Run) loop() {
	defer close(r.stopped)
	for {
		select {
		case job := <-r.jobs:
			job()
			s := r.driver.Snapshot()
			r.mu.Lock()
			r.snapshot = s
			r.mu.Unlock()
		case <-r.done:
			return
		}
	}
}

// post hands f to the loop, giving up if the run closes first.
func (r *Run) post(ctx context.Context, f func()) error {
	select {
	case r.jobs <- f:
		return nil
	case <-r.done:
		return ErrRunClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs f on the loop and waits for it to finish.
func (r *Run) call(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if err := r.post(ctx, func() {
		defer close(finished)
		f()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRunClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn against the driver on the loop and returns the screen after it.
// An alert left by a previous event is cleared first.
func (r *Run) Do(ctx context.Context, fn func(d *experiment.Driver) error) (View, error) {
	var (
		view  View
		fnErr error
	)
	err := r.call(ctx, func() {
		r.view.clearAlert()
		fnErr = fn(r.driver)
		view = r.view.Current()
	})
	if err != nil {
		return View{}, err
	}
	r.touch()
	return view, fnErr
}

// View returns the screen currently on display, alert included.
func (r *Run) View(ctx context.Context) (View, error) {
	var view View
	err := r.call(ctx, func() { view = r.view.Current() })
	return view, err
}

// Rows copies the recorded rows.
func (r *Run) Rows(ctx context.Context) ([]experiment.Row, error) {
	var rows []experiment.Row
	err := r.call(ctx, func() { rows = r.driver.Recorder().Rows() })
	return rows, err
}

// CSV returns the header line and every recorded row.
func (r *Run) CSV(ctx context.Context) ([]byte, error) {
	var (
		buf    bytes.Buffer
		expErr error
	)
	if err := r.call(ctx, func() { expErr = r.driver.Recorder().Export(&buf) }); err != nil {
		return nil, err
	}
	return buf.Bytes(), expErr
}

// Snapshot returns driver progress as of the last loop iteration.
func (r *Run) Snapshot() experiment.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// IdleFor reports how long the run has gone without a participant event.
func (r *Run) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, r.lastActive.Load()))
}

func (r *Run) touch() {
	r.lastActive.Store(time.Now().UnixNano())
}

// Close stops pending timers and the loop. It is safe to call more than once.
func (r *Run) Close() {
	r.once.Do(func() {
		close(r.done)
		r.mu.Lock()
		for _, t := range r.timers {
			t.Stop()
		}
		r.timers = nil
		r.mu.Unlock()
		<-r.stopped
	})
}

// loopClock fires timer callbacks on the run's loop.
type loopClock struct {
	run *Run
}

func (c loopClock) Now() time.Time {
	return time.Now()
}

func (c loopClock) AfterFunc(d time.Duration, f func()) {
	r := c.run
	t := time.AfterFunc(d, func() {
		_ = r.post(context.Background(), f)
	})
	r.mu.Lock()
	r.timers = append(r.timers, t)
	r.mu.Unlock()
}
