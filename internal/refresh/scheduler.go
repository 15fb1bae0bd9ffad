// Package refresh debounces refresh requests per key and gates them on
// application focus.
//
// A key (for example "savegames") identifies one kind of refresh. Requests
// for the same key that arrive within the quiet period collapse into a single
// run with the most recent target. While the application is unfocused, a due
// request is parked as the key's pending refresh and replayed when focus
// returns. At most one run per key is in flight; a request that becomes due
// while a run is in progress is queued as a trailing run.
package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joe/savegames/internal/logging"
)

// DefaultQuietPeriod is how long a key must stay quiet before its refresh runs.
const DefaultQuietPeriod = time.Second

// Target carries the arguments of a refresh.
type Target struct {
	// Dir is the directory to refresh.
	Dir string
	// Reason is a short description used in logs.
	Reason string
}

// RunFunc performs one refresh.
type RunFunc func(ctx context.Context, key string, target Target) error

// Sink receives busy signals and failures.
type Sink interface {
	StartActivity(name string)
	StopActivity(name string)
	NotifyError(key string, err error)
}

// Config configures a Scheduler.
type Config struct {
	QuietPeriod time.Duration
	Clock       Clock
	Logger      *zap.Logger
	// Focused is the initial focus state.
	Focused bool
}

// Scheduler debounces refresh requests per key.
type Scheduler struct {
	run    RunFunc
	sink   Sink
	clock  Clock
	quiet  time.Duration
	logger *zap.Logger

	ctx    context.Context //nolint:containedctx // Cancelled by Close to stop in-flight runs
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	focused bool
	closed  bool
	keys    map[string]*keyState
}

type keyState struct {
	timer    Timer
	seq      uint64
	target   Target
	running  bool
	trailing *Target
	deferred *Target
}

// New creates a scheduler that executes refreshes with run and reports to sink.
func New(run RunFunc, sink Sink, cfg Config) *Scheduler {
	quiet := cfg.QuietPeriod
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		run:     run,
		sink:    sink,
		clock:   clock,
		quiet:   quiet,
		logger:  logging.OrNop(cfg.Logger),
		ctx:     ctx,
		cancel:  cancel,
		focused: cfg.Focused,
		keys:    make(map[string]*keyState),
	}
}

// Close stops all timers, drops pending refreshes and waits for in-flight runs.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true

	for _, st := range s.keys {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}

		st.deferred = nil
		st.trailing = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Focused reports the current focus state.
func (s *Scheduler) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.focused
}

// Keys returns every key that has been scheduled at least once.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.keys))
	for key := range s.keys {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Pending returns the refresh for key that is waiting to run, either on its
// quiet period or on focus.
func (s *Scheduler) Pending(key string) (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.keys[key]
	if !ok {
		return Target{}, false
	}

	switch {
	case st.deferred != nil:
		return *st.deferred, true
	case st.timer != nil:
		return st.target, true
	case st.trailing != nil:
		return *st.trailing, true
	}

	return Target{}, false
}

// RunNow runs the refresh for key immediately on the calling goroutine,
// cancelling any debounce in progress. When unfocused the request becomes the
// key's pending refresh instead; when a run is already in flight it is queued
// as the trailing run. In both cases RunNow returns nil without waiting.
func (s *Scheduler) RunNow(ctx context.Context, key string, target Target) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	st := s.stateLocked(key)
	s.stopTimerLocked(st)

	if !s.focused {
		st.deferred = &target
		s.mu.Unlock()
		s.logger.Debug("refresh deferred until focus", zap.String("key", key), zap.String("dir", target.Dir))

		return nil
	}

	if st.running {
		st.trailing = &target
		s.mu.Unlock()

		return nil
	}

	st.deferred = nil
	st.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	return s.execute(ctx, key, target)
}

// Schedule requests a debounced refresh of key. Each call restarts the quiet
// period and replaces the target.
func (s *Scheduler) Schedule(key string, target Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.scheduleLocked(s.stateLocked(key), key, target)
}

// SetFocused updates the focus state. Gaining focus re-schedules every
// refresh that was deferred while unfocused.
func (s *Scheduler) SetFocused(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gained := focused && !s.focused
	s.focused = focused

	if !gained || s.closed {
		return
	}

	for key, st := range s.keys {
		if st.deferred == nil {
			continue
		}

		target := *st.deferred
		st.deferred = nil
		s.scheduleLocked(st, key, target)
	}
}

func (s *Scheduler) scheduleLocked(st *keyState, key string, target Target) {
	s.stopTimerLocked(st)

	// A fresh request supersedes whatever was parked for focus.
	st.deferred = nil
	st.target = target
	st.seq++

	seq := st.seq
	st.timer = s.clock.AfterFunc(s.quiet, func() { s.fire(key, seq) })
}

func (s *Scheduler) fire(key string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.keys[key]
	if !ok || st.seq != seq || s.closed {
		return
	}

	st.timer = nil
	s.startLocked(st, key, st.target)
}

// startLocked runs target for key in the background, or parks it when the
// key is busy or the application is unfocused.
func (s *Scheduler) startLocked(st *keyState, key string, target Target) {
	if !s.focused {
		st.deferred = &target
		s.logger.Debug("refresh deferred until focus", zap.String("key", key), zap.String("dir", target.Dir))

		return
	}

	if st.running {
		st.trailing = &target

		return
	}

	st.running = true
	s.wg.Add(1)

	go func() {
		_ = s.execute(s.ctx, key, target)
	}()
}

func (s *Scheduler) execute(ctx context.Context, key string, target Target) (err error) {
	s.sink.StartActivity(key)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh %s panicked: %v", key, r)
		}

		s.sink.StopActivity(key)

		if err != nil {
			s.logger.Warn("refresh failed", zap.String("key", key), zap.String("dir", target.Dir), zap.Error(err))
			s.sink.NotifyError(key, err)
		}

		s.finish(key)
		s.wg.Done()
	}()

	s.logger.Debug("refresh started",
		zap.String("key", key),
		zap.String("dir", target.Dir),
		zap.String("reason", target.Reason),
	)

	return s.run(ctx, key, target)
}

func (s *Scheduler) finish(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.keys[key]
	st.running = false

	if st.trailing == nil || s.closed {
		st.trailing = nil

		return
	}

	next := *st.trailing
	st.trailing = nil
	s.startLocked(st, key, next)
}

func (s *Scheduler) stateLocked(key string) *keyState {
	st, ok := s.keys[key]
	if !ok {
		st = &keyState{}
		s.keys[key] = st
	}

	return st
}

func (s *Scheduler) stopTimerLocked(st *keyState) {
	if st.timer == nil {
		return
	}

	st.timer.Stop()
	st.timer = nil
	st.seq++
}
