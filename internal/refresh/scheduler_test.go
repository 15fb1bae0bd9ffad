//nolint:varnamelen // Test files use idiomatic short variable names (t, g, etc.)
package refresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/savegames/internal/refresh"
)

const key = "savegames"

type recordingSink struct {
	mu       sync.Mutex
	activity []string
	errs     []error
}

func (s *recordingSink) NotifyError(_ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs = append(s.errs, err)
}

func (s *recordingSink) StartActivity(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activity = append(s.activity, "start:"+name)
}

func (s *recordingSink) StopActivity(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activity = append(s.activity, "stop:"+name)
}

func (s *recordingSink) Activity() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.activity...)
}

func (s *recordingSink) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]error(nil), s.errs...)
}

type recorder struct {
	mu      sync.Mutex
	targets []refresh.Target
	err     error
	block   chan struct{}
}

func (r *recorder) run(_ context.Context, _ string, target refresh.Target) error {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	block := r.block
	err := r.err
	r.mu.Unlock()

	if block != nil {
		<-block
	}

	return err
}

func (r *recorder) Targets() []refresh.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]refresh.Target(nil), r.targets...)
}

func (r *recorder) Count() int {
	return len(r.Targets())
}

type fixture struct {
	clock     *refresh.ManualClock
	sink      *recordingSink
	rec       *recorder
	scheduler *refresh.Scheduler
}

func newFixture(t *testing.T, focused bool) *fixture {
	t.Helper()

	f := &fixture{
		clock: refresh.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		sink:  &recordingSink{},
		rec:   &recorder{},
	}
	f.scheduler = refresh.New(f.rec.run, f.sink, refresh.Config{
		QuietPeriod: time.Second,
		Clock:       f.clock,
		Focused:     focused,
	})

	t.Cleanup(f.scheduler.Close)

	return f
}

func dir(name string) refresh.Target {
	return refresh.Target{Dir: "/saves/" + name}
}

func TestSchedule_CollapsesBurstIntoOneRunWithLastTarget(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)

	for _, name := range []string{"a", "b", "c", "d"} {
		f.scheduler.Schedule(key, dir(name))
		f.clock.Advance(300 * time.Millisecond)
	}

	g.Expect(f.rec.Count()).To(Equal(0))

	f.clock.Advance(time.Second)

	g.Eventually(f.rec.Targets).Should(Equal([]refresh.Target{dir("d")}))
	g.Consistently(f.rec.Count, 50*time.Millisecond).Should(Equal(1))
}

func TestSchedule_WaitsForFullQuietPeriod(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.scheduler.Schedule(key, dir("a"))
	f.clock.Advance(999 * time.Millisecond)

	pending, ok := f.scheduler.Pending(key)
	g.Expect(ok).To(BeTrue())
	g.Expect(pending).To(Equal(dir("a")))
	g.Expect(f.rec.Count()).To(Equal(0))

	f.clock.Advance(time.Millisecond)

	g.Eventually(f.rec.Count).Should(Equal(1))
}

func TestSchedule_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.scheduler.Schedule("savegames", dir("a"))
	f.scheduler.Schedule("import", dir("b"))
	f.clock.Advance(time.Second)

	g.Eventually(f.rec.Targets).Should(ConsistOf(dir("a"), dir("b")))
	g.Expect(f.scheduler.Keys()).To(Equal([]string{"import", "savegames"}))
}

func TestSchedule_DefersWhileUnfocused(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, false)
	f.scheduler.Schedule(key, dir("a"))
	f.clock.Advance(time.Second)
	f.scheduler.Schedule(key, dir("b"))
	f.clock.Advance(time.Second)

	g.Consistently(f.rec.Count, 50*time.Millisecond).Should(Equal(0))

	pending, ok := f.scheduler.Pending(key)
	g.Expect(ok).To(BeTrue())
	g.Expect(pending).To(Equal(dir("b")))

	f.scheduler.SetFocused(true)
	g.Expect(f.scheduler.Focused()).To(BeTrue())
	g.Expect(f.clock.Waiting()).To(Equal(1))

	f.clock.Advance(time.Second)

	g.Eventually(f.rec.Targets).Should(Equal([]refresh.Target{dir("b")}))
}

func TestSchedule_LosingFocusDoesNotReplay(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.scheduler.SetFocused(false)
	f.scheduler.SetFocused(false)

	g.Expect(f.clock.Waiting()).To(Equal(0))

	_, ok := f.scheduler.Pending(key)
	g.Expect(ok).To(BeFalse())
}

func TestExecute_SignalsActivityAroundEveryRun(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.scheduler.Schedule(key, dir("a"))
	f.clock.Advance(time.Second)

	g.Eventually(f.sink.Activity).Should(Equal([]string{"start:savegames", "stop:savegames"}))
	g.Expect(f.sink.Errors()).To(BeEmpty())
}

func TestExecute_FailureIsReportedAndKeyReturnsToIdle(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.rec.err = errors.New("listing failed")

	f.scheduler.Schedule(key, dir("a"))
	f.clock.Advance(time.Second)

	g.Eventually(f.sink.Errors).Should(HaveLen(1))
	g.Expect(f.sink.Errors()[0]).To(MatchError("listing failed"))

	f.scheduler.Schedule(key, dir("b"))
	f.clock.Advance(time.Second)

	g.Eventually(f.rec.Count).Should(Equal(2))
}

func TestExecute_PanicStillStopsActivity(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	sink := &recordingSink{}
	scheduler := refresh.New(func(context.Context, string, refresh.Target) error {
		panic("boom")
	}, sink, refresh.Config{Focused: true})
	defer scheduler.Close()

	err := scheduler.RunNow(context.Background(), key, dir("a"))

	g.Expect(err).To(MatchError(ContainSubstring("boom")))
	g.Expect(sink.Activity()).To(Equal([]string{"start:savegames", "stop:savegames"}))
	g.Expect(sink.Errors()).To(HaveLen(1))
}

func TestExecute_RequestDuringRunBecomesTrailingRun(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	release := make(chan struct{})
	f.rec.block = release

	f.scheduler.Schedule(key, dir("a"))
	f.clock.Advance(time.Second)
	g.Eventually(f.rec.Count).Should(Equal(1))

	f.scheduler.Schedule(key, dir("b"))
	f.clock.Advance(time.Second)
	f.scheduler.Schedule(key, dir("c"))
	f.clock.Advance(time.Second)

	pending, ok := f.scheduler.Pending(key)
	g.Expect(ok).To(BeTrue())
	g.Expect(pending).To(Equal(dir("c")))
	g.Consistently(f.rec.Count, 50*time.Millisecond).Should(Equal(1))

	close(release)

	g.Eventually(f.rec.Targets).Should(Equal([]refresh.Target{dir("a"), dir("c")}))
	g.Consistently(f.rec.Count, 50*time.Millisecond).Should(Equal(2))
}

func TestRunNow_RunsSynchronouslyAndCancelsDebounce(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.scheduler.Schedule(key, dir("old"))

	err := f.scheduler.RunNow(context.Background(), key, dir("now"))

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.rec.Targets()).To(Equal([]refresh.Target{dir("now")}))
	g.Expect(f.clock.Waiting()).To(Equal(0))

	f.clock.Advance(2 * time.Second)
	g.Consistently(f.rec.Count, 50*time.Millisecond).Should(Equal(1))
}

func TestRunNow_ReturnsRunError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.rec.err = errors.New("denied")

	err := f.scheduler.RunNow(context.Background(), key, dir("a"))

	g.Expect(err).To(MatchError("denied"))
	g.Expect(f.sink.Errors()).To(HaveLen(1))
}

func TestRunNow_DeferredWhenUnfocused(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, false)

	err := f.scheduler.RunNow(context.Background(), key, dir("a"))

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.rec.Count()).To(Equal(0))
	g.Expect(f.sink.Activity()).To(BeEmpty())

	pending, ok := f.scheduler.Pending(key)
	g.Expect(ok).To(BeTrue())
	g.Expect(pending).To(Equal(dir("a")))
}

func TestClose_DropsPendingRefreshes(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, true)
	f.scheduler.Schedule(key, dir("a"))
	f.scheduler.Close()
	f.clock.Advance(time.Second)
	f.scheduler.Schedule(key, dir("b"))
	f.clock.Advance(time.Second)

	g.Consistently(f.rec.Count, 50*time.Millisecond).Should(Equal(0))
	g.Expect(f.scheduler.RunNow(context.Background(), key, dir("c"))).To(Succeed())
	g.Expect(f.rec.Count()).To(Equal(0))
}

func TestScheduler_RealClock(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rec := &recorder{}
	scheduler := refresh.New(rec.run, &recordingSink{}, refresh.Config{
		QuietPeriod: 20 * time.Millisecond,
		Focused:     true,
	})
	defer scheduler.Close()

	for _, name := range []string{"a", "b", "c"} {
		scheduler.Schedule(key, dir(name))
	}

	g.Eventually(rec.Targets).Should(Equal([]refresh.Target{dir("c")}))
	g.Consistently(rec.Count, 100*time.Millisecond).Should(Equal(1))
}
