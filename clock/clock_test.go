package clock

import (
	"errors"
	"testing"
	"time"

	"vpresent/media"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) Now() time.Time {
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

type recordingSink struct {
	calls   []string
	offsets []time.Duration
	reject  float32
}

func (r *recordingSink) OnClockStart(_ time.Time, offset time.Duration) error {
	r.calls = append(r.calls, "start")
	r.offsets = append(r.offsets, offset)

	return nil
}

func (r *recordingSink) OnClockStop(time.Time) error {
	r.calls = append(r.calls, "stop")
	return nil
}

func (r *recordingSink) OnClockPause(time.Time) error {
	r.calls = append(r.calls, "pause")
	return nil
}

func (r *recordingSink) OnClockRestart(time.Time) error {
	r.calls = append(r.calls, "restart")
	return nil
}

func (r *recordingSink) OnClockSetRate(_ time.Time, rate float32) error {
	r.calls = append(r.calls, "rate")

	if r.reject != 0 && rate == r.reject {
		return media.ErrUnsupportedRate
	}

	return nil
}

func newTestClock() (*SystemClock, *fakeNow, *recordingSink) {
	n := &fakeNow{t: time.Unix(1000, 0)}
	c := NewSystemClock(OptionWithNow(n.Now))
	s := &recordingSink{}
	c.AddStateSink(s)

	return c, n, s
}

func mustTime(t *testing.T, c *SystemClock) time.Duration {
	t.Helper()

	d, err := c.Time()
	if err != nil {
		t.Fatal(err)
	}

	return d
}

func TestRunPauseRestart(t *testing.T) {
	c, n, s := newTestClock()

	if err := c.Start(time.Second); err != nil {
		t.Fatal(err)
	}

	n.Advance(500 * time.Millisecond)

	if got := mustTime(t, c); got != 1500*time.Millisecond {
		t.Fatalf("time %v", got)
	}

	_ = c.Pause()
	n.Advance(time.Hour)

	if got := mustTime(t, c); got != 1500*time.Millisecond {
		t.Fatalf("paused clock moved to %v", got)
	}

	if err := c.Restart(); err != nil {
		t.Fatal(err)
	}

	n.Advance(100 * time.Millisecond)

	if got := mustTime(t, c); got != 1600*time.Millisecond {
		t.Fatalf("time %v after restart", got)
	}

	_ = c.Stop()

	if got := mustTime(t, c); got != 0 {
		t.Fatalf("stopped clock at %v", got)
	}

	want := []string{"start", "pause", "restart", "stop"}
	if len(s.calls) != len(want) {
		t.Fatalf("calls %v, want %v", s.calls, want)
	}

	for i := range want {
		if s.calls[i] != want[i] {
			t.Fatalf("calls %v, want %v", s.calls, want)
		}
	}
}

func TestRestartNeedsPause(t *testing.T) {
	c, _, _ := newTestClock()

	if err := c.Restart(); !errors.Is(err, media.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestStartAtCurrentPosition(t *testing.T) {
	c, n, s := newTestClock()

	_ = c.Start(2 * time.Second)
	n.Advance(time.Second)
	_ = c.Start(media.CurrentPosition)

	if got := mustTime(t, c); got != 3*time.Second {
		t.Fatalf("time %v, want 3s", got)
	}

	if s.offsets[1] != media.CurrentPosition {
		t.Fatalf("sink should see the no-seek offset")
	}
}

func TestSetRate(t *testing.T) {
	c, n, s := newTestClock()

	_ = c.Start(0)
	n.Advance(time.Second)

	if err := c.SetRate(2); err != nil {
		t.Fatal(err)
	}

	n.Advance(time.Second)

	if got := mustTime(t, c); got != 3*time.Second {
		t.Fatalf("time %v, want 3s", got)
	}

	s.reject = 8

	if err := c.SetRate(8); !errors.Is(err, media.ErrUnsupportedRate) {
		t.Fatalf("got %v", err)
	}

	if c.Rate() != 2 {
		t.Fatalf("rejected rate kept: %v", c.Rate())
	}
}
