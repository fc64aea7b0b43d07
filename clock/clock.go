package clock

import (
	"sync"
	"time"

	"vpresent/log"
	"vpresent/media"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Options struct {
	Now func() time.Time
}

type Option func(*Options)

// OptionWithNow replaces the wall clock, for tests.
func OptionWithNow(f func() time.Time) Option {
	return func(o *Options) {
		o.Now = f
	}
}

// SystemClock is a presentation clock driven by wall time. Presentation
// time advances at rate times wall time while running.
type SystemClock struct {
	now func() time.Time

	mu     sync.Mutex
	state  media.ClockState
	rate   float32
	base   time.Duration
	anchor time.Time
	sinks  []media.StateSink
}

func NewSystemClock(opts ...Option) *SystemClock {
	o := Options{Now: time.Now}

	for _, opt := range opts {
		opt(&o)
	}

	return &SystemClock{
		now:   o.Now,
		state: media.ClockStopped,
		rate:  1,
	}
}

func (c *SystemClock) AddStateSink(s media.StateSink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, s)
	c.mu.Unlock()
}

func (c *SystemClock) RemoveStateSink(s media.StateSink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, v := range c.sinks {
		if v == s {
			c.sinks = append(c.sinks[:i], c.sinks[i+1:]...)
			return
		}
	}
}

func (c *SystemClock) State() media.ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *SystemClock) Rate() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rate
}

func (c *SystemClock) Time() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == media.ClockInvalid {
		return 0, errors.WithStack(media.ErrNotInitialized)
	}

	return c.position(c.now()), nil
}

func (c *SystemClock) position(now time.Time) time.Duration {
	if c.state != media.ClockRunning {
		return c.base
	}

	return c.base + time.Duration(float64(now.Sub(c.anchor))*float64(c.rate))
}

// Start runs the clock from offset. Starting a paused clock at
// media.CurrentPosition is a restart.
func (c *SystemClock) Start(offset time.Duration) error {
	c.mu.Lock()
	now := c.now()

	if offset == media.CurrentPosition && c.state == media.ClockPaused {
		c.anchor = now
		c.state = media.ClockRunning
		sinks := c.snapshot()
		c.mu.Unlock()

		return notify("OnClockRestart", sinks, func(s media.StateSink) error {
			return s.OnClockRestart(now)
		})
	}

	if offset != media.CurrentPosition {
		c.base = offset
	} else {
		c.base = c.position(now)
	}

	c.anchor = now
	c.state = media.ClockRunning
	sinks := c.snapshot()
	c.mu.Unlock()

	return notify("OnClockStart", sinks, func(s media.StateSink) error {
		return s.OnClockStart(now, offset)
	})
}

func (c *SystemClock) Restart() error {
	c.mu.Lock()
	paused := c.state == media.ClockPaused
	c.mu.Unlock()

	if !paused {
		return errors.WithStack(media.ErrInvalidState)
	}

	return c.Start(media.CurrentPosition)
}

func (c *SystemClock) Pause() error {
	c.mu.Lock()
	if c.state == media.ClockPaused {
		c.mu.Unlock()
		return nil
	}

	now := c.now()
	c.base = c.position(now)
	c.state = media.ClockPaused
	sinks := c.snapshot()
	c.mu.Unlock()

	return notify("OnClockPause", sinks, func(s media.StateSink) error {
		return s.OnClockPause(now)
	})
}

func (c *SystemClock) Stop() error {
	c.mu.Lock()
	now := c.now()
	c.base = 0
	c.state = media.ClockStopped
	sinks := c.snapshot()
	c.mu.Unlock()

	return notify("OnClockStop", sinks, func(s media.StateSink) error {
		return s.OnClockStop(now)
	})
}

// SetRate changes the rate without a jump in presentation time. Sinks
// may reject the rate, in which case the previous rate is restored.
func (c *SystemClock) SetRate(rate float32) error {
	c.mu.Lock()
	now := c.now()
	oldBase, oldAnchor, oldRate := c.base, c.anchor, c.rate

	c.base = c.position(now)
	c.anchor = now
	c.rate = rate
	sinks := c.snapshot()
	c.mu.Unlock()

	err := notify("OnClockSetRate", sinks, func(s media.StateSink) error {
		return s.OnClockSetRate(now, rate)
	})

	if err != nil {
		c.mu.Lock()
		c.base, c.anchor, c.rate = oldBase, oldAnchor, oldRate
		c.mu.Unlock()
	}

	return err
}

func (c *SystemClock) snapshot() []media.StateSink {
	return append([]media.StateSink(nil), c.sinks...)
}

// notify calls every sink and returns the first error.
func notify(name string, sinks []media.StateSink, f func(media.StateSink) error) error {
	var first error

	for _, s := range sinks {
		if err := f(s); err != nil {
			log.Warn(name, zap.String("err", err.Error()))

			if first == nil {
				first = err
			}
		}
	}

	return first
}
