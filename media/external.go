package media

import (
	"math"
	"time"
)

// Mixer is the upstream stage that fills samples on demand.
type Mixer interface {
	OutputAvailableType(index int) (*MediaType, error)
	SetOutputType(mt *MediaType, testOnly bool) error
	ProcessOutput(s *Sample) error
}

// Clock is the presentation clock. Time is the current presentation time.
type Clock interface {
	Time() (time.Duration, error)
	State() ClockState
}

type EventSink interface {
	Notify(Event)
}

// PresentEngine performs the actual display. PresentSample with a nil
// sample repaints the last frame.
type PresentEngine interface {
	CheckFormat(mt *MediaType) error
	CreateVideoSamples(mt *MediaType, n int) ([]*Sample, error)
	ReleaseResources()
	CheckDeviceState() (DeviceState, error)
	PresentSample(s *Sample, target time.Duration) error
	RefreshRate() float64
}

// CurrentPosition passed as a start offset means "start from where the
// clock is now", i.e. no seek.
const CurrentPosition time.Duration = math.MinInt64

// StateSink receives presentation clock transitions.
type StateSink interface {
	OnClockStart(sys time.Time, offset time.Duration) error
	OnClockStop(sys time.Time) error
	OnClockPause(sys time.Time) error
	OnClockRestart(sys time.Time) error
	OnClockSetRate(sys time.Time, rate float32) error
}
