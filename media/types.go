package media

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

type PixelFormat string

const (
	FormatRGB32  PixelFormat = "RGB32"
	FormatARGB32 PixelFormat = "ARGB32"
	FormatNV12   PixelFormat = "NV12"
	FormatYUY2   PixelFormat = "YUY2"
)

// FrameSize returns the number of bytes a w x h image occupies.
func (f PixelFormat) FrameSize(w, h int) int {
	switch f {
	case FormatRGB32, FormatARGB32:
		return w * h * 4
	case FormatYUY2:
		return w * h * 2
	case FormatNV12:
		return w * h * 3 / 2
	default:
		return 0
	}
}

// Code is the numeric format id used on the preview wire.
func (f PixelFormat) Code() uint32 {
	switch f {
	case FormatRGB32:
		return 1
	case FormatARGB32:
		return 2
	case FormatNV12:
		return 3
	case FormatYUY2:
		return 4
	default:
		return 0
	}
}

type Ratio struct {
	Num uint32
	Den uint32
}

func (r Ratio) Valid() bool {
	return r.Num != 0 && r.Den != 0
}

func (r Ratio) Float() float64 {
	if !r.Valid() {
		return 0
	}

	return float64(r.Num) / float64(r.Den)
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

type MediaType struct {
	Width      int
	Height     int
	Format     PixelFormat
	FrameRate  Ratio
	Interlaced bool
	AspectX    int
	AspectY    int
}

// FrameInterval is the nominal duration of one frame, 0 when the frame
// rate is unknown.
func (mt *MediaType) FrameInterval() time.Duration {
	if mt == nil || !mt.FrameRate.Valid() {
		return 0
	}

	return time.Duration(int64(time.Second) * int64(mt.FrameRate.Den) / int64(mt.FrameRate.Num))
}

// typeKey is the part of a media type that decides whether samples must be
// reallocated. Ratios are reduced, and an unset aspect ratio means square
// pixels, so 60/2 fps and 30/1 fps describe the same type.
type typeKey struct {
	Width      int
	Height     int
	Format     PixelFormat
	FrameRate  Ratio
	Interlaced bool
	Aspect     Ratio
}

func (r Ratio) reduced() Ratio {
	if !r.Valid() {
		return Ratio{}
	}

	a, b := r.Num, r.Den
	for b != 0 {
		a, b = b, a%b
	}

	return Ratio{Num: r.Num / a, Den: r.Den / a}
}

func (mt *MediaType) key() typeKey {
	aspect := Ratio{Num: uint32(mt.AspectX), Den: uint32(mt.AspectY)}
	if mt.AspectX <= 0 || mt.AspectY <= 0 {
		aspect = Ratio{Num: 1, Den: 1}
	}

	return typeKey{
		Width:      mt.Width,
		Height:     mt.Height,
		Format:     mt.Format,
		FrameRate:  mt.FrameRate.reduced(),
		Interlaced: mt.Interlaced,
		Aspect:     aspect.reduced(),
	}
}

// Hash identifies the type up to equivalent frame and aspect ratios.
func (mt *MediaType) Hash() (uint64, error) {
	return hashstructure.Hash(mt.key(), hashstructure.FormatV2, nil)
}

func (mt *MediaType) Equal(o *MediaType) bool {
	if mt == nil || o == nil {
		return mt == o
	}

	h1, err := mt.Hash()
	if err != nil {
		return false
	}

	h2, err := o.Hash()
	if err != nil {
		return false
	}

	return h1 == h2
}

func (mt *MediaType) Clone() *MediaType {
	if mt == nil {
		return nil
	}

	c := *mt

	return &c
}

func (mt *MediaType) String() string {
	if mt == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%dx%d %s @%s", mt.Width, mt.Height, mt.Format, mt.FrameRate)
}

type DeviceState int

const (
	DeviceOK DeviceState = iota
	DeviceReset
	DeviceRemoved
)

func (d DeviceState) String() string {
	switch d {
	case DeviceOK:
		return "ok"
	case DeviceReset:
		return "reset"
	case DeviceRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type ClockState int

const (
	ClockInvalid ClockState = iota
	ClockStopped
	ClockRunning
	ClockPaused
)

func (c ClockState) String() string {
	switch c {
	case ClockStopped:
		return "stopped"
	case ClockRunning:
		return "running"
	case ClockPaused:
		return "paused"
	default:
		return "invalid"
	}
}

type RenderState int

const (
	Stopped RenderState = iota
	Started
	Paused
	Shutdown
)

func (r RenderState) String() string {
	switch r {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case Paused:
		return "paused"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

type FrameStepState int

const (
	StepNone FrameStepState = iota
	StepWaitingStart
	StepPending
	StepScheduled
	StepComplete
)

func (f FrameStepState) String() string {
	switch f {
	case StepNone:
		return "none"
	case StepWaitingStart:
		return "waiting_start"
	case StepPending:
		return "pending"
	case StepScheduled:
		return "scheduled"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

type EventCode int

const (
	EventComplete EventCode = iota + 1
	EventErrorAbort
	EventDisplayChanged
	EventProcessingLatency
	EventStepComplete
	EventScrubTime
)

func (c EventCode) String() string {
	switch c {
	case EventComplete:
		return "complete"
	case EventErrorAbort:
		return "error_abort"
	case EventDisplayChanged:
		return "display_changed"
	case EventProcessingLatency:
		return "processing_latency"
	case EventStepComplete:
		return "step_complete"
	case EventScrubTime:
		return "scrub_time"
	default:
		return "unknown"
	}
}

// Event is a presenter notification. Param carries the code specific value:
// the latency in ns, the scrub position in ns, or 1 for a cancelled step.
type Event struct {
	Code   EventCode
	Param  int64
	Err    error
	Time   time.Time
	Stream string
}
