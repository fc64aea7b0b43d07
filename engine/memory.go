package engine

import (
	"sync"
	"time"

	"vpresent/log"
	"vpresent/media"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultRefreshRate = 60.0

// Frame is what reaches the display: a copy of a presented sample.
type Frame struct {
	Width   int
	Height  int
	Format  media.PixelFormat
	Token   uint32
	Target  time.Duration
	Data    []byte
	Repaint bool
}

type Options struct {
	RefreshRate float64
	Formats     []media.PixelFormat
	Display     func(Frame)
}

type Option func(*Options)

func OptionWithRefreshRate(hz float64) Option {
	return func(o *Options) {
		o.RefreshRate = hz
	}
}

func OptionWithFormats(f ...media.PixelFormat) Option {
	return func(o *Options) {
		o.Formats = f
	}
}

// OptionWithDisplay installs the hook that receives every shown frame. It
// runs on the presenting goroutine.
func OptionWithDisplay(f func(Frame)) Option {
	return func(o *Options) {
		o.Display = f
	}
}

// Memory is a present engine backed by host memory. It keeps a copy of the
// last frame for repaints rather than a reference to the sample, so the
// sample goes back to the pool as soon as it is shown.
type Memory struct {
	opts    Options
	formats map[media.PixelFormat]bool

	mu        sync.Mutex
	device    media.DeviceState
	lost      bool
	allocated int
	last      Frame
	hasLast   bool
	presented int64
}

func NewMemory(opts ...Option) *Memory {
	o := Options{
		RefreshRate: DefaultRefreshRate,
		Formats:     []media.PixelFormat{media.FormatRGB32, media.FormatARGB32, media.FormatNV12, media.FormatYUY2},
	}

	for _, opt := range opts {
		opt(&o)
	}

	m := &Memory{
		opts:    o,
		formats: make(map[media.PixelFormat]bool),
	}

	for _, f := range o.Formats {
		m.formats[f] = true
	}

	return m
}

func (m *Memory) CheckFormat(mt *media.MediaType) error {
	if mt == nil || mt.Width <= 0 || mt.Height <= 0 {
		return errors.Wrap(media.ErrFormatUnsupported, "bad frame size")
	}

	if !m.formats[mt.Format] || mt.Format.FrameSize(mt.Width, mt.Height) == 0 {
		return errors.Wrapf(media.ErrFormatUnsupported, "format %s", mt.Format)
	}

	return nil
}

func (m *Memory) CreateVideoSamples(mt *media.MediaType, n int) ([]*media.Sample, error) {
	if err := m.CheckFormat(mt); err != nil {
		return nil, err
	}

	res := make([]*media.Sample, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, media.NewSample(i, mt))
	}

	m.mu.Lock()
	m.allocated = n
	m.mu.Unlock()

	log.Debug("CreateVideoSamples", zap.String("type", mt.String()), zap.Int("n", n))

	return res, nil
}

func (m *Memory) ReleaseResources() {
	m.mu.Lock()
	m.allocated = 0
	m.hasLast = false
	m.last = Frame{}
	m.mu.Unlock()
}

// InjectDeviceState simulates a device failure. DeviceReset marks the
// device lost until the next CheckDeviceState recreates it; DeviceRemoved
// is permanent.
func (m *Memory) InjectDeviceState(d media.DeviceState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch d {
	case media.DeviceReset:
		m.lost = true
	case media.DeviceRemoved:
		m.device = media.DeviceRemoved
	default:
		m.lost = false
		m.device = media.DeviceOK
	}
}

func (m *Memory) CheckDeviceState() (media.DeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == media.DeviceRemoved {
		return media.DeviceRemoved, nil
	}

	if m.lost {
		m.lost = false
		m.hasLast = false

		log.Warn("CheckDeviceState", zap.String("device", "recreated"))

		return media.DeviceReset, nil
	}

	return media.DeviceOK, nil
}

// PresentSample copies s out and hands the copy to the display hook. A nil
// sample shows the last frame again.
func (m *Memory) PresentSample(s *media.Sample, target time.Duration) error {
	m.mu.Lock()

	switch {
	case m.device == media.DeviceRemoved:
		m.mu.Unlock()
		return errors.WithStack(media.ErrDeviceRemoved)
	case m.lost:
		m.mu.Unlock()
		return errors.WithStack(media.ErrDeviceLost)
	}

	var f Frame

	if s == nil {
		if !m.hasLast {
			m.mu.Unlock()
			return nil
		}

		f = m.last
		f.Repaint = true
	} else {
		buf := make([]byte, len(s.Data))
		copy(buf, s.Data)

		m.last = Frame{
			Width:  s.Width,
			Height: s.Height,
			Format: s.Format,
			Token:  s.Token(),
			Target: target,
			Data:   buf,
		}
		m.hasLast = true
		f = m.last
	}

	m.presented++
	m.mu.Unlock()

	if m.opts.Display != nil {
		m.opts.Display(f)
	}

	return nil
}

func (m *Memory) RefreshRate() float64 {
	return m.opts.RefreshRate
}

func (m *Memory) Presented() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.presented
}

// LastFrame returns the most recent frame. Its Data must not be modified.
func (m *Memory) LastFrame() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.last, m.hasLast
}
