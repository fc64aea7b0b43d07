package source

import (
	"sync"
	"time"

	"vpresent/log"
	"vpresent/media"
	"vpresent/util/timer"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Decoder is a synthetic upstream. A ticker makes one new frame available
// per interval; ProcessOutput paints it into the caller's sample.
type Decoder struct {
	mu   sync.Mutex
	opts Options

	set      *media.MediaType
	produced int
	consumed int
	eos      bool
	ticker   timer.Ticker
}

func NewDecoder(opts ...Option) *Decoder {
	o := Options{Frames: DefaultFrames}

	for _, opt := range opts {
		opt(&o)
	}

	if len(o.Types) == 0 {
		o.Types = DefaultTypes(DefaultWidth, DefaultHeight, DefaultFrameRate)
	}

	return &Decoder{opts: o}
}

func (d *Decoder) OutputAvailableType(index int) (*media.MediaType, error) {
	if index < 0 || index >= len(d.opts.Types) {
		return nil, media.ErrNoMoreTypes
	}

	return d.opts.Types[index].Clone(), nil
}

func (d *Decoder) SetOutputType(mt *media.MediaType, testOnly bool) error {
	if mt != nil && !d.offers(mt) {
		return errors.Wrap(media.ErrFormatUnsupported, mt.String())
	}

	if testOnly {
		return nil
	}

	d.mu.Lock()
	d.set = mt.Clone()
	d.mu.Unlock()

	return nil
}

func (d *Decoder) offers(mt *media.MediaType) bool {
	for _, t := range d.opts.Types {
		if t.Equal(mt) {
			return true
		}
	}

	return false
}

// Start begins producing input. It is a no-op while already running.
func (d *Decoder) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ticker != nil || d.eos {
		return
	}

	interval := d.opts.Interval
	if interval <= 0 {
		interval = d.frameInterval()
	}

	d.ticker = timer.NewTickerN(interval, d.opts.Frames, d.tick, d.finish)
}

func (d *Decoder) Stop() {
	d.mu.Lock()
	t := d.ticker
	d.ticker = nil
	d.mu.Unlock()

	if t != nil {
		t.Stop()
	}
}

// frameInterval follows the negotiated type, else the first offered one.
func (d *Decoder) frameInterval() time.Duration {
	mt := d.set
	if mt == nil {
		mt = d.opts.Types[0]
	}

	if iv := mt.FrameInterval(); iv > 0 {
		return iv
	}

	return time.Second / time.Duration(DefaultFrameRate.Num)
}

func (d *Decoder) tick(int) {
	d.mu.Lock()
	d.produced++
	d.mu.Unlock()

	if d.opts.Notify != nil {
		d.opts.Notify()
	}
}

func (d *Decoder) finish() {
	d.mu.Lock()
	d.eos = true
	n := d.produced
	d.mu.Unlock()

	log.Debug("DecoderEndOfStream", zap.Int("frames", n))

	if d.opts.EndOfStream != nil {
		d.opts.EndOfStream()
	}
}

// ProcessOutput fills s with the next frame.
func (d *Decoder) ProcessOutput(s *media.Sample) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.set == nil {
		return media.ErrTypeNotSet
	}

	if d.consumed >= d.produced {
		return media.ErrNeedMoreInput
	}

	if s.Format != d.set.Format || s.Width != d.set.Width || s.Height != d.set.Height {
		return media.ErrStreamChange
	}

	idx := d.consumed
	d.consumed++

	interval := d.frameInterval()
	s.SetTime(d.opts.Start + interval*time.Duration(idx))
	s.SetDuration(interval)
	paint(s, idx)

	return nil
}

// Pending is how many produced frames are still waiting to be pulled.
func (d *Decoder) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.produced - d.consumed
}

func (d *Decoder) Produced() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.produced
}

func (d *Decoder) EndOfStream() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.eos
}
