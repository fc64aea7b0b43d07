package presenter

import (
	"math"
	"time"

	"vpresent/log"
	"vpresent/media"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (p *Presenter) OnClockStart(sys time.Time, offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := transition(p.state, opStart)
	if err != nil {
		return err
	}

	wasActive := p.isActive()
	p.state = next

	if wasActive {
		if offset != media.CurrentPosition {
			p.flush()
		}
	} else {
		p.startFrameStep()
	}

	log.Debug("OnClockStart", zap.Duration("offset", offset), zap.Bool("active", wasActive))

	p.processOutputLoop()

	return nil
}

func (p *Presenter) OnClockRestart(sys time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := transition(p.state, opRestart)
	if err != nil {
		return err
	}

	p.state = next
	p.startFrameStep()
	p.processOutputLoop()

	return nil
}

func (p *Presenter) OnClockPause(sys time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := transition(p.state, opPause)
	if err != nil {
		return err
	}

	p.state = next

	return nil
}

func (p *Presenter) OnClockStop(sys time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := transition(p.state, opStop)
	if err != nil {
		return err
	}

	if p.state == next {
		return nil
	}

	p.state = next
	p.flush()

	if p.step.state != media.StepNone {
		p.cancelFrameStep()
	}

	return nil
}

// OnClockSetRate records a new playback rate. Leaving scrubbing cancels
// any frame step in progress.
func (p *Presenter) OnClockSetRate(sys time.Time, rate float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := transition(p.state, opSetRate); err != nil {
		return err
	}

	if _, err := p.isRateSupported(false, rate); err != nil {
		return err
	}

	if p.rate == 0 && rate != 0 {
		p.cancelFrameStep()
		p.step.clearSamples()
	}

	p.rate = rate
	p.sched.SetClockRate(rate)

	return nil
}

func (p *Presenter) Rate() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rate
}

func (p *Presenter) SlowestRate() float32 {
	return 0
}

func (p *Presenter) FastestRate(thin bool) (float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return 0, err
	}

	return p.maxRate(thin), nil
}

// IsRateSupported returns rate itself when supported, otherwise the
// nearest rate that is, together with ErrUnsupportedRate.
func (p *Presenter) IsRateSupported(thin bool, rate float32) (float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return 0, err
	}

	return p.isRateSupported(thin, rate)
}

func (p *Presenter) isRateSupported(thin bool, rate float32) (float32, error) {
	max := p.maxRate(thin)

	if float32(math.Abs(float64(rate))) <= max {
		return rate, nil
	}

	nearest := max
	if rate < 0 {
		nearest = -max
	}

	return nearest, errors.Wrapf(media.ErrUnsupportedRate, "%v exceeds %v", rate, max)
}

// maxRate is one frame per display refresh, unbounded when thinning is
// allowed or either rate is unknown.
func (p *Presenter) maxRate(thin bool) float32 {
	if thin || p.mediaType == nil {
		return math.MaxFloat32
	}

	fps := p.mediaType.FrameRate.Float()
	refresh := p.engine.RefreshRate()

	if fps == 0 || refresh == 0 {
		return math.MaxFloat32
	}

	return float32(refresh / fps)
}
