package presenter

import (
	"time"

	"vpresent/log"
	"vpresent/media"
	"vpresent/util/pipeline"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// processOutputLoop pulls frames while the mixer has input and the pool
// has free samples.
func (p *Presenter) processOutputLoop() {
	for p.sampleNotify {
		more, err := p.processOutput()
		if err != nil {
			log.Warn("ProcessOutput", zap.String("err", err.Error()))
			return
		}

		if !more {
			return
		}
	}
}

// processOutput fetches and delivers one frame. It reports whether the
// loop should keep going.
func (p *Presenter) processOutput() (bool, error) {
	if p.state != media.Started && p.prerolled {
		return false, nil
	}

	if p.mixer == nil {
		return false, errors.Wrap(media.ErrNotInitialized, "no mixer")
	}

	s, err := p.pool.Acquire()
	if err != nil {
		if errors.Is(err, media.ErrEmpty) {
			return false, nil
		}

		return false, err
	}

	start, timed := p.clockTime()

	if err := p.mixer.ProcessOutput(s); err != nil {
		if rerr := p.pool.Release(s); rerr != nil {
			log.Warn("ReturnSample", zap.String("err", rerr.Error()))
		}

		switch {
		case errors.Is(err, media.ErrTypeNotSet):
			err = p.renegotiateMediaType()
			return err == nil, err
		case errors.Is(err, media.ErrStreamChange):
			return false, p.setMediaType(nil)
		case errors.Is(err, media.ErrNeedMoreInput):
			p.sampleNotify = false
			p.checkEndOfStream()

			return false, nil
		default:
			return false, err
		}
	}

	if timed {
		if end, ok := p.clockTime(); ok {
			p.notifyEvent(media.EventProcessingLatency, int64(end-start), nil)
		}
	}

	p.trackSample(s)
	p.observePending()

	if p.step.state == media.StepNone {
		p.deliverSample(s, false)
	} else {
		p.deliverFrameStepSample(s)
	}

	p.prerolled = true

	return true, nil
}

func (p *Presenter) clockTime() (d time.Duration, ok bool) {
	if p.clock == nil {
		return 0, false
	}

	d, err := p.clock.Time()
	if err != nil {
		return 0, false
	}

	return d, true
}

func (p *Presenter) trackSample(s *media.Sample) {
	s.Track(p.sampleFreed)
}

// sampleFreed runs on whichever goroutine dropped the last reference,
// often the scheduler's, so the real work is handed to the worker.
func (p *Presenter) sampleFreed(s *media.Sample) {
	switch err := p.worker.Go([]interface{}{&sampleFreeMsg{s: s}}); err {
	case nil:
	case pipeline.ErrorChanFull:
		go p.onSampleFree(s)
	default:
		log.Debug("SampleFreed", zap.Int("sample", s.ID), zap.String("err", err.Error()))
	}
}

func (p *Presenter) onSampleFree(s *media.Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == media.Shutdown {
		return
	}

	if p.step.state == media.StepScheduled && p.step.sampleNoRef == s {
		p.completeFrameStep(s)
	}

	if s.Token() != p.tokenCounter {
		log.Debug("OnSampleFree", zap.Int("sample", s.ID), zap.Uint32("token", s.Token()), zap.Uint32("current", p.tokenCounter))
		p.observeDiscard(DiscardStale)

		return
	}

	if err := p.pool.Release(s); err != nil {
		log.Warn("OnSampleFree", zap.Int("sample", s.ID), zap.String("err", err.Error()))
		return
	}

	p.observePending()
	p.processOutputLoop()
	p.checkEndOfStream()
}

// deliverSample hands s to the scheduler. Outside the Started state, and
// while scrubbing, samples are shown as soon as they are dequeued.
func (p *Presenter) deliverSample(s *media.Sample, presentNow bool) {
	presentNow = presentNow || p.state != media.Started || p.isScrubbing()

	if p.isScrubbing() && p.sampleTimePassed(s) {
		p.discard(s, DiscardScrub)
		return
	}

	ds, err := p.engine.CheckDeviceState()
	if err == nil && ds == media.DeviceRemoved {
		err = errors.WithStack(media.ErrDeviceRemoved)
	}

	if err == nil {
		err = p.sched.ScheduleSample(s, presentNow)
	}

	if err != nil {
		p.discard(s, DiscardAbort)
		p.notifyEvent(media.EventErrorAbort, 0, err)

		return
	}

	if ds == media.DeviceReset {
		p.notifyEvent(media.EventDisplayChanged, 0, nil)
	}
}

func (p *Presenter) discard(s *media.Sample, reason string) {
	p.stats.dropped()
	p.observeDiscard(reason)
	s.Release()
}

// sampleTimePassed reports whether the sample ended before the clock's
// current position.
func (p *Presenter) sampleTimePassed(s *media.Sample) bool {
	ts, ok := s.Time()
	if !ok || s.Duration() <= 0 {
		return false
	}

	now, ok := p.clockTime()
	if !ok {
		return false
	}

	return ts+s.Duration() < now
}

// checkEndOfStream raises EventComplete once the upstream signalled end of
// stream, has nothing left to give and every sample is back in the pool.
func (p *Presenter) checkEndOfStream() {
	if !p.endStreaming || p.sampleNotify {
		return
	}

	if p.pool.Pending() > 0 {
		return
	}

	p.notifyEvent(media.EventComplete, 0, nil)
	p.endStreaming = false
}
