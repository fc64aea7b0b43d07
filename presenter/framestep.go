package presenter

import (
	"vpresent/media"
)

// frameStep is the nested step state. samples holds frames that arrived
// while a step waits for the clock or after the stepped frame went out.
type frameStep struct {
	state       media.FrameStepState
	steps       int
	samples     []*media.Sample
	sampleNoRef *media.Sample
}

func (f *frameStep) push(s *media.Sample) {
	f.samples = append(f.samples, s)
}

func (f *frameStep) pop() (*media.Sample, bool) {
	if len(f.samples) == 0 {
		return nil, false
	}

	s := f.samples[0]
	f.samples[0] = nil
	f.samples = f.samples[1:]

	return s, true
}

func (f *frameStep) clearSamples() {
	samples := f.samples
	f.samples = nil

	for _, s := range samples {
		s.Release()
	}
}

func (p *Presenter) prepareFrameStep(steps int) error {
	p.step.steps += steps
	p.step.state = media.StepWaitingStart

	if p.state == media.Started {
		p.startFrameStep()
	}

	return nil
}

// startFrameStep runs when the clock starts. A waiting step becomes
// pending and consumes the frames held so far; with no step in progress
// the held frames go to the scheduler.
func (p *Presenter) startFrameStep() {
	if p.step.state == media.StepComplete {
		p.step.state = media.StepNone
	}

	switch p.step.state {
	case media.StepWaitingStart:
		p.step.state = media.StepPending

		for p.step.state == media.StepPending {
			s, ok := p.step.pop()
			if !ok {
				break
			}

			p.deliverFrameStepSample(s)
		}
	case media.StepNone:
		for {
			s, ok := p.step.pop()
			if !ok {
				break
			}

			p.deliverSample(s, false)
		}
	}
}

// deliverFrameStepSample counts s against the outstanding steps. Only the
// last frame of a step is shown.
func (p *Presenter) deliverFrameStepSample(s *media.Sample) {
	if p.isScrubbing() && p.sampleTimePassed(s) {
		p.discard(s, DiscardScrub)
		return
	}

	if p.step.state >= media.StepScheduled {
		p.step.push(s)
		return
	}

	if p.step.steps > 0 {
		p.step.steps--
	}

	switch {
	case p.step.steps > 0:
		p.discard(s, DiscardStep)
	case p.step.state == media.StepWaitingStart:
		p.step.push(s)
	default:
		p.step.state = media.StepScheduled
		p.step.sampleNoRef = s
		p.deliverSample(s, true)
	}
}

func (p *Presenter) completeFrameStep(s *media.Sample) {
	p.step.state = media.StepComplete
	p.step.sampleNoRef = nil

	p.notifyEvent(media.EventStepComplete, 0, nil)

	if p.isScrubbing() {
		ts, _ := s.Time()
		p.notifyEvent(media.EventScrubTime, int64(ts), nil)
	}
}

// cancelFrameStep reports an aborted step when one was in flight.
func (p *Presenter) cancelFrameStep() {
	old := p.step.state

	p.step.state = media.StepNone
	p.step.steps = 0
	p.step.sampleNoRef = nil

	if old > media.StepNone && old < media.StepComplete {
		p.notifyEvent(media.EventStepComplete, 1, nil)
	}
}
