package scheduler

import (
	"math"
	"sync"
	"time"

	"vpresent/log"
	"vpresent/media"
	"vpresent/util/pipeline"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Presenter is called on the scheduler goroutine for every due sample.
// It must not block on anything that waits for the scheduler.
type Presenter interface {
	PresentSample(s *media.Sample, target time.Duration) error
}

type Observer interface {
	ObservePresent(elapsed time.Duration, late bool)
	ObserveQueueDepth(n int)
}

type scheduleMsg struct{}

type startMsg struct {
	pipeline.CallMsgIns
}

type flushMsg struct {
	pipeline.CallMsgIns
}

type Scheduler struct {
	opts  Options
	cb    Presenter
	queue *Queue

	runMu sync.Mutex

	mu             sync.Mutex
	pip            *pipeline.Pipeline
	clock          media.Clock
	rate           float32
	frameInterval  time.Duration
	quarterFrame   time.Duration
	avgPresent     float64
	lastSampleTime time.Duration
	// gen is bumped by every flush. The loop drops a sample it dequeued
	// under an older generation instead of putting it back.
	gen uint64
}

func New(cb Presenter, opts ...Option) *Scheduler {
	o := Options{
		PresentAlpha: DefaultPresentAlpha,
		FlushTimeout: DefaultFlushTimeout,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Scheduler{
		opts:  o,
		cb:    cb,
		queue: NewQueue(),
		rate:  1,
	}
}

// SetFrameRate recomputes the nominal frame interval. An invalid ratio
// clears it, leaving the threshold to the present-duration average.
func (s *Scheduler) SetFrameRate(r media.Ratio) {
	var interval time.Duration
	if r.Valid() {
		interval = time.Duration(int64(time.Second) * int64(r.Den) / int64(r.Num))
	}

	s.mu.Lock()
	s.frameInterval = interval
	s.quarterFrame = interval / 4
	s.mu.Unlock()
}

func (s *Scheduler) SetClockRate(rate float32) {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

func (s *Scheduler) ClockRate() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rate
}

func (s *Scheduler) FrameInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frameInterval
}

// Threshold is the window inside which a sample counts as due.
func (s *Scheduler) Threshold() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.threshold()
}

func (s *Scheduler) threshold() time.Duration {
	avg := time.Duration(s.avgPresent)
	if avg > s.quarterFrame {
		return avg
	}

	return s.quarterFrame
}

func (s *Scheduler) LastSampleTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSampleTime
}

func (s *Scheduler) Len() int {
	return s.queue.Len()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pip != nil
}

// StartScheduler starts the timing goroutine and returns once its loop is
// serving messages. clock may be nil, in which case every sample is
// presented as soon as it is dequeued.
func (s *Scheduler) StartScheduler(clock media.Clock) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	if s.pip != nil {
		s.mu.Unlock()
		return errors.WithStack(media.ErrInvalidState)
	}
	s.mu.Unlock()

	p := pipeline.NewPipeline(DefaultWakeLen)
	p.RegisterGo(&scheduleMsg{}, func([]interface{}) {})
	p.RegisterCall(&startMsg{}, func(pipeline.CallMsg) interface{} { return nil })
	p.RegisterCall(&flushMsg{}, func(pipeline.CallMsg) interface{} {
		s.drain()
		return nil
	})
	p.SetIdleFunc(s.processSamplesInQueue)

	s.mu.Lock()
	s.clock = clock
	s.avgPresent = 0
	s.mu.Unlock()

	go p.Run()

	m := &startMsg{}
	m.Init()

	if _, err := p.Call(m); err != nil {
		p.Stop()
		s.setClock(nil)

		return errors.Wrap(err, "start scheduler")
	}

	s.mu.Lock()
	s.pip = p
	s.mu.Unlock()

	log.Debug("StartScheduler", zap.Bool("clock", clock != nil))

	return nil
}

// StopScheduler stops the timing goroutine, waits for it to exit and
// releases every sample still queued.
func (s *Scheduler) StopScheduler() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	p := s.pip
	s.pip = nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}

	p.Stop()
	s.drain()
	s.setClock(nil)

	log.Debug("StopScheduler")

	return nil
}

// ScheduleSample queues s and wakes the loop. The scheduler takes over the
// caller's reference and releases it once s is presented or flushed.
func (s *Scheduler) ScheduleSample(sample *media.Sample, presentNow bool) error {
	s.mu.Lock()
	p := s.pip
	s.mu.Unlock()

	if p == nil {
		return errors.WithStack(media.ErrNotInitialized)
	}

	s.queue.Enqueue(Entry{Sample: sample, PresentNow: presentNow})
	s.observeDepth()

	switch err := p.Go([]interface{}{&scheduleMsg{}}); err {
	case nil, pipeline.ErrorChanFull:
		// a wake-up is already pending
	default:
		return errors.Wrap(media.ErrNotInitialized, err.Error())
	}

	return nil
}

// Flush waits for the loop to drop its queue. If the loop does not answer
// within the flush timeout the queue is cleared from here instead, so it is
// empty on return either way. A present already in progress when the
// timeout hits still completes; anything else the loop holds is released.
func (s *Scheduler) Flush() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	p := s.pip
	s.mu.Unlock()

	var ret error

	if p != nil {
		m := &flushMsg{}
		m.Init()

		if _, err := p.CallTimeout(m, s.opts.FlushTimeout); err != nil {
			log.Warn("Flush", zap.String("err", err.Error()))

			if err == pipeline.ErrorTimeout {
				ret = errors.WithStack(media.ErrTimeout)
			}
		}
	}

	s.mu.Lock()
	s.gen++
	s.mu.Unlock()

	s.drain()

	return ret
}

func (s *Scheduler) setClock(c media.Clock) {
	s.mu.Lock()
	s.clock = c
	s.mu.Unlock()
}

func (s *Scheduler) drain() {
	for _, e := range s.queue.Clear() {
		e.Sample.Release()
	}

	s.observeDepth()
}

func (s *Scheduler) observeDepth() {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveQueueDepth(s.queue.Len())
	}
}

// processSamplesInQueue presents every due sample and returns how long the
// loop may sleep before the head of the queue becomes due.
func (s *Scheduler) processSamplesInQueue() time.Duration {
	for {
		s.mu.Lock()
		gen := s.gen
		e, ok := s.queue.Dequeue()
		s.mu.Unlock()

		if !ok {
			return pipeline.Infinite
		}

		wait, presented := s.processSample(e, gen)
		if presented {
			continue
		}

		if s.putBack(e, gen) {
			return wait
		}
	}
}

// putBack returns e to the head of the queue unless a flush ran since it
// was dequeued, in which case e is released.
func (s *Scheduler) putBack(e Entry, gen uint64) bool {
	s.mu.Lock()
	if s.gen == gen {
		s.queue.PutBack(e)
		s.mu.Unlock()

		return true
	}
	s.mu.Unlock()

	e.Sample.Release()
	s.observeDepth()

	return false
}

// processSample presents e when it is due. It reports false with the time
// to wait when e is early.
func (s *Scheduler) processSample(e Entry, gen uint64) (time.Duration, bool) {
	s.mu.Lock()
	clock := s.clock
	rate := s.rate
	threshold := s.threshold()
	flushed := s.gen != gen
	s.mu.Unlock()

	if flushed {
		e.Sample.Release()
		return 0, true
	}

	ts, hasTime := e.Sample.Time()

	if e.PresentNow || clock == nil || !hasTime {
		s.present(e, ts, false)
		return 0, true
	}

	now, err := clock.Time()
	if err != nil {
		log.Warn("ClockTime", zap.String("err", err.Error()))
		s.present(e, ts, false)

		return 0, true
	}

	delta := ts - now
	if rate < 0 {
		delta = -delta
	}

	if delta < 0 {
		s.present(e, ts, true)
		return 0, true
	}

	if delta < threshold {
		s.present(e, ts, false)
		return 0, true
	}

	return sleepFor(delta, threshold, rate), false
}

// sleepFor scales the time left before the due window by the playback
// rate. A zero rate is treated as 1.
func sleepFor(delta, threshold time.Duration, rate float32) time.Duration {
	r := math.Abs(float64(rate))
	if r == 0 {
		r = 1
	}

	d := time.Duration(float64(delta-threshold) / r)
	if d < MinSleep {
		d = MinSleep
	}

	return d
}

func (s *Scheduler) present(e Entry, ts time.Duration, late bool) {
	start := time.Now()
	err := s.cb.PresentSample(e.Sample, ts)
	elapsed := time.Since(start)

	s.mu.Lock()
	a := s.opts.PresentAlpha
	s.avgPresent = a*float64(elapsed) + (1-a)*s.avgPresent
	s.lastSampleTime = ts
	s.mu.Unlock()

	if err != nil {
		log.Warn("PresentSample", zap.Int64("sample", int64(e.Sample.ID)), zap.String("err", err.Error()))
	}

	e.Sample.Release()

	if s.opts.Observer != nil {
		s.opts.Observer.ObservePresent(elapsed, late)
		s.opts.Observer.ObserveQueueDepth(s.queue.Len())
	}
}
