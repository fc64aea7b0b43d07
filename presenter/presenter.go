package presenter

import (
	"math"
	"sync"
	"time"

	"vpresent/log"
	"vpresent/media"
	"vpresent/pool"
	"vpresent/scheduler"
	"vpresent/util/pipeline"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Message int

const (
	MsgFlush Message = iota
	MsgInvalidateMediaType
	MsgProcessInputNotify
	MsgBeginStreaming
	MsgEndStreaming
	MsgEndOfStream
	MsgStep
	MsgCancelStep
)

func (m Message) String() string {
	switch m {
	case MsgFlush:
		return "flush"
	case MsgInvalidateMediaType:
		return "invalidate_media_type"
	case MsgProcessInputNotify:
		return "process_input_notify"
	case MsgBeginStreaming:
		return "begin_streaming"
	case MsgEndStreaming:
		return "end_streaming"
	case MsgEndOfStream:
		return "end_of_stream"
	case MsgStep:
		return "step"
	case MsgCancelStep:
		return "cancel_step"
	default:
		return "unknown"
	}
}

var ErrUnknownMessage = errors.New("unknown message")

type sampleFreeMsg struct {
	s *media.Sample
}

// eventMsg carries an event raised on the scheduler goroutine.
type eventMsg struct {
	code  media.EventCode
	param int64
	err   error
}

// Presenter pulls frames from a mixer, stamps them with the current
// generation token and hands them to its scheduler. Every public method
// serializes on one lock. The scheduler goroutine only ever calls back into
// PresentSample and the sample free callback, neither of which takes it.
type Presenter struct {
	opts   Options
	engine media.PresentEngine
	sched  *scheduler.Scheduler
	pool   *pool.Pool
	worker *pipeline.Pipeline
	stats  *statsRecorder

	mu           sync.Mutex
	state        media.RenderState
	mixer        media.Mixer
	clock        media.Clock
	mediaType    *media.MediaType
	rate         float32
	tokenCounter uint32
	sampleNotify bool
	prerolled    bool
	endStreaming bool
	step         frameStep
}

func New(engine media.PresentEngine, opts ...Option) *Presenter {
	o := defaultOptions()

	for _, opt := range opts {
		opt(&o)
	}

	p := &Presenter{
		opts:   o,
		engine: engine,
		pool:   pool.New(),
		stats:  newStatsRecorder(),
		state:  media.Stopped,
		rate:   1,
	}

	var sopts []scheduler.Option
	sopts = append(sopts, scheduler.OptionWithFlushTimeout(o.FlushTimeout))

	if ob, ok := o.Observer.(scheduler.Observer); ok {
		sopts = append(sopts, scheduler.OptionWithObserver(ob))
	}

	p.sched = scheduler.New(p, sopts...)

	p.worker = pipeline.NewPipeline(DefaultWorkerLen)
	p.worker.RegisterGo(&sampleFreeMsg{}, func(m []interface{}) {
		p.onSampleFree(m[0].(*sampleFreeMsg).s)
	})
	p.worker.RegisterGo(&eventMsg{}, func(m []interface{}) {
		p.onPresentEvent(m[0].(*eventMsg))
	})

	go p.worker.Run()

	return p
}

func (p *Presenter) StreamID() string {
	return p.opts.StreamID
}

// Scheduler exposes the timing loop, mostly for inspection.
func (p *Presenter) Scheduler() *scheduler.Scheduler {
	return p.sched
}

func (p *Presenter) State() media.RenderState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *Presenter) FrameStepState() media.FrameStepState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.step.state
}

// InitServicePointers attaches the upstream mixer and the presentation
// clock. clock may be nil.
func (p *Presenter) InitServicePointers(mixer media.Mixer, clock media.Clock) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return err
	}

	if p.isActive() {
		return errors.Wrap(media.ErrInvalidState, "presenter is active")
	}

	p.mixer = mixer
	p.clock = clock
	p.stats.setClock(clock)

	return nil
}

// ReleaseServicePointers detaches from the pipeline. The presenter is
// shut down afterwards.
func (p *Presenter) ReleaseServicePointers() error {
	err := p.Shutdown()

	p.mu.Lock()
	p.mixer = nil
	p.clock = nil
	p.stats.setClock(nil)
	p.mu.Unlock()

	return err
}

// Shutdown is terminal. Later calls return nil, every other operation
// returns ErrShutdown.
func (p *Presenter) Shutdown() error {
	p.mu.Lock()
	if p.state == media.Shutdown {
		p.mu.Unlock()
		return nil
	}

	p.state = media.Shutdown
	p.mu.Unlock()

	if err := p.sched.StopScheduler(); err != nil {
		log.Warn("Shutdown", zap.String("err", err.Error()))
	}

	p.worker.Stop()

	p.mu.Lock()
	p.releaseResources()
	p.mediaType = nil
	p.mu.Unlock()

	log.Info("Shutdown", zap.String("stream", p.opts.StreamID))

	return nil
}

func (p *Presenter) checkShutdown() error {
	if p.state == media.Shutdown {
		return errors.WithStack(media.ErrShutdown)
	}

	return nil
}

func (p *Presenter) isActive() bool {
	return p.state == media.Started || p.state == media.Paused
}

func (p *Presenter) isScrubbing() bool {
	return p.rate == 0
}

func (p *Presenter) ProcessMessage(msg Message, param int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return err
	}

	log.Debug("ProcessMessage", zap.String("msg", msg.String()), zap.Int64("param", param))

	switch msg {
	case MsgFlush:
		p.flush()
	case MsgInvalidateMediaType:
		return p.renegotiateMediaType()
	case MsgProcessInputNotify:
		return p.processInputNotify()
	case MsgBeginStreaming:
		return p.sched.StartScheduler(p.clock)
	case MsgEndStreaming:
		return p.sched.StopScheduler()
	case MsgEndOfStream:
		p.endStreaming = true
		p.checkEndOfStream()
	case MsgStep:
		if param <= 0 || param > math.MaxInt32 {
			return errors.Wrapf(media.ErrInvalidState, "step count %d", param)
		}

		return p.prepareFrameStep(int(param))
	case MsgCancelStep:
		p.cancelFrameStep()
	default:
		return errors.Wrapf(ErrUnknownMessage, "%d", int(msg))
	}

	return nil
}

func (p *Presenter) processInputNotify() error {
	p.sampleNotify = true

	if p.mediaType == nil {
		return errors.WithStack(media.ErrTypeNotSet)
	}

	p.processOutputLoop()

	return nil
}

// flush drops everything scheduled or held for a frame step.
func (p *Presenter) flush() {
	if err := p.sched.Flush(); err != nil {
		log.Warn("Flush", zap.String("err", err.Error()))
	}

	p.step.clearSamples()

	if p.state == media.Stopped {
		p.prerolled = false
	}
}

func (p *Presenter) CurrentMediaType() *media.MediaType {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mediaType.Clone()
}

func (p *Presenter) SetMediaType(mt *media.MediaType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return err
	}

	return p.setMediaType(mt)
}

func (p *Presenter) setMediaType(mt *media.MediaType) error {
	if mt == nil {
		p.mediaType = nil
		p.releaseResources()

		return nil
	}

	if p.mediaType.Equal(mt) {
		return nil
	}

	p.releaseResources()

	samples, err := p.engine.CreateVideoSamples(mt, p.opts.PoolSize)
	if err != nil {
		p.releaseResources()
		return errors.Wrap(err, "create video samples")
	}

	for _, s := range samples {
		s.SetToken(p.tokenCounter)
	}

	if err := p.pool.Initialize(samples); err != nil {
		p.releaseResources()
		return errors.Wrap(err, "initialize pool")
	}

	fps := mt.FrameRate
	if !fps.Valid() {
		fps = DefaultFrameRate
	}

	p.sched.SetFrameRate(fps)
	p.mediaType = mt.Clone()

	log.Info("SetMediaType", zap.String("type", mt.String()), zap.Uint32("token", p.tokenCounter))

	return nil
}

// releaseResources starts a new sample generation. Samples still out from
// the previous one are dropped when they come back.
func (p *Presenter) releaseResources() {
	p.tokenCounter++

	p.flush()
	p.pool.Clear()
	p.engine.ReleaseResources()
	p.observePending()
}

func (p *Presenter) RenegotiateMediaType() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return err
	}

	return p.renegotiateMediaType()
}

func (p *Presenter) renegotiateMediaType() error {
	if p.mixer == nil {
		return errors.Wrap(media.ErrNotInitialized, "no mixer")
	}

	for i := 0; ; i++ {
		mt, err := p.mixer.OutputAvailableType(i)
		if err != nil {
			if !errors.Is(err, media.ErrNoMoreTypes) {
				log.Warn("OutputAvailableType", zap.Int("index", i), zap.String("err", err.Error()))
			}

			break
		}

		if err := p.engine.CheckFormat(mt); err != nil {
			log.Debug("CheckFormat", zap.String("type", mt.String()), zap.String("err", err.Error()))
			continue
		}

		if err := p.mixer.SetOutputType(mt, true); err != nil {
			continue
		}

		if err := p.setMediaType(mt); err != nil {
			log.Warn("SetMediaType", zap.String("type", mt.String()), zap.String("err", err.Error()))
			continue
		}

		if err := p.mixer.SetOutputType(mt, false); err != nil {
			_ = p.setMediaType(nil)
			continue
		}

		return nil
	}

	return errors.WithStack(media.ErrFormatUnsupported)
}

// PresentSample is the scheduler callback. It runs on the scheduler
// goroutine and must not take the presenter lock. A lost device is
// recreated and the frame presented once more; a frame that still cannot
// be shown counts as dropped.
func (p *Presenter) PresentSample(s *media.Sample, target time.Duration) error {
	reset, err := p.present(s, target)

	if reset {
		p.postEvent(media.EventDisplayChanged, 0, nil)
	}

	if err != nil {
		p.stats.dropped()
		p.observeDiscard(DiscardAbort)

		if !errors.Is(err, media.ErrDeviceLost) {
			p.postEvent(media.EventErrorAbort, 0, err)
		}

		return err
	}

	offset := p.stats.drawn(s)

	if p.opts.Observer != nil {
		p.opts.Observer.ObserveDrawn(offset)
	}

	return nil
}

// present shows s, recreating the device and retrying once when it was
// lost. reset reports that the device was recreated.
func (p *Presenter) present(s *media.Sample, target time.Duration) (reset bool, err error) {
	err = p.engine.PresentSample(s, target)
	if !errors.Is(err, media.ErrDeviceLost) {
		return false, err
	}

	ds, cerr := p.engine.CheckDeviceState()
	if cerr != nil {
		return false, errors.Wrap(err, cerr.Error())
	}

	switch ds {
	case media.DeviceRemoved:
		return false, errors.WithStack(media.ErrDeviceRemoved)
	case media.DeviceReset:
		reset = true
	}

	log.Warn("PresentSample", zap.String("err", err.Error()), zap.Bool("reset", reset))

	return reset, p.engine.PresentSample(s, target)
}

// postEvent hands an event raised off the presenter lock to the worker.
func (p *Presenter) postEvent(code media.EventCode, param int64, err error) {
	m := &eventMsg{code: code, param: param, err: err}

	switch perr := p.worker.Go([]interface{}{m}); perr {
	case nil:
	case pipeline.ErrorChanFull:
		go p.onPresentEvent(m)
	default:
		log.Debug("PostEvent", zap.String("code", code.String()), zap.String("err", perr.Error()))
	}
}

func (p *Presenter) onPresentEvent(m *eventMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == media.Shutdown {
		return
	}

	p.notifyEvent(m.code, m.param, m.err)
}

// Repaint shows the last presented frame again.
func (p *Presenter) Repaint() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShutdown(); err != nil {
		return err
	}

	if p.mediaType == nil {
		return errors.WithStack(media.ErrTypeNotSet)
	}

	reset, err := p.present(nil, 0)
	if reset {
		p.notifyEvent(media.EventDisplayChanged, 0, nil)
	}

	return err
}

func (p *Presenter) Stats() Stats {
	return p.stats.snapshot()
}

func (p *Presenter) notifyEvent(code media.EventCode, param int64, err error) {
	e := media.Event{
		Code:   code,
		Param:  param,
		Err:    err,
		Time:   time.Now(),
		Stream: p.opts.StreamID,
	}

	if code == media.EventErrorAbort {
		log.Error("NotifyEvent", zap.String("code", code.String()), zap.Error(err))
	} else {
		log.Debug("NotifyEvent", zap.String("code", code.String()), zap.Int64("param", param))
	}

	if p.opts.EventSink != nil {
		p.opts.EventSink.Notify(e)
	}

	if p.opts.Observer != nil {
		p.opts.Observer.ObserveEvent(code)
	}
}

func (p *Presenter) observeDiscard(reason string) {
	if p.opts.Observer != nil {
		p.opts.Observer.ObserveDiscard(reason)
	}
}

func (p *Presenter) observePending() {
	if p.opts.Observer != nil {
		p.opts.Observer.ObservePending(p.pool.Pending())
	}
}
