package vpresent

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vpresent/broker"
	"vpresent/broker/kafka"
	"vpresent/broker/rabbit"
	"vpresent/broker/redis"
	"vpresent/clock"
	"vpresent/engine"
	"vpresent/engine/ws"
	"vpresent/eventsink"
	"vpresent/log"
	"vpresent/media"
	"vpresent/metrics"
	"vpresent/presenter"
	"vpresent/source"
	"vpresent/util/profile"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type app struct {
	opts   Options
	events chan media.Event

	clock     *clock.SystemClock
	decoder   *source.Decoder
	presenter *presenter.Presenter
	engine    media.PresentEngine
	wsSvr     *ws.Server
	monitor   *metrics.Monitor
	broker    broker.Broker
	sink      *eventsink.Broker
	profiling bool
}

func (app *app) Options() Options {
	return app.opts
}

func (app *app) Stats() presenter.Stats {
	if app.presenter == nil {
		return presenter.Stats{}
	}

	return app.presenter.Stats()
}

// Run plays the stream and returns once it completes, ctx is done or the
// process is signalled.
func (app *app) Run(ctx context.Context) error {
	defer app.doClose()

	if err := app.doInit(); err != nil {
		return err
	}

	if err := app.doStart(); err != nil {
		return err
	}

	return app.doWait(ctx)
}

func (app *app) doInit() error {
	if app.opts.PprofAddr != "" {
		if _, err := profile.Start(app.opts.PprofAddr); err != nil {
			return err
		}

		app.profiling = true
	}

	if app.opts.MetricsAddr != "" {
		app.monitor = metrics.NewMonitor("vpresent")

		if err := app.monitor.Serve(app.opts.MetricsAddr); err != nil {
			return err
		}
	}

	if err := app.newEngine(); err != nil {
		return err
	}

	sink, err := app.newSink()
	if err != nil {
		return err
	}

	popts := []presenter.Option{
		presenter.OptionWithEventSink(sink),
		presenter.OptionWithPoolSize(app.opts.PoolSize),
	}

	if app.monitor != nil {
		popts = append(popts, presenter.OptionWithObserver(app.monitor))
	}

	app.presenter = presenter.New(app.engine, popts...)
	app.clock = clock.NewSystemClock()
	app.clock.AddStateSink(app.presenter)

	fps := app.opts.FPS
	if fps == 0 {
		fps = DefaultFPS
	}

	app.decoder = source.NewDecoder(
		source.OptionWithFrames(app.opts.Frames),
		source.OptionWithTypes(source.DefaultTypes(app.opts.Width, app.opts.Height, media.Ratio{Num: fps, Den: 1})...),
		source.OptionWithNotify(app.inputNotify),
		source.OptionWithEndOfStream(app.endOfStream),
	)

	return nil
}

func (app *app) newEngine() error {
	switch app.opts.Engine {
	case EngineMemory, "":
		app.engine = engine.NewMemory()
	case EngineWS:
		app.wsSvr = ws.NewServer(ws.ServerOptionWithAddr(app.opts.WSAddr))
		if err := app.wsSvr.Start(); err != nil {
			return err
		}

		app.engine = ws.NewEngine(app.wsSvr)
		log.Info("PreviewServer", zap.String("addr", app.wsSvr.Addr()))
	default:
		return errors.Wrap(ErrorUnknownEngine, app.opts.Engine)
	}

	return nil
}

func (app *app) newSink() (media.EventSink, error) {
	sinks := eventsink.Multi{eventsink.Log{}, eventsink.Func(app.watch)}

	if app.opts.EventSink != nil {
		sinks = append(sinks, app.opts.EventSink)
	}

	bopts := []broker.Option{broker.OptionWithAddr(app.opts.SinkAddr)}

	switch app.opts.Sink {
	case SinkLog, "":
		return sinks, nil
	case SinkRedis:
		app.broker = redis.NewBroker(bopts...)
	case SinkKafka:
		app.broker = kafka.NewBroker(bopts...)
	case SinkRabbit:
		app.broker = rabbit.NewBroker(bopts...)
	default:
		return nil, errors.Wrap(ErrorUnknownSink, app.opts.Sink)
	}

	if err := app.broker.Connect(); err != nil {
		return nil, errors.Wrapf(err, "connect %s", app.broker)
	}

	app.sink = eventsink.NewBroker(app.broker, eventsink.BrokerOptionWithTopic(app.opts.SinkTopic))

	return append(sinks, app.sink), nil
}

func (app *app) doStart() error {
	p := app.presenter

	if err := p.InitServicePointers(app.decoder, app.clock); err != nil {
		return err
	}

	if err := p.ProcessMessage(presenter.MsgInvalidateMediaType, 0); err != nil {
		return err
	}

	if err := p.ProcessMessage(presenter.MsgBeginStreaming, 0); err != nil {
		return err
	}

	if app.opts.Rate != 1 {
		if err := app.clock.SetRate(app.opts.Rate); err != nil {
			return err
		}
	}

	if app.opts.Step > 0 {
		if err := p.ProcessMessage(presenter.MsgStep, int64(app.opts.Step)); err != nil {
			return err
		}
	}

	if err := app.clock.Start(0); err != nil {
		return err
	}

	app.decoder.Start()

	log.Info("AppStart",
		zap.String("stream", p.StreamID()),
		zap.String("type", p.CurrentMediaType().String()),
		zap.Int("frames", app.opts.Frames),
		zap.Float32("rate", app.opts.Rate))

	return nil
}

func (app *app) doWait(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-ch:
			log.Info("AppSignal", zap.String("signal", s.String()))
			return nil
		case e := <-app.events:
			switch e.Code {
			case media.EventComplete:
				return nil
			case media.EventErrorAbort:
				return errors.Wrapf(ErrorAborted, "%v", e.Err)
			case media.EventStepComplete:
				if err := app.resume(e.Param == 1); err != nil {
					return err
				}
			}
		}
	}
}

// resume releases the frames held behind a finished step.
func (app *app) resume(cancelled bool) error {
	log.Info("StepComplete", zap.Bool("cancelled", cancelled))

	if err := app.clock.Pause(); err != nil {
		return err
	}

	return app.clock.Restart()
}

// watch runs under the presenter lock and must not call back into it.
func (app *app) watch(e media.Event) {
	switch e.Code {
	case media.EventComplete, media.EventErrorAbort, media.EventStepComplete:
	default:
		return
	}

	select {
	case app.events <- e:
	default:
		log.Warn("AppEventDropped", zap.String("code", e.Code.String()))
	}
}

func (app *app) inputNotify() {
	err := app.presenter.ProcessMessage(presenter.MsgProcessInputNotify, 0)
	if err != nil && !errors.Is(err, media.ErrShutdown) {
		log.Warn("InputNotify", zap.String("err", err.Error()))
	}
}

func (app *app) endOfStream() {
	err := app.presenter.ProcessMessage(presenter.MsgEndOfStream, 0)
	if err != nil && !errors.Is(err, media.ErrShutdown) {
		log.Warn("EndOfStream", zap.String("err", err.Error()))
	}
}

func (app *app) doClose() {
	if app.decoder != nil {
		app.decoder.Stop()
	}

	if app.clock != nil && app.clock.State() != media.ClockStopped {
		if err := app.clock.Stop(); err != nil {
			log.Warn("ClockStop", zap.String("err", err.Error()))
		}
	}

	if app.presenter != nil {
		stats := app.presenter.Stats()

		if err := app.presenter.Shutdown(); err != nil {
			log.Warn("PresenterShutdown", zap.String("err", err.Error()))
		}

		log.Info("AppStop",
			zap.Int64("drawn", stats.FramesDrawn),
			zap.Int64("dropped", stats.FramesDropped),
			zap.Duration("jitter", stats.Jitter))
	}

	if app.sink != nil {
		app.sink.Close()
	}

	if app.broker != nil {
		if err := app.broker.Disconnect(); err != nil {
			log.Warn("BrokerDisconnect", zap.String("err", err.Error()))
		}
	}

	if app.wsSvr != nil {
		app.wsSvr.Stop()
	}

	if app.monitor != nil {
		app.monitor.Close()
	}

	if app.profiling {
		profile.Stop()
	}
}
