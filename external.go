package vpresent

import (
	"context"
	"errors"

	"vpresent/media"
	"vpresent/presenter"
)

const (
	EngineMemory = "memory"
	EngineWS     = "ws"

	SinkLog    = "log"
	SinkRedis  = "redis"
	SinkKafka  = "kafka"
	SinkRabbit = "rabbit"

	DefaultFrames = 300
	DefaultFPS    = 30
	DefaultWidth  = 320
	DefaultHeight = 240
	DefaultRate   = 1
	DefaultTopic  = "vpresent.events"

	DefaultEventLen = 64
)

var (
	ErrorUnknownEngine = errors.New("unknown engine")
	ErrorUnknownSink   = errors.New("unknown sink")
	ErrorAborted       = errors.New("presentation aborted")
)

type Options struct {
	Frames      int
	FPS         uint32
	Width       int
	Height      int
	PoolSize    int
	Rate        float32
	Step        int
	Engine      string
	WSAddr      string
	MetricsAddr string
	PprofAddr   string
	Sink        string
	SinkAddr    string
	SinkTopic   string
	EventSink   media.EventSink
}

type Option func(*Options)

func OptionWithFrames(n int) Option {
	return func(o *Options) {
		o.Frames = n
	}
}

func OptionWithFPS(fps uint32) Option {
	return func(o *Options) {
		o.FPS = fps
	}
}

func OptionWithSize(w, h int) Option {
	return func(o *Options) {
		o.Width = w
		o.Height = h
	}
}

func OptionWithPoolSize(n int) Option {
	return func(o *Options) {
		o.PoolSize = n
	}
}

func OptionWithRate(r float32) Option {
	return func(o *Options) {
		o.Rate = r
	}
}

func OptionWithStep(n int) Option {
	return func(o *Options) {
		o.Step = n
	}
}

func OptionWithEngine(e string) Option {
	return func(o *Options) {
		o.Engine = e
	}
}

func OptionWithWSAddr(a string) Option {
	return func(o *Options) {
		o.WSAddr = a
	}
}

func OptionWithMetricsAddr(a string) Option {
	return func(o *Options) {
		o.MetricsAddr = a
	}
}

func OptionWithPprofAddr(a string) Option {
	return func(o *Options) {
		o.PprofAddr = a
	}
}

func OptionWithSink(kind, addr, topic string) Option {
	return func(o *Options) {
		o.Sink = kind
		o.SinkAddr = addr
		o.SinkTopic = topic
	}
}

// OptionWithEventSink adds a sink next to the configured one.
func OptionWithEventSink(s media.EventSink) Option {
	return func(o *Options) {
		o.EventSink = s
	}
}

// App plays a synthetic stream through the presenter until it completes.
type App interface {
	Run(ctx context.Context) error
	Stats() presenter.Stats
	Options() Options
}

func NewApp(opts ...Option) App {
	o := Options{
		Frames:    DefaultFrames,
		FPS:       DefaultFPS,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		PoolSize:  presenter.DefaultPoolSize,
		Rate:      DefaultRate,
		Engine:    EngineMemory,
		Sink:      SinkLog,
		SinkTopic: DefaultTopic,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &app{
		opts:   o,
		events: make(chan media.Event, DefaultEventLen),
	}
}
