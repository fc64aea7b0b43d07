package scheduler

import "time"

const (
	DefaultPresentAlpha = 0.1
	DefaultFlushTimeout = 5 * time.Second
	DefaultWakeLen      = 8

	// MinSleep keeps a not-yet-due sample from spinning the loop when the
	// computed wait rounds down to nothing.
	MinSleep = time.Millisecond
)

type Options struct {
	PresentAlpha float64
	FlushTimeout time.Duration
	Observer     Observer
}

type Option func(*Options)

func OptionWithPresentAlpha(a float64) Option {
	return func(o *Options) {
		o.PresentAlpha = a
	}
}

func OptionWithFlushTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.FlushTimeout = d
	}
}

func OptionWithObserver(ob Observer) Option {
	return func(o *Options) {
		o.Observer = ob
	}
}
