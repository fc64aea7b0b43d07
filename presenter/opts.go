package presenter

import (
	"time"

	"vpresent/media"

	"github.com/google/uuid"
)

const (
	DefaultPoolSize     = 3
	DefaultFlushTimeout = 5 * time.Second
	DefaultWorkerLen    = 64
)

// DefaultFrameRate is assumed when a media type carries no frame rate.
var DefaultFrameRate = media.Ratio{Num: 30, Den: 1}

// Discard reasons reported to the Observer.
const (
	DiscardStep  = "step"
	DiscardScrub = "scrub"
	DiscardStale = "stale"
	DiscardAbort = "abort"
)

// Observer is an optional hook for metrics. Calls may come from any
// goroutine and must not block.
type Observer interface {
	ObserveDrawn(syncOffset time.Duration)
	ObserveDiscard(reason string)
	ObserveEvent(code media.EventCode)
	ObservePending(n int)
}

type Options struct {
	EventSink    media.EventSink
	Observer     Observer
	PoolSize     int
	FlushTimeout time.Duration
	StreamID     string
}

type Option func(*Options)

func OptionWithEventSink(s media.EventSink) Option {
	return func(o *Options) {
		o.EventSink = s
	}
}

func OptionWithObserver(ob Observer) Option {
	return func(o *Options) {
		o.Observer = ob
	}
}

// OptionWithPoolSize sets how many samples are allocated per media type.
// Values below 1 keep the default.
func OptionWithPoolSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

func OptionWithFlushTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.FlushTimeout = d
	}
}

func OptionWithStreamID(id string) Option {
	return func(o *Options) {
		o.StreamID = id
	}
}

func defaultOptions() Options {
	return Options{
		PoolSize:     DefaultPoolSize,
		FlushTimeout: DefaultFlushTimeout,
		StreamID:     uuid.New().String(),
	}
}
