package eventsink

import (
	"vpresent/log"
	"vpresent/media"

	"go.uber.org/zap"
)

// Func adapts a function to media.EventSink.
type Func func(media.Event)

func (f Func) Notify(e media.Event) {
	f(e)
}

// Multi fans every event out to each sink in order.
type Multi []media.EventSink

func (m Multi) Notify(e media.Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(e)
		}
	}
}

// Log writes events to the process log. Aborts are errors, the rest info.
type Log struct{}

func (Log) Notify(e media.Event) {
	fields := []zap.Field{
		zap.String("code", e.Code.String()),
		zap.Int64("param", e.Param),
		zap.String("stream", e.Stream),
	}

	if e.Err != nil {
		fields = append(fields, zap.String("err", e.Err.Error()))
	}

	switch e.Code {
	case media.EventErrorAbort:
		log.Error("PresenterEvent", fields...)
	case media.EventProcessingLatency:
		log.Debug("PresenterEvent", fields...)
	default:
		log.Info("PresenterEvent", fields...)
	}
}
