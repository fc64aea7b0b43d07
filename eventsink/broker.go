package eventsink

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"vpresent/broker"
	"vpresent/log"
	"vpresent/media"
	"vpresent/util/pipeline"

	"go.uber.org/zap"
)

const (
	DefaultTopic     = "vpresent.events"
	DefaultQueueLen  = 256
	DefaultEventName = "presenter"
)

// Record is the published form of a media.Event.
type Record struct {
	Code   string    `json:"code"`
	Param  int64     `json:"param"`
	Err    string    `json:"err,omitempty"`
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"`
}

func NewRecord(e media.Event) Record {
	r := Record{
		Code:   e.Code.String(),
		Param:  e.Param,
		Time:   e.Time,
		Stream: e.Stream,
	}

	if e.Err != nil {
		r.Err = e.Err.Error()
	}

	return r
}

type BrokerOptions struct {
	Topic    string
	QueueLen uint32
}

type BrokerOption func(*BrokerOptions)

func BrokerOptionWithTopic(t string) BrokerOption {
	return func(o *BrokerOptions) {
		o.Topic = t
	}
}

func BrokerOptionWithQueueLen(n uint32) BrokerOption {
	return func(o *BrokerOptions) {
		o.QueueLen = n
	}
}

type publishMsg struct {
	e media.Event
}

// Broker publishes events on a message bus. Notify never blocks: events
// are handed to a publishing goroutine and dropped when it falls behind.
type Broker struct {
	opts    BrokerOptions
	b       broker.Broker
	pip     *pipeline.Pipeline
	dropped int64
	sent    int64
	failed  int64
}

func NewBroker(b broker.Broker, opts ...BrokerOption) *Broker {
	o := BrokerOptions{
		Topic:    DefaultTopic,
		QueueLen: DefaultQueueLen,
	}

	for _, opt := range opts {
		opt(&o)
	}

	s := &Broker{
		opts: o,
		b:    b,
		pip:  pipeline.NewPipeline(o.QueueLen),
	}

	s.pip.RegisterGo(&publishMsg{}, func(m []interface{}) {
		s.publish(m[0].(*publishMsg).e)
	})

	go s.pip.Run()

	return s
}

func (s *Broker) Notify(e media.Event) {
	if err := s.pip.Go([]interface{}{&publishMsg{e: e}}); err != nil {
		atomic.AddInt64(&s.dropped, 1)
		log.Debug("EventDropped", zap.String("code", e.Code.String()), zap.String("err", err.Error()))
	}
}

func (s *Broker) publish(e media.Event) {
	body, err := json.Marshal(NewRecord(e))
	if err != nil {
		atomic.AddInt64(&s.failed, 1)
		return
	}

	m := &broker.Message{
		Key:    e.Stream,
		Header: map[string]string{"code": e.Code.String(), "source": DefaultEventName},
		Body:   body,
	}

	if err := s.b.Publish(s.opts.Topic, m); err != nil {
		atomic.AddInt64(&s.failed, 1)
		log.Warn("EventPublish", zap.String("broker", s.b.String()), zap.String("err", err.Error()))

		return
	}

	atomic.AddInt64(&s.sent, 1)
}

// Close publishes what is already queued and stops.
func (s *Broker) Close() {
	s.pip.Stop()
}

func (s *Broker) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

func (s *Broker) Sent() int64 {
	return atomic.LoadInt64(&s.sent)
}

func (s *Broker) Failed() int64 {
	return atomic.LoadInt64(&s.failed)
}
