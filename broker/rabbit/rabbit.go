package rabbit

import (
	"sync"

	"vpresent/broker"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const (
	DefaultExchange     = "vpresent"
	DefaultExchangeType = "topic"
)

var ErrConnectIsNull = errors.New("connection is nil")

// channel is the part of *amqp.Channel the broker uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type rabbitBroker struct {
	opts         broker.Options
	exchangeType string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  channel
	declared bool
}

func (r *rabbitBroker) Connect() error {
	conn, err := amqp.Dial(r.opts.Addr)
	if err != nil {
		return errors.Wrap(err, "fail to connect amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "fail to open channel")
	}

	r.mu.Lock()
	r.conn = conn
	r.channel = ch
	r.declared = false
	r.mu.Unlock()

	return nil
}

func (r *rabbitBroker) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
		r.channel = nil
	}

	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}

	return nil
}

func (r *rabbitBroker) declare() error {
	if r.declared {
		return nil
	}

	if err := r.channel.ExchangeDeclare(r.opts.Exchange, r.exchangeType, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "fail to declare exchange")
	}

	r.declared = true

	return nil
}

// Publish sends msg to the exchange with topic as routing key.
func (r *rabbitBroker) Publish(topic string, msg *broker.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel == nil {
		return errors.WithStack(ErrConnectIsNull)
	}

	if err := r.declare(); err != nil {
		return err
	}

	m := amqp.Publishing{
		ContentType: "application/json",
		Body:        msg.Body,
		Headers:     amqp.Table{},
	}

	if msg.Key != "" {
		m.CorrelationId = msg.Key
	}

	for k, v := range msg.Header {
		m.Headers[k] = v
	}

	return errors.Wrap(r.channel.Publish(r.opts.Exchange, topic, false, false, m), "fail to publish")
}

func (r *rabbitBroker) Options() broker.Options {
	return r.opts
}

func (r *rabbitBroker) String() string {
	return "rabbit-broker"
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &rabbitBroker{exchangeType: DefaultExchangeType}

	for _, o := range opts {
		o(&b.opts)
	}

	if b.opts.Exchange == "" {
		b.opts.Exchange = DefaultExchange
	}

	return b
}
