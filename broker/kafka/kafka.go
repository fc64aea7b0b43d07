package kafka

import (
	"strings"
	"time"

	"vpresent/broker"
	"vpresent/log"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultTimeout = 3 * time.Second

type kafkaBroker struct {
	opts    broker.Options
	p       sarama.SyncProducer
	timeout time.Duration
}

func (s *kafkaBroker) config() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V1_0_0_0
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Timeout = s.timeout

	return config
}

func (s *kafkaBroker) Connect() error {
	p, err := sarama.NewSyncProducer(strings.Split(s.opts.Addr, ","), s.config())
	if err != nil {
		return errors.Wrap(err, "fail to connect kafka")
	}

	s.p = p

	return nil
}

func (s *kafkaBroker) Disconnect() error {
	if s.p == nil {
		return nil
	}

	err := s.p.Close()
	s.p = nil

	return errors.Wrap(err, "fail to close producer")
}

func (s *kafkaBroker) Publish(topic string, m *broker.Message) error {
	if s.p == nil {
		return errors.WithStack(broker.ErrNotConnected)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(m.Body),
	}

	if m.Key != "" {
		msg.Key = sarama.StringEncoder(m.Key)
	}

	for k, v := range m.Header {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := s.p.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, "fail to publish")
	}

	log.Debug("kafka.publish", zap.String("topic", topic), zap.Int32("partition", partition), zap.Int64("offset", offset))

	return nil
}

func (s *kafkaBroker) Options() broker.Options {
	return s.opts
}

func (s *kafkaBroker) String() string {
	return "kafka-broker"
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &kafkaBroker{timeout: DefaultTimeout}

	for _, o := range opts {
		o(&b.opts)
	}

	return b
}
