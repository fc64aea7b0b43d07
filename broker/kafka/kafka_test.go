package kafka

import (
	"errors"
	"testing"

	"vpresent/broker"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
)

func TestPublishBeforeConnect(t *testing.T) {
	b := NewBroker(broker.OptionWithAddr("127.0.0.1:9092"))

	if err := b.Publish("events", &broker.Message{}); !errors.Is(err, broker.ErrNotConnected) {
		t.Fatalf("got %v", err)
	}

	if err := b.Disconnect(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishKeyedMessage(t *testing.T) {
	b := NewBroker().(*kafkaBroker)

	p := mocks.NewSyncProducer(t, b.config())
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(v []byte) error {
		if string(v) != "payload" {
			return errors.New("unexpected payload " + string(v))
		}

		return nil
	})
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	b.p = p

	m := &broker.Message{Key: "stream-1", Header: map[string]string{"code": "complete"}, Body: []byte("payload")}

	if err := b.Publish("events", m); err != nil {
		t.Fatal(err)
	}

	if err := b.Publish("events", m); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("got %v", err)
	}

	if err := b.Disconnect(); err != nil {
		t.Fatal(err)
	}
}
