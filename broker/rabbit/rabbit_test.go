package rabbit

import (
	"errors"
	"testing"

	"vpresent/broker"

	"github.com/streadway/amqp"
)

type fakeChannel struct {
	declares  int
	published []amqp.Publishing
	keys      []string
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declares++
	return nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)

	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestPublishWithoutConnection(t *testing.T) {
	b := NewBroker()

	if err := b.Publish("events", &broker.Message{}); !errors.Is(err, ErrConnectIsNull) {
		t.Fatalf("got %v", err)
	}

	if b.Options().Exchange != DefaultExchange {
		t.Fatalf("exchange %q", b.Options().Exchange)
	}
}

func TestPublishDeclaresOnce(t *testing.T) {
	b := NewBroker(broker.OptionWithExchange("frames")).(*rabbitBroker)
	ch := &fakeChannel{}
	b.channel = ch

	m := &broker.Message{Key: "s1", Header: map[string]string{"code": "step_complete"}, Body: []byte("{}")}

	for i := 0; i < 3; i++ {
		if err := b.Publish("vpresent.events", m); err != nil {
			t.Fatal(err)
		}
	}

	if ch.declares != 1 {
		t.Fatalf("exchange declared %d times", ch.declares)
	}

	if len(ch.published) != 3 || ch.keys[0] != "vpresent.events" {
		t.Fatalf("published %d, keys %v", len(ch.published), ch.keys)
	}

	if ch.published[0].Headers["code"] != "step_complete" || ch.published[0].CorrelationId != "s1" {
		t.Fatalf("publishing %+v", ch.published[0])
	}
}
