package redis

import (
	"bytes"
	"errors"
	"testing"

	"vpresent/broker"

	"github.com/gomodule/redigo/redis"
)

type call struct {
	cmd  string
	args []interface{}
}

// fakeConn records commands and answers XADD with a fixed entry id.
type fakeConn struct {
	calls *[]call
	err   error
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Err() error { return nil }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	*c.calls = append(*c.calls, call{cmd: cmd, args: args})

	if c.err != nil {
		return nil, c.err
	}

	if cmd == "XADD" {
		return []byte("1-0"), nil
	}

	return "PONG", nil
}

func (c *fakeConn) Send(string, ...interface{}) error { return nil }

func (c *fakeConn) Flush() error { return nil }

func (c *fakeConn) Receive() (interface{}, error) { return nil, nil }

func newFakeBroker(err error) (*redisBroker, *[]call) {
	calls := &[]call{}

	b := NewBroker(broker.OptionWithAddr("fake:6379")).(*redisBroker)
	b.pool.Dial = func() (redis.Conn, error) {
		return &fakeConn{calls: calls, err: err}, nil
	}

	return b, calls
}

func TestPublish(t *testing.T) {
	b, calls := newFakeBroker(nil)

	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}

	m := &broker.Message{
		Key:    "presenter",
		Header: map[string]string{"name": "vpresent", "code": "1"},
		Body:   []byte(`{"code":1}`),
	}

	if err := b.Publish("vpresent.events", m); err != nil {
		t.Fatal(err)
	}

	last := (*calls)[len(*calls)-1]
	if last.cmd != "XADD" || last.args[0] != "vpresent.events" {
		t.Fatalf("last call %+v", last)
	}

	if last.args[1] != "MAXLEN" || last.args[3] != DefaultMaxLen || last.args[4] != "*" {
		t.Fatalf("stream cap %+v", last.args[:5])
	}

	fields := last.args[5:]
	want := []string{"key", "h:code", "h:name", "body"}

	if len(fields) != 2*len(want) {
		t.Fatalf("fields %+v", fields)
	}

	for i, name := range want {
		if fields[2*i] != name {
			t.Fatalf("field %d = %v, want %s", i, fields[2*i], name)
		}
	}

	if fields[1] != "presenter" || fields[3] != "1" || fields[5] != "vpresent" {
		t.Fatalf("values %+v", fields)
	}

	if body, ok := fields[7].([]byte); !ok || !bytes.Equal(body, m.Body) {
		t.Fatalf("body %v", fields[7])
	}

	if err := b.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
}

func TestPublishWithoutKey(t *testing.T) {
	b, calls := newFakeBroker(nil)

	if err := b.Publish("t", &broker.Message{Body: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	args := (*calls)[len(*calls)-1].args
	if len(args) != 7 || args[5] != "body" {
		t.Fatalf("args %+v", args)
	}
}

func TestPublishError(t *testing.T) {
	boom := errors.New("boom")
	b, _ := newFakeBroker(boom)

	if err := b.Publish("t", &broker.Message{}); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}

	if b.String() != "redis-broker" || b.Options().Addr != "fake:6379" {
		t.Fatal("options lost")
	}
}
