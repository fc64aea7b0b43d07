package broker

import "errors"

var ErrNotConnected = errors.New("broker not connected")

// Broker is the publishing side of a message bus.
type Broker interface {
	Connect() error
	Disconnect() error
	Publish(topic string, m *Message) error
	Options() Options
	String() string
}

// Message is one published payload. Key, when set, keeps messages of the
// same key ordered on brokers that partition.
type Message struct {
	Key    string
	Header map[string]string
	Body   []byte
}
