package redis

import (
	"sort"
	"time"

	"vpresent/broker"
	"vpresent/log"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrorNoConn = errors.New("no redigo conn")

const (
	DefaultMaxIdle     uint32        = 10
	DefaultMaxActive   uint32        = 10
	DefaultIdleTimeout time.Duration = 1000 * time.Millisecond

	// DefaultMaxLen caps each stream; trimming is approximate.
	DefaultMaxLen = 10000

	fieldKey    = "key"
	fieldBody   = "body"
	headerField = "h:"
)

// redisBroker appends messages to a redis stream named after the topic.
// Streams keep events for consumers that connect late, which plain
// PUBLISH would lose.
type redisBroker struct {
	opts   broker.Options
	pool   *redis.Pool
	maxLen int
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &redisBroker{maxLen: DefaultMaxLen}

	for _, o := range opts {
		o(&b.opts)
	}

	b.pool = newPool(b.opts.Addr, b.opts.Password)

	return b
}

func newPool(addr, password string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     int(DefaultMaxIdle),
		MaxActive:   int(DefaultMaxActive),
		IdleTimeout: DefaultIdleTimeout,
		Dial: func() (redis.Conn, error) {
			c, err := redis.Dial("tcp", addr)
			if err != nil {
				return nil, errors.Wrap(err, "failed to dial addr")
			}

			if password == "" {
				return c, nil
			}

			if _, err := c.Do("AUTH", password); err != nil {
				c.Close()
				return nil, errors.Wrap(err, "failed to auth")
			}

			return c, nil
		},
	}
}

func (b *redisBroker) String() string {
	return "redis-broker"
}

func (b *redisBroker) Options() broker.Options {
	return b.opts
}

func (b *redisBroker) Connect() error {
	c := b.pool.Get()
	if c == nil {
		return ErrorNoConn
	}

	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		return errors.Wrap(err, "failed to ping")
	}

	return nil
}

func (b *redisBroker) Disconnect() error {
	return errors.Wrap(b.pool.Close(), "failed to disconnect")
}

// Publish appends m to the stream topic as one entry: the key, the body
// and every header as an "h:" prefixed field.
func (b *redisBroker) Publish(topic string, m *broker.Message) error {
	conn := b.pool.Get()
	defer conn.Close()

	id, err := redis.String(conn.Do("XADD", entryArgs(topic, b.maxLen, m)...))
	if err != nil {
		return errors.Wrap(err, "failed to xadd")
	}

	log.Debug("RedisPublish", zap.String("topic", topic), zap.String("id", id))

	return nil
}

func entryArgs(topic string, maxLen int, m *broker.Message) redis.Args {
	args := redis.Args{}.Add(topic, "MAXLEN", "~", maxLen, "*")

	if m.Key != "" {
		args = args.Add(fieldKey, m.Key)
	}

	names := make([]string, 0, len(m.Header))
	for k := range m.Header {
		names = append(names, k)
	}

	sort.Strings(names)

	for _, k := range names {
		args = args.Add(headerField+k, m.Header[k])
	}

	return args.Add(fieldBody, m.Body)
}
