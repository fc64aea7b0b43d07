package ws

import (
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is one preview client. Writes go through a bounded buffer drained
// by a dedicated goroutine; a client that falls behind is disconnected.
type Conn struct {
	sync.Mutex
	conn    *websocket.Conn
	wCh     chan []byte
	isClose bool
	done    chan struct{}
}

func newConn(c *websocket.Conn, bufLen uint32) *Conn {
	conn := &Conn{
		conn: c,
		wCh:  make(chan []byte, bufLen),
		done: make(chan struct{}),
	}

	go func() {
		defer close(conn.done)

		for data := range conn.wCh {
			if data == nil {
				break
			}

			if e := c.WriteMessage(websocket.BinaryMessage, data); e != nil {
				break
			}
		}

		c.Close()
		conn.Lock()
		conn.isClose = true
		conn.Unlock()
	}()

	return conn
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() {
	c.Lock()
	defer c.Unlock()

	c.close()
}

func (c *Conn) close() {
	if c.isClose {
		return
	}

	if tc, ok := c.conn.UnderlyingConn().(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}

	c.isClose = true
	c.wCh <- nil
}

// WriteMessage queues data. It never blocks: when the buffer is full the
// connection is closed instead.
func (c *Conn) WriteMessage(data []byte) bool {
	c.Lock()
	defer c.Unlock()

	if c.isClose {
		return false
	}

	if len(c.wCh) >= cap(c.wCh)-1 {
		c.close()
		return false
	}

	c.wCh <- data

	return true
}

// readLoop discards client messages until the peer goes away.
func (c *Conn) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Conn) String() string {
	return "preview_conn"
}
