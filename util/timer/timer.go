package timer

import (
	"sync"
	"time"
)

type Ticker interface {
	Stop()
}

type ticker struct {
	t    *time.Ticker
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// NewTicker calls f every d until Stop.
func NewTicker(d time.Duration, f func()) Ticker {
	return NewTickerN(d, 0, func(int) { f() }, nil)
}

// NewTickerN calls f with the tick index n times, then calls done. A zero n
// ticks until Stop. done is not called when the ticker is stopped early.
func NewTickerN(d time.Duration, n int, f func(int), done func()) Ticker {
	t := &ticker{
		t:    time.NewTicker(d),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer t.t.Stop()

		for i := 0; n == 0 || i < n; i++ {
			select {
			case <-t.t.C:
				f(i)
			case <-t.stop:
				return
			}
		}

		if done != nil {
			done()
		}
	}()

	return t
}

// Stop waits for an in-flight callback to return.
func (t *ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
	<-t.done
}
