package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"vpresent/log"

	"go.uber.org/zap"
)

var DefaultGoLen uint32 = 1

// Infinite makes the loop wait for the next message with no timeout.
const Infinite time.Duration = -1

var (
	ErrorChanFull = errors.New("channel full")
	ErrorClosed   = errors.New("pipeline closed")
	ErrorTimeout  = errors.New("call timeout")
)

type CallMsg interface {
	Wait() interface{}
	RetCh() chan interface{}
}

// CallMsgIns is embedded by call messages. The reply channel is buffered so
// the loop never blocks on a caller that gave up waiting.
type CallMsgIns struct {
	ch chan interface{}
}

func (c *CallMsgIns) Init() {
	c.ch = make(chan interface{}, 1)
}

func (c *CallMsgIns) Wait() interface{} {
	return <-c.ch
}

func (c *CallMsgIns) RetCh() chan interface{} {
	return c.ch
}

type GoFunc func([]interface{})

type CallFunc func(CallMsg) interface{}

// IdleFunc runs after every message and every timeout. It returns how long
// the loop may wait for the next message before calling it again.
type IdleFunc func() time.Duration

type Pipeline struct {
	stopCh   chan bool
	isStopCh chan bool

	goCh   chan []interface{}
	callCh chan interface{}

	goFuncs   map[reflect.Type]GoFunc
	callFuncs map[reflect.Type]CallFunc

	dftGoFunc GoFunc
	idle      IdleFunc

	running  int32
	isClosed int32
	stopOnce sync.Once
}

func NewDefault() *Pipeline {
	p := &Pipeline{}
	p.init(DefaultGoLen)

	return p
}

func NewPipeline(goLen uint32) *Pipeline {
	p := &Pipeline{}
	p.init(goLen)

	return p
}

func (p *Pipeline) init(goLen uint32) {
	p.stopCh = make(chan bool, 1)
	p.isStopCh = make(chan bool, 1)
	p.goCh = make(chan []interface{}, int(goLen))
	p.callCh = make(chan interface{}, 1)
	p.goFuncs = make(map[reflect.Type]GoFunc)
	p.callFuncs = make(map[reflect.Type]CallFunc)
}

// Run blocks until Stop. It must run on exactly one goroutine.
func (p *Pipeline) Run() {
	atomic.StoreInt32(&p.running, 1)

	wait := p.nextWait()

GoEndFor:
	for {
		var (
			t  *time.Timer
			tc <-chan time.Time
		)

		if wait >= 0 {
			t = time.NewTimer(wait)
			tc = t.C
		}

		select {
		case <-p.stopCh:
			if t != nil {
				t.Stop()
			}

			break GoEndFor
		case msg := <-p.goCh:
			p.execGo(msg)
		case msg := <-p.callCh:
			p.execCall(msg)
		case <-tc:
		}

		if t != nil {
			t.Stop()
		}

		wait = p.nextWait()
	}

CallEndFor:
	for {
		select {
		case msg := <-p.callCh:
			p.execCall(msg)
		case msg := <-p.goCh:
			p.execGo(msg)
		default:
			break CallEndFor
		}
	}

	atomic.StoreInt32(&p.running, 0)
	p.isStopCh <- true
}

func (p *Pipeline) nextWait() time.Duration {
	if p.idle == nil {
		return Infinite
	}

	return p.idle()
}

func (p *Pipeline) execGo(msg []interface{}) {
	t := reflect.TypeOf(msg[0])
	if f, ok := p.goFuncs[t]; ok {
		f(msg)
	} else {
		if p.dftGoFunc != nil {
			p.dftGoFunc(msg)
		} else {
			log.Warn("dispatchMessage", zap.String("msgtype", t.String()))
		}
	}
}

func (p *Pipeline) execCall(msg interface{}) {
	t := reflect.TypeOf(msg)
	if f, ok := p.callFuncs[t]; ok {
		m := msg.(CallMsg)
		m.RetCh() <- f(m)
	} else {
		if p.dftGoFunc != nil {
			p.dftGoFunc([]interface{}{msg})
		} else {
			log.Warn("dispatchMessage", zap.String("msgtype", t.String()))
		}
	}
}

func (p *Pipeline) RegisterGo(m interface{}, f GoFunc) {
	if _, ok := p.goFuncs[reflect.TypeOf(m)]; ok {
		panic(fmt.Sprintf("msg %v: already registered", m))
	}

	p.goFuncs[reflect.TypeOf(m)] = f
}

func (p *Pipeline) RegisterCall(m CallMsg, f CallFunc) {
	if _, ok := p.callFuncs[reflect.TypeOf(m)]; ok {
		panic(fmt.Sprintf("msg %v: already registered", m))
	}

	p.callFuncs[reflect.TypeOf(m)] = f
}

func (p *Pipeline) SetDefaultGoFunc(f GoFunc) {
	p.dftGoFunc = f
}

// SetIdleFunc must be called before Run.
func (p *Pipeline) SetIdleFunc(f IdleFunc) {
	p.idle = f
}

func (p *Pipeline) Running() bool {
	return atomic.LoadInt32(&p.running) == 1
}

// Stop asks the loop to exit and waits until it has. Messages already
// queued are still handled.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.isClosed, 1)

		select {
		case p.stopCh <- true:
		default:
		}

		<-p.isStopCh
		close(p.isStopCh)
	})
}

func (p *Pipeline) closed() bool {
	return atomic.LoadInt32(&p.isClosed) == 1
}

func (p *Pipeline) Go(m []interface{}) error {
	if p.closed() {
		return ErrorClosed
	}

	select {
	case p.goCh <- m:
	default:
		return ErrorChanFull
	}

	return nil
}

func (p *Pipeline) Call(m CallMsg) (interface{}, error) {
	if p.closed() {
		return nil, ErrorClosed
	}

	select {
	case p.callCh <- m:
	default:
		return nil, ErrorChanFull
	}

	return m.Wait(), nil
}

// CallTimeout posts m and waits at most d for the reply.
func (p *Pipeline) CallTimeout(m CallMsg, d time.Duration) (interface{}, error) {
	if p.closed() {
		return nil, ErrorClosed
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case p.callCh <- m:
	case <-t.C:
		return nil, ErrorTimeout
	}

	select {
	case r := <-m.RetCh():
		return r, nil
	case <-t.C:
		return nil, ErrorTimeout
	}
}
