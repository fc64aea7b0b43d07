package presenter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vpresent/media"
)

type manualClock struct {
	now   int64
	state int32
}

func newManualClock() *manualClock {
	return &manualClock{state: int32(media.ClockRunning)}
}

func (c *manualClock) Time() (time.Duration, error) {
	return time.Duration(atomic.LoadInt64(&c.now)), nil
}

func (c *manualClock) State() media.ClockState {
	return media.ClockState(atomic.LoadInt32(&c.state))
}

func (c *manualClock) Set(d time.Duration) {
	atomic.StoreInt64(&c.now, int64(d))
}

type presentRecord struct {
	id     int
	target time.Duration
}

type fakeEngine struct {
	mu        sync.Mutex
	formats   map[media.PixelFormat]bool
	created   int
	released  int
	device    media.DeviceState
	refresh   float64
	presented []presentRecord
	arrived   chan presentRecord
	failures  []error
	attempts  int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		refresh: 60,
		arrived: make(chan presentRecord, 256),
	}
}

func (e *fakeEngine) CheckFormat(mt *media.MediaType) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.formats != nil && !e.formats[mt.Format] {
		return media.ErrFormatUnsupported
	}

	return nil
}

func (e *fakeEngine) CreateVideoSamples(mt *media.MediaType, n int) ([]*media.Sample, error) {
	e.mu.Lock()
	e.created++
	e.mu.Unlock()

	res := make([]*media.Sample, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, media.NewSample(i, mt))
	}

	return res, nil
}

func (e *fakeEngine) ReleaseResources() {
	e.mu.Lock()
	e.released++
	e.mu.Unlock()
}

// CheckDeviceState reports a reset once; the device is recreated by the
// check itself.
func (e *fakeEngine) CheckDeviceState() (media.DeviceState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := e.device
	if d == media.DeviceReset {
		e.device = media.DeviceOK
	}

	return d, nil
}

func (e *fakeEngine) setDevice(d media.DeviceState) {
	e.mu.Lock()
	e.device = d
	e.mu.Unlock()
}

func (e *fakeEngine) PresentSample(s *media.Sample, target time.Duration) error {
	r := presentRecord{id: -1, target: target}
	if s != nil {
		r.id = s.ID
	}

	e.mu.Lock()
	e.attempts++

	if len(e.failures) > 0 {
		err := e.failures[0]
		e.failures = e.failures[1:]
		e.mu.Unlock()

		return err
	}

	e.presented = append(e.presented, r)
	e.mu.Unlock()

	e.arrived <- r

	return nil
}

// failPresent makes the next presents fail with errs, in order.
func (e *fakeEngine) failPresent(errs ...error) {
	e.mu.Lock()
	e.failures = append(e.failures, errs...)
	e.mu.Unlock()
}

func (e *fakeEngine) attemptCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.attempts
}

func (e *fakeEngine) RefreshRate() float64 {
	return e.refresh
}

func (e *fakeEngine) presentedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.presented)
}

func (e *fakeEngine) createdCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.created
}

func (e *fakeEngine) waitPresent(t *testing.T) presentRecord {
	t.Helper()

	select {
	case r := <-e.arrived:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("nothing presented")
	}

	return presentRecord{}
}

type fakeMixer struct {
	mu       sync.Mutex
	types    []*media.MediaType
	set      *media.MediaType
	avail    int
	next     time.Duration
	interval time.Duration
	fail     error
}

func newFakeMixer(types ...*media.MediaType) *fakeMixer {
	return &fakeMixer{
		types:    types,
		interval: time.Second / 30,
	}
}

func (m *fakeMixer) OutputAvailableType(i int) (*media.MediaType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i >= len(m.types) {
		return nil, media.ErrNoMoreTypes
	}

	return m.types[i].Clone(), nil
}

func (m *fakeMixer) SetOutputType(mt *media.MediaType, testOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !testOnly {
		m.set = mt.Clone()
	}

	return nil
}

func (m *fakeMixer) ProcessOutput(s *media.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		err := m.fail
		m.fail = nil

		return err
	}

	if m.avail == 0 {
		return media.ErrNeedMoreInput
	}

	m.avail--
	s.SetTime(m.next)
	s.SetDuration(m.interval)
	m.next += m.interval

	return nil
}

// feed makes n more frames available starting at ts.
func (m *fakeMixer) feed(n int, ts time.Duration) {
	m.mu.Lock()
	m.avail += n
	m.next = ts
	m.mu.Unlock()
}

func (m *fakeMixer) failNext(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []media.Event
	ch     chan media.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan media.Event, 256)}
}

func (r *recordingSink) Notify(e media.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	r.ch <- e
}

func (r *recordingSink) count(code media.EventCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, e := range r.events {
		if e.Code == code {
			n++
		}
	}

	return n
}

func (r *recordingSink) waitFor(t *testing.T, code media.EventCode) media.Event {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case e := <-r.ch:
			if e.Code == code {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", code)
		}
	}
}

type countingObserver struct {
	mu       sync.Mutex
	discards map[string]int
	drawn    int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{discards: make(map[string]int)}
}

func (o *countingObserver) ObserveDrawn(time.Duration) {
	o.mu.Lock()
	o.drawn++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDiscard(reason string) {
	o.mu.Lock()
	o.discards[reason]++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveEvent(media.EventCode) {}

func (o *countingObserver) ObservePending(int) {}

func (o *countingObserver) discarded(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.discards[reason]
}

var (
	rgbType  = &media.MediaType{Width: 16, Height: 8, Format: media.FormatRGB32, FrameRate: media.Ratio{Num: 30, Den: 1}}
	nv12Type = &media.MediaType{Width: 16, Height: 8, Format: media.FormatNV12, FrameRate: media.Ratio{Num: 30, Den: 1}}
)

type harness struct {
	p     *Presenter
	eng   *fakeEngine
	mixer *fakeMixer
	sink  *recordingSink
	clock *manualClock
}

// newHarness returns a streaming presenter with a negotiated RGB32 type.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		eng:   newFakeEngine(),
		mixer: newFakeMixer(rgbType),
		sink:  newRecordingSink(),
		clock: newManualClock(),
	}

	h.p = New(h.eng, append([]Option{OptionWithEventSink(h.sink)}, opts...)...)
	t.Cleanup(func() { _ = h.p.Shutdown() })

	if err := h.p.InitServicePointers(h.mixer, h.clock); err != nil {
		t.Fatal(err)
	}

	if err := h.p.ProcessMessage(MsgInvalidateMediaType, 0); err != nil {
		t.Fatal(err)
	}

	if err := h.p.ProcessMessage(MsgBeginStreaming, 0); err != nil {
		t.Fatal(err)
	}

	return h
}

func eventually(t *testing.T, what string, f func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for !f() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}

		time.Sleep(5 * time.Millisecond)
	}
}
