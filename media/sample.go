package media

import (
	"sync/atomic"
	"time"
)

// Sample is a reusable frame buffer handle. Whoever has it checked out owns
// it exclusively; ownership moves by handing the pointer over, never by
// sharing it.
type Sample struct {
	ID      int
	Width   int
	Height  int
	Format  PixelFormat
	Data    []byte
	Surface interface{}

	token    uint32
	time     time.Duration
	hasTime  bool
	duration time.Duration

	refs   int32
	onFree atomic.Value
}

type freeFunc func(*Sample)

func NewSample(id int, mt *MediaType) *Sample {
	s := &Sample{ID: id}

	if mt != nil {
		s.Width = mt.Width
		s.Height = mt.Height
		s.Format = mt.Format
		s.Data = make([]byte, mt.Format.FrameSize(mt.Width, mt.Height))
	}

	return s
}

func (s *Sample) Token() uint32 {
	return s.token
}

func (s *Sample) SetToken(t uint32) {
	s.token = t
}

// Time returns the presentation timestamp and whether one is set.
func (s *Sample) Time() (time.Duration, bool) {
	return s.time, s.hasTime
}

func (s *Sample) SetTime(t time.Duration) {
	s.time = t
	s.hasTime = true
}

func (s *Sample) ClearTime() {
	s.time = 0
	s.hasTime = false
}

func (s *Sample) Duration() time.Duration {
	return s.duration
}

func (s *Sample) SetDuration(d time.Duration) {
	s.duration = d
}

// Track arms the sample with a single reference. onFree runs once, on
// whichever goroutine drops the last reference.
func (s *Sample) Track(onFree func(*Sample)) {
	s.onFree.Store(freeFunc(onFree))
	atomic.StoreInt32(&s.refs, 1)
}

func (s *Sample) AddRef() {
	atomic.AddInt32(&s.refs, 1)
}

// Release drops one reference. It reports whether this call freed the
// sample. Releasing an untracked sample is a no-op.
func (s *Sample) Release() bool {
	for {
		n := atomic.LoadInt32(&s.refs)
		if n <= 0 {
			return false
		}

		if atomic.CompareAndSwapInt32(&s.refs, n, n-1) {
			if n > 1 {
				return false
			}

			break
		}
	}

	if f, ok := s.onFree.Load().(freeFunc); ok && f != nil {
		f(s)
	}

	return true
}

func (s *Sample) Refs() int32 {
	return atomic.LoadInt32(&s.refs)
}
