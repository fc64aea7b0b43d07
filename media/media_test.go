package media

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrameInterval(t *testing.T) {
	cases := []struct {
		rate Ratio
		want time.Duration
	}{
		{Ratio{30, 1}, 33333333},
		{Ratio{30000, 1001}, 33366666},
		{Ratio{25, 1}, 40 * time.Millisecond},
		{Ratio{0, 1}, 0},
	}

	for _, c := range cases {
		mt := &MediaType{FrameRate: c.rate}
		if got := mt.FrameInterval(); got != c.want {
			t.Errorf("%s: interval %v, want %v", c.rate, got, c.want)
		}
	}
}

func TestMediaTypeEqual(t *testing.T) {
	a := &MediaType{Width: 640, Height: 480, Format: FormatRGB32, FrameRate: Ratio{30, 1}}
	b := a.Clone()

	if !a.Equal(b) {
		t.Fatal("clone should be equal")
	}

	b.Width = 1280
	if a.Equal(b) {
		t.Fatal("different width should not be equal")
	}

	var n *MediaType
	if n.Equal(a) || !n.Equal(nil) {
		t.Fatal("nil comparison")
	}
}

func TestMediaTypeEquivalentRatios(t *testing.T) {
	base := &MediaType{Width: 16, Height: 8, Format: FormatNV12, FrameRate: Ratio{30, 1}}

	tests := []struct {
		name  string
		other MediaType
		equal bool
	}{
		{"scaled frame rate", MediaType{Width: 16, Height: 8, Format: FormatNV12, FrameRate: Ratio{60, 2}}, true},
		{"square aspect", MediaType{Width: 16, Height: 8, Format: FormatNV12, FrameRate: Ratio{30, 1}, AspectX: 2, AspectY: 2}, true},
		{"wide aspect", MediaType{Width: 16, Height: 8, Format: FormatNV12, FrameRate: Ratio{30, 1}, AspectX: 16, AspectY: 9}, false},
		{"other rate", MediaType{Width: 16, Height: 8, Format: FormatNV12, FrameRate: Ratio{25, 1}}, false},
		{"interlaced", MediaType{Width: 16, Height: 8, Format: FormatNV12, FrameRate: Ratio{30, 1}, Interlaced: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := tt.other
			if got := base.Equal(&other); got != tt.equal {
				t.Fatalf("Equal = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestSampleReleaseFiresOnce(t *testing.T) {
	s := NewSample(0, &MediaType{Width: 4, Height: 2, Format: FormatRGB32})
	if len(s.Data) != 32 {
		t.Fatalf("data len %d", len(s.Data))
	}

	var freed int32

	s.Track(func(*Sample) { atomic.AddInt32(&freed, 1) })
	s.AddRef()
	s.AddRef()

	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.Release()
		}()
	}

	wg.Wait()

	if freed != 1 {
		t.Fatalf("freed %d times", freed)
	}

	if s.Release() {
		t.Fatal("release past zero should be a no-op")
	}

	if freed != 1 {
		t.Fatalf("freed %d times after extra release", freed)
	}
}

func TestSampleTime(t *testing.T) {
	s := NewSample(1, nil)
	if _, ok := s.Time(); ok {
		t.Fatal("fresh sample has no time")
	}

	s.SetTime(50 * time.Millisecond)

	if ts, ok := s.Time(); !ok || ts != 50*time.Millisecond {
		t.Fatalf("time %v %v", ts, ok)
	}

	s.ClearTime()

	if _, ok := s.Time(); ok {
		t.Fatal("time should be cleared")
	}
}
