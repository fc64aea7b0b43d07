package pool

import (
	"errors"
	"math/rand"
	"testing"

	"vpresent/media"
)

func samples(n int) []*media.Sample {
	res := make([]*media.Sample, n)
	for i := range res {
		res[i] = media.NewSample(i, nil)
	}

	return res
}

func TestAcquireUntilEmpty(t *testing.T) {
	p := New()
	if err := p.Initialize(samples(3)); err != nil {
		t.Fatal(err)
	}

	var got []*media.Sample

	for i := 0; i < 5; i++ {
		s, err := p.Acquire()
		if i < 3 {
			if err != nil {
				t.Fatalf("acquire %d: %v", i, err)
			}

			got = append(got, s)

			continue
		}

		if !errors.Is(err, media.ErrEmpty) {
			t.Fatalf("acquire %d: want ErrEmpty, got %v", i, err)
		}
	}

	if err := p.Release(got[0]); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Acquire(); err != nil {
		t.Fatalf("retry after release: %v", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	p := New()
	if err := p.Initialize(samples(2)); err != nil {
		t.Fatal(err)
	}

	if err := p.Initialize(samples(2)); !errors.Is(err, media.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}

func TestUninitialized(t *testing.T) {
	p := New()

	if _, err := p.Acquire(); !errors.Is(err, media.ErrNotInitialized) {
		t.Fatalf("acquire: %v", err)
	}

	if err := p.Release(media.NewSample(0, nil)); !errors.Is(err, media.ErrInvalidState) {
		t.Fatalf("release: %v", err)
	}
}

func TestClearResets(t *testing.T) {
	p := New()
	_ = p.Initialize(samples(3))
	s, _ := p.Acquire()

	p.Clear()

	if p.Initialized() || p.Pending() != 0 || p.Free() != 0 {
		t.Fatal("clear should reset the pool")
	}

	if err := p.Release(s); !errors.Is(err, media.ErrInvalidState) {
		t.Fatalf("release after clear: %v", err)
	}

	if err := p.Initialize(samples(2)); err != nil {
		t.Fatalf("reinitialize: %v", err)
	}
}

func TestCountInvariant(t *testing.T) {
	const n = 4

	p := New()
	_ = p.Initialize(samples(n))

	r := rand.New(rand.NewSource(7))

	var out []*media.Sample

	for i := 0; i < 1000; i++ {
		if r.Intn(2) == 0 {
			if s, err := p.Acquire(); err == nil {
				out = append(out, s)
			}
		} else if len(out) > 0 {
			k := r.Intn(len(out))
			if err := p.Release(out[k]); err != nil {
				t.Fatal(err)
			}

			out = append(out[:k], out[k+1:]...)
		} else if err := p.Release(media.NewSample(99, nil)); !errors.Is(err, media.ErrInvalidState) {
			t.Fatalf("over-release: %v", err)
		}

		if p.Pending()+p.Free() != n {
			t.Fatalf("step %d: pending %d + free %d != %d", i, p.Pending(), p.Free(), n)
		}

		if p.Pending() != len(out) {
			t.Fatalf("step %d: pending %d, held %d", i, p.Pending(), len(out))
		}
	}
}
