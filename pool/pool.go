package pool

import (
	"sync"

	"vpresent/media"
)

// Pool is a bounded free list of samples. Pending()+Free() == Size() holds
// after every call.
type Pool struct {
	mu          sync.Mutex
	free        []*media.Sample
	size        int
	pending     int
	initialized bool
}

func New() *Pool {
	return &Pool{}
}

func (p *Pool) Initialize(samples []*media.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return media.ErrInvalidState
	}

	p.free = make([]*media.Sample, 0, len(samples))
	p.free = append(p.free, samples...)
	p.size = len(samples)
	p.pending = 0
	p.initialized = true

	return nil
}

func (p *Pool) Acquire() (*media.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, media.ErrNotInitialized
	}

	n := len(p.free)
	if n == 0 {
		return nil, media.ErrEmpty
	}

	s := p.free[0]
	copy(p.free, p.free[1:])
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.pending++

	return s, nil
}

func (p *Pool) Release(s *media.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized || p.pending == 0 {
		return media.ErrInvalidState
	}

	p.free = append(p.free, s)
	p.pending--

	return nil
}

func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pending
}

func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.free)
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.size
}

func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.initialized
}

// Clear drops every sample, checked out or not, and returns the pool to
// the uninitialized state.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = nil
	p.size = 0
	p.pending = 0
	p.initialized = false
}
