package presenter

import (
	"sync"
	"time"

	"vpresent/media"
)

// Stats are the playback quality counters.
type Stats struct {
	FramesDrawn   int64
	FramesDropped int64
	// Jitter is the clock time between the last two presented frames.
	Jitter time.Duration
	// AvgSyncOffset is the mean distance between a frame's timestamp and
	// the clock when it was shown.
	AvgSyncOffset time.Duration
}

type statsRecorder struct {
	mu        sync.Mutex
	clock     media.Clock
	drawnN    int64
	droppedN  int64
	jitter    time.Duration
	totalDiff time.Duration
	last      time.Duration
	hasLast   bool
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

func (r *statsRecorder) setClock(c media.Clock) {
	r.mu.Lock()
	r.clock = c
	r.hasLast = false
	r.mu.Unlock()
}

// drawn records a presented frame and returns its sync offset.
func (r *statsRecorder) drawn(s *media.Sample) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drawnN++

	if r.clock == nil || s == nil {
		return 0
	}

	now, err := r.clock.Time()
	if err != nil {
		return 0
	}

	var offset time.Duration

	if ts, ok := s.Time(); ok && ts > 0 {
		offset = now - ts
		if offset < 0 {
			offset = -offset
		}

		r.totalDiff += offset
	}

	if r.hasLast {
		r.jitter = now - r.last
	}

	r.last = now
	r.hasLast = true

	return offset
}

func (r *statsRecorder) dropped() {
	r.mu.Lock()
	r.droppedN++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		FramesDrawn:   r.drawnN,
		FramesDropped: r.droppedN,
		Jitter:        r.jitter,
	}

	if r.drawnN > 0 {
		st.AvgSyncOffset = r.totalDiff / time.Duration(r.drawnN)
	}

	return st
}
