package presenter

import (
	"vpresent/media"

	"github.com/pkg/errors"
)

type clockOp int

const (
	opStart clockOp = iota
	opRestart
	opPause
	opStop
	opSetRate
)

func (o clockOp) String() string {
	switch o {
	case opStart:
		return "start"
	case opRestart:
		return "restart"
	case opPause:
		return "pause"
	case opStop:
		return "stop"
	case opSetRate:
		return "setrate"
	default:
		return "unknown"
	}
}

// transitions lists, per clock operation, the render states it may be
// applied in and the state it leaves the presenter in. A missing target
// means the state is unchanged.
var transitions = map[clockOp]struct {
	from map[media.RenderState]bool
	to   *media.RenderState
}{
	opStart: {
		from: map[media.RenderState]bool{media.Stopped: true, media.Started: true, media.Paused: true},
		to:   renderState(media.Started),
	},
	opRestart: {
		from: map[media.RenderState]bool{media.Paused: true},
		to:   renderState(media.Started),
	},
	opPause: {
		from: map[media.RenderState]bool{media.Stopped: true, media.Started: true, media.Paused: true},
		to:   renderState(media.Paused),
	},
	opStop: {
		from: map[media.RenderState]bool{media.Stopped: true, media.Started: true, media.Paused: true},
		to:   renderState(media.Stopped),
	},
	opSetRate: {
		from: map[media.RenderState]bool{media.Stopped: true, media.Started: true, media.Paused: true},
	},
}

func renderState(s media.RenderState) *media.RenderState {
	return &s
}

// transition validates op against the current state and returns the
// state to move to.
func transition(cur media.RenderState, op clockOp) (media.RenderState, error) {
	if cur == media.Shutdown {
		return cur, errors.WithStack(media.ErrShutdown)
	}

	t, ok := transitions[op]
	if !ok || !t.from[cur] {
		return cur, errors.Wrapf(media.ErrInvalidState, "%s while %s", op, cur)
	}

	if t.to == nil {
		return cur, nil
	}

	return *t.to, nil
}
