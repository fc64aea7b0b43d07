package media

import "errors"

var (
	ErrNotInitialized    = errors.New("not initialized")
	ErrEmpty             = errors.New("no free sample")
	ErrInvalidState      = errors.New("invalid state")
	ErrDeviceLost        = errors.New("device lost")
	ErrDeviceRemoved     = errors.New("device removed")
	ErrFormatUnsupported = errors.New("format unsupported")
	ErrShutdown          = errors.New("shut down")

	ErrNeedMoreInput   = errors.New("need more input")
	ErrStreamChange    = errors.New("stream change")
	ErrTypeNotSet      = errors.New("output type not set")
	ErrNoMoreTypes     = errors.New("no more types")
	ErrUnsupportedRate = errors.New("unsupported rate")
	ErrTimeout         = errors.New("timeout")
	ErrChanFull        = errors.New("channel full")
)
