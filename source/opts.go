package source

import (
	"time"

	"vpresent/media"
)

const (
	DefaultFrames = 300
	DefaultWidth  = 320
	DefaultHeight = 240
)

var DefaultFrameRate = media.Ratio{Num: 30, Den: 1}

type Options struct {
	Frames int
	// Interval is how often a new input arrives. Zero means the frame
	// interval of the offered frame rate.
	Interval    time.Duration
	Start       time.Duration
	Types       []*media.MediaType
	Notify      func()
	EndOfStream func()
}

type Option func(*Options)

func OptionWithFrames(n int) Option {
	return func(o *Options) {
		o.Frames = n
	}
}

func OptionWithInterval(d time.Duration) Option {
	return func(o *Options) {
		o.Interval = d
	}
}

func OptionWithStart(ts time.Duration) Option {
	return func(o *Options) {
		o.Start = ts
	}
}

func OptionWithTypes(types ...*media.MediaType) Option {
	return func(o *Options) {
		o.Types = types
	}
}

func OptionWithNotify(f func()) Option {
	return func(o *Options) {
		o.Notify = f
	}
}

func OptionWithEndOfStream(f func()) Option {
	return func(o *Options) {
		o.EndOfStream = f
	}
}

// DefaultTypes offers every format at the given size and rate, RGB32 first.
func DefaultTypes(w, h int, rate media.Ratio) []*media.MediaType {
	formats := []media.PixelFormat{media.FormatRGB32, media.FormatARGB32, media.FormatNV12, media.FormatYUY2}
	types := make([]*media.MediaType, 0, len(formats))

	for _, f := range formats {
		types = append(types, &media.MediaType{
			Width:     w,
			Height:    h,
			Format:    f,
			FrameRate: rate,
			AspectX:   1,
			AspectY:   1,
		})
	}

	return types
}
