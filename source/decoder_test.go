package source

import (
	"errors"
	"testing"
	"time"

	"vpresent/media"
)

var smallTypes = DefaultTypes(16, 8, media.Ratio{Num: 50, Den: 1})

func TestSetOutputType(t *testing.T) {
	d := NewDecoder(OptionWithTypes(smallTypes...))

	if err := d.SetOutputType(&media.MediaType{Width: 1, Height: 1, Format: media.FormatRGB32}, true); !errors.Is(err, media.ErrFormatUnsupported) {
		t.Fatalf("got %v", err)
	}

	if err := d.SetOutputType(smallTypes[2], true); err != nil {
		t.Fatal(err)
	}

	s := media.NewSample(0, smallTypes[0])
	if err := d.ProcessOutput(s); !errors.Is(err, media.ErrTypeNotSet) {
		t.Fatalf("test-only set should not stick: %v", err)
	}

	if _, err := d.OutputAvailableType(len(smallTypes)); !errors.Is(err, media.ErrNoMoreTypes) {
		t.Fatalf("got %v", err)
	}
}

func TestProducesTimedFrames(t *testing.T) {
	notified := make(chan struct{}, 16)
	eos := make(chan struct{})

	d := NewDecoder(
		OptionWithTypes(smallTypes...),
		OptionWithFrames(3),
		OptionWithInterval(time.Millisecond),
		OptionWithStart(time.Second),
		OptionWithNotify(func() { notified <- struct{}{} }),
		OptionWithEndOfStream(func() { close(eos) }),
	)

	if err := d.SetOutputType(smallTypes[0], false); err != nil {
		t.Fatal(err)
	}

	s := media.NewSample(0, smallTypes[0])
	if err := d.ProcessOutput(s); !errors.Is(err, media.ErrNeedMoreInput) {
		t.Fatalf("before start: %v", err)
	}

	d.Start()
	defer d.Stop()

	select {
	case <-eos:
	case <-time.After(2 * time.Second):
		t.Fatal("no end of stream")
	}

	if len(notified) != 3 || d.Pending() != 3 || !d.EndOfStream() {
		t.Fatalf("notified %d pending %d", len(notified), d.Pending())
	}

	for i := 0; i < 3; i++ {
		if err := d.ProcessOutput(s); err != nil {
			t.Fatal(err)
		}

		ts, ok := s.Time()
		want := time.Second + time.Duration(i)*20*time.Millisecond

		if !ok || ts != want || s.Duration() != 20*time.Millisecond {
			t.Fatalf("frame %d: time %v duration %v", i, ts, s.Duration())
		}
	}

	if err := d.ProcessOutput(s); !errors.Is(err, media.ErrNeedMoreInput) {
		t.Fatalf("after last frame: %v", err)
	}
}

func TestMismatchedSampleIsStreamChange(t *testing.T) {
	d := NewDecoder(OptionWithTypes(smallTypes...), OptionWithFrames(1), OptionWithInterval(time.Millisecond))
	_ = d.SetOutputType(smallTypes[0], false)

	d.Start()
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for d.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := d.ProcessOutput(media.NewSample(0, smallTypes[2])); !errors.Is(err, media.ErrStreamChange) {
		t.Fatalf("got %v", err)
	}
}

func TestPatternScrolls(t *testing.T) {
	for _, mt := range smallTypes {
		a := media.NewSample(0, mt)
		b := media.NewSample(1, mt)

		paint(a, 0)
		paint(b, 1)

		if string(a.Data) == string(b.Data) {
			t.Fatalf("%s: frames 0 and 1 identical", mt.Format)
		}
	}
}
