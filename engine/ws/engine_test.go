package ws

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"vpresent/engine"
	"vpresent/media"

	"github.com/gorilla/websocket"
)

func TestEncodeDecodeHeader(t *testing.T) {
	f := engine.Frame{
		Width:  640,
		Height: 360,
		Format: media.FormatNV12,
		Token:  9,
		Target: 1500 * time.Millisecond,
		Data:   []byte{1, 2, 3},
	}

	h, pix, err := DecodeHeader(EncodeFrame(f))
	if err != nil {
		t.Fatal(err)
	}

	if h.Width != 640 || h.Height != 360 || h.Format != media.FormatNV12.Code() || h.Token != 9 {
		t.Fatalf("header %+v", h)
	}

	if time.Duration(h.Target) != f.Target || len(pix) != 3 || pix[2] != 3 {
		t.Fatalf("target %v pixels %v", h.Target, pix)
	}

	if _, _, err := DecodeHeader([]byte{1}); err == nil {
		t.Fatal("short frame accepted")
	}
}

func TestPreviewBroadcast(t *testing.T) {
	svr := NewServer(ServerOptionWithAddr("127.0.0.1:0"), ServerOptionWithMaxConnNum(1))
	if err := svr.Start(); err != nil {
		t.Fatal(err)
	}
	defer svr.Stop()

	url := "ws://" + svr.Addr() + DefaultPath

	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for svr.ConnCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}

		time.Sleep(5 * time.Millisecond)
	}

	// over the connection limit
	if c2, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		_ = c2.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := c2.ReadMessage(); err == nil {
			t.Fatal("second client should be refused")
		}
		c2.Close()
	}

	e := NewEngine(svr)
	mt := &media.MediaType{Width: 2, Height: 2, Format: media.FormatRGB32}

	samples, err := e.CreateVideoSamples(mt, 1)
	if err != nil {
		t.Fatal(err)
	}

	samples[0].Data[0] = 0xAB

	if err := e.PresentSample(samples[0], 40*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	h, pix, err := DecodeHeader(msg)
	if err != nil {
		t.Fatal(err)
	}

	if h.Width != 2 || len(pix) != 16 || pix[0] != 0xAB || time.Duration(h.Target) != 40*time.Millisecond {
		t.Fatalf("header %+v, %d pixel bytes", h, len(pix))
	}
}

func TestPreviewRejectsPost(t *testing.T) {
	svr := NewServer(ServerOptionWithAddr("127.0.0.1:0"))
	if err := svr.Start(); err != nil {
		t.Fatal(err)
	}
	defer svr.Stop()

	resp, err := http.Post("http://"+svr.Addr()+DefaultPath, "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != ErrorMethodNotAllow {
		t.Fatalf("status %d", resp.StatusCode)
	}
}
