package ws

import (
	"encoding/binary"

	"vpresent/engine"

	"github.com/pkg/errors"
)

// HeaderLen is the size of the frame header that precedes the pixels:
// width, height, format code and token as uint32, then the target time in
// nanoseconds as int64, all big endian.
const HeaderLen = 24

var ErrShortFrame = errors.New("short preview frame")

// Engine is a memory present engine that also streams every shown frame
// to preview clients.
type Engine struct {
	*engine.Memory

	svr *Server
}

func NewEngine(svr *Server, opts ...engine.Option) *Engine {
	e := &Engine{svr: svr}

	opts = append(opts, engine.OptionWithDisplay(e.display))
	e.Memory = engine.NewMemory(opts...)

	return e
}

func (e *Engine) Server() *Server {
	return e.svr
}

func (e *Engine) display(f engine.Frame) {
	e.svr.Broadcast(EncodeFrame(f))
}

func EncodeFrame(f engine.Frame) []byte {
	b := make([]byte, HeaderLen+len(f.Data))

	binary.BigEndian.PutUint32(b[0:], uint32(f.Width))
	binary.BigEndian.PutUint32(b[4:], uint32(f.Height))
	binary.BigEndian.PutUint32(b[8:], f.Format.Code())
	binary.BigEndian.PutUint32(b[12:], f.Token)
	binary.BigEndian.PutUint64(b[16:], uint64(f.Target))
	copy(b[HeaderLen:], f.Data)

	return b
}

// Header is the decoded frame header.
type Header struct {
	Width  uint32
	Height uint32
	Format uint32
	Token  uint32
	Target int64
}

func DecodeHeader(b []byte) (Header, []byte, error) {
	if len(b) < HeaderLen {
		return Header{}, nil, errors.WithStack(ErrShortFrame)
	}

	h := Header{
		Width:  binary.BigEndian.Uint32(b[0:]),
		Height: binary.BigEndian.Uint32(b[4:]),
		Format: binary.BigEndian.Uint32(b[8:]),
		Token:  binary.BigEndian.Uint32(b[12:]),
		Target: int64(binary.BigEndian.Uint64(b[16:])),
	}

	return h, b[HeaderLen:], nil
}
