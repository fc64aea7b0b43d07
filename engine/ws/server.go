package ws

import (
	"net"
	"net/http"
	"sync"
	"time"

	"vpresent/log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ErrorMethodNotAllow   int           = 405
	DefaultMaxConnNum     uint32        = 16
	DefaultWriteBufLen    uint32        = 8
	DefaultMaxHeaderBytes uint32        = 1024
	DefaultHTTPTimeOut    time.Duration = 1000 * time.Millisecond
	DefaultPath                         = "/preview"
)

type ServerOptions struct {
	Addr           string
	ID             string
	Path           string
	MaxConnNum     uint32
	MaxWriteBufLen uint32
	HTTPTimeout    time.Duration
}

type ServerOption func(*ServerOptions)

func ServerOptionWithAddr(a string) ServerOption {
	return func(o *ServerOptions) {
		o.Addr = a
	}
}

func ServerOptionWithID(id string) ServerOption {
	return func(o *ServerOptions) {
		o.ID = id
	}
}

func ServerOptionWithPath(p string) ServerOption {
	return func(o *ServerOptions) {
		o.Path = p
	}
}

func ServerOptionWithMaxConnNum(n uint32) ServerOption {
	return func(o *ServerOptions) {
		o.MaxConnNum = n
	}
}

func ServerOptionWithMaxWriteBufLen(n uint32) ServerOption {
	return func(o *ServerOptions) {
		o.MaxWriteBufLen = n
	}
}

// Server pushes binary frames to every connected preview client.
type Server struct {
	opts ServerOptions

	ln         net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mutexConns sync.Mutex
	conns      map[*websocket.Conn]*Conn
	wg         sync.WaitGroup
	wgLn       sync.WaitGroup
}

func NewServer(opts ...ServerOption) *Server {
	svr := &Server{}

	for _, o := range opts {
		o(&svr.opts)
	}

	if svr.opts.MaxConnNum == 0 {
		svr.opts.MaxConnNum = DefaultMaxConnNum
	}

	if svr.opts.MaxWriteBufLen < 2 {
		svr.opts.MaxWriteBufLen = DefaultWriteBufLen
	}

	if svr.opts.HTTPTimeout == 0 {
		svr.opts.HTTPTimeout = DefaultHTTPTimeOut
	}

	if svr.opts.Path == "" {
		svr.opts.Path = DefaultPath
	}

	if svr.opts.ID == "" {
		svr.opts.ID = uuid.New().String()
	}

	svr.upgrader = websocket.Upgrader{
		HandshakeTimeout: svr.opts.HTTPTimeout,
		CheckOrigin:      func(_ *http.Request) bool { return true },
	}

	return svr
}

func (svr *Server) Options() ServerOptions {
	return svr.opts
}

func (svr *Server) String() string {
	return "ws-preview"
}

// Start listens and serves in the background.
func (svr *Server) Start() error {
	ln, err := net.Listen("tcp", svr.opts.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	mux := http.NewServeMux()
	mux.Handle(svr.opts.Path, svr)

	svr.mutexConns.Lock()
	svr.ln = ln
	svr.conns = make(map[*websocket.Conn]*Conn)
	svr.httpServer = &http.Server{
		Handler:        mux,
		ReadTimeout:    svr.opts.HTTPTimeout,
		MaxHeaderBytes: int(DefaultMaxHeaderBytes),
	}
	svr.mutexConns.Unlock()

	svr.wgLn.Add(1)

	go func() {
		defer svr.wgLn.Done()

		if err := svr.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn("PreviewServe", zap.String("err", err.Error()))
		}
	}()

	log.Info("PreviewServer", zap.String("addr", ln.Addr().String()), zap.String("id", svr.opts.ID))

	return nil
}

// Addr is the bound listen address, useful with ":0".
func (svr *Server) Addr() string {
	svr.mutexConns.Lock()
	defer svr.mutexConns.Unlock()

	if svr.ln == nil {
		return ""
	}

	return svr.ln.Addr().String()
}

func (svr *Server) Stop() {
	svr.mutexConns.Lock()
	hs := svr.httpServer
	conns := svr.conns
	svr.conns = nil
	svr.mutexConns.Unlock()

	if hs == nil {
		return
	}

	_ = hs.Close()
	svr.wgLn.Wait()

	for _, co := range conns {
		co.Close()
	}

	svr.wg.Wait()
}

func (svr *Server) ConnCount() int {
	svr.mutexConns.Lock()
	defer svr.mutexConns.Unlock()

	return len(svr.conns)
}

// Broadcast queues data on every connection.
func (svr *Server) Broadcast(data []byte) {
	svr.mutexConns.Lock()
	defer svr.mutexConns.Unlock()

	for _, co := range svr.conns {
		co.WriteMessage(data)
	}
}

func (svr *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", ErrorMethodNotAllow)

		return
	}

	conn, err := svr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	svr.wg.Add(1)
	defer svr.wg.Done()

	svr.mutexConns.Lock()
	if svr.conns == nil {
		svr.mutexConns.Unlock()
		conn.Close()

		return
	}

	if uint32(len(svr.conns)) >= svr.opts.MaxConnNum {
		svr.mutexConns.Unlock()
		conn.Close()

		return
	}

	co := newConn(conn, svr.opts.MaxWriteBufLen)
	svr.conns[conn] = co
	svr.mutexConns.Unlock()

	log.Debug("PreviewConnect", zap.String("remote", co.RemoteAddr().String()))

	co.readLoop()
	co.Close()
	<-co.done

	svr.mutexConns.Lock()
	delete(svr.conns, conn)
	svr.mutexConns.Unlock()
}
