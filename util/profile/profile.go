package profile

import (
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	runpprof "runtime/pprof"
	"sync"

	"vpresent/log"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	mu  sync.Mutex
	svr *http.Server
)

// Start serves the pprof handlers on addr until Stop.
//
//	http://xxx.xxx.xxx.xxx:6060/debug/pprof
func Start(addr string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	if svr != nil {
		return "", errors.New("profile already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Wrap(err, "profile listen")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s := &http.Server{Handler: mux}
	svr = s

	go func() {
		if err := s.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn("ProfileServe", zap.String("err", err.Error()))
		}
	}()

	log.Info("StartProfile", zap.String("addr", ln.Addr().String()))

	return ln.Addr().String(), nil
}

func Stop() {
	mu.Lock()
	s := svr
	svr = nil
	mu.Unlock()

	if s != nil {
		_ = s.Close()
	}
}

// WriteHeap dumps a heap profile to path.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create mem file")
	}
	defer f.Close()

	runtime.GC() // get up-to-date statistics

	return runpprof.WriteHeapProfile(f)
}
