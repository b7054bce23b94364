package server

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/bitgrid/bitgrid/grid"
	"github.com/bitgrid/bitgrid/internal/obs"
	"github.com/bitgrid/bitgrid/physical"
)

// acceptTimeout bounds each Accept() call so the listener loop can check
// the shutdown signal between iterations, matching the 0.5-1.0s socket
// timeout suspension points the concurrency model calls for.
const acceptTimeout = 750 * time.Millisecond

// Builder configures a Server before Build: value-receiver With* calls
// terminating in Build.
type Builder struct {
	program        *grid.Program
	lanes          physical.Builder
	host           string
	port           int
	statusAddr     string
	defaultForward ForwardPolicy
	verbose        bool
}

// NewBuilder returns a Builder bound to an already physicalized and
// routed Program, defaulting to the "both" link-forward policy.
func NewBuilder(p *grid.Program, lanes physical.Builder) Builder {
	return Builder{program: p, lanes: lanes, host: "0.0.0.0", port: 9000, defaultForward: ForwardBoth}
}

// WithHost sets the TCP listen host.
func (b Builder) WithHost(host string) Builder { b.host = host; return b }

// WithPort sets the TCP listen port.
func (b Builder) WithPort(port int) Builder { b.port = port; return b }

// WithStatusAddr sets the HTTP address a /status diagnostics endpoint
// listens on; empty disables it.
func (b Builder) WithStatusAddr(addr string) Builder { b.statusAddr = addr; return b }

// WithDefaultForward sets the link-forward policy every newly established
// link adopts; the LINK payload carries no policy of its own.
func (b Builder) WithDefaultForward(p ForwardPolicy) Builder { b.defaultForward = p; return b }

// WithVerbose enables per-frame disposition tracing.
func (b Builder) WithVerbose(v bool) Builder { b.verbose = v; return b }

// Server owns one Device behind a mutex, a TCP accept loop, and an
// optional HTTP status endpoint.
type Server struct {
	mu     sync.Mutex
	device *Device

	listener       net.Listener
	defaultForward ForwardPolicy
	verbose        bool
	trace          *traceLog

	statusAddr string
	statusSrv  *http.Server

	shutdown chan struct{}
	closeOnce sync.Once
}

// Build constructs the Device and binds the TCP listener, but does not
// start serving — call Serve for that.
func (b Builder) Build() (*Server, error) {
	dev, err := NewDevice(b.program, b.lanes)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", b.host, b.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listening on %s: %w", addr, err)
	}
	s := &Server{
		device:         dev,
		listener:       ln,
		defaultForward: b.defaultForward,
		verbose:        b.verbose,
		statusAddr:     b.statusAddr,
		shutdown:       make(chan struct{}),
	}
	if b.verbose {
		s.trace = newTraceLog()
	}
	return s, nil
}

// Addr returns the bound TCP address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve runs the accept loop until Shutdown is called or the listener
// fails. It blocks the calling goroutine.
func (s *Server) Serve() error {
	if s.statusAddr != "" {
		s.startStatusServer()
	}
	for {
		select {
		case <-s.shutdown:
			return nil
		default:
		}
		if tc, ok := s.listener.(*net.TCPListener); ok {
			tc.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		go s.handleConn(conn)
	}
}

// Shutdown closes the listener and every link, causing Serve to return.
// Safe to call more than once.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.shutdown)
		s.listener.Close()
		if s.statusSrv != nil {
			s.statusSrv.Close()
		}
		s.mu.Lock()
		s.device.ClearLinks()
		s.mu.Unlock()
		obs.Logger().Info("server shut down")
	})
}

func (s *Server) startStatusServer() {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.serveStatus).Methods(http.MethodGet)
	s.statusSrv = &http.Server{Addr: s.statusAddr, Handler: r}
	go func() {
		if err := s.statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger().Error("status server failed", "error", err)
		}
	}()
}
