package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server accepts websocket upgrades on one path and hands each new
// connection to the OnConnect callback before serving it.
type Server struct {
	cfg      Config
	upgrader *Upgrader

	mu        sync.Mutex
	onConnect func(c *Conn)
	conns     map[string]*Conn
}

// NewServer returns a server for cfg. Zero fields take their defaults.
func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:      cfg,
		upgrader: &Upgrader{MaxMessageSize: cfg.MaxMessageSize},
		conns:    make(map[string]*Conn),
	}
}

// OnConnect registers f to attach handlers to each connection. It runs
// before the first inbound byte is processed.
func (s *Server) OnConnect(f func(c *Conn)) {
	s.mu.Lock()
	s.onConnect = f
	s.mu.Unlock()
}

func (s *Server) Addr() string {
	return ":" + strconv.Itoa(s.cfg.Port)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.socketHandler)
	return mux
}

func (s *Server) socketHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		logrus.Infof("[socketHandler]: %v", err)
		return
	}

	s.mu.Lock()
	onConnect := s.onConnect
	s.conns[c.ID()] = c
	s.mu.Unlock()

	if onConnect != nil {
		onConnect(c)
	}
	c.Serve()

	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()
}

// ListenAndServe listens on the configured port until ctx is cancelled,
// then closes every live connection with 1001.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("[Serve]: listening on %v", ln.Addr())
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// hijacked connections are not tracked by http.Server
	s.closeAll()
	err := hs.Shutdown(context.Background())
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(CloseGoingAway, "server shutdown"); err != nil && !errors.Is(err, ErrClosed) {
			logrus.Errorf("[closeAll]: conn = %v, err = %v", c.ID(), err)
		}
	}
}
