package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"pix-server/internal/protocol"
	"pix-server/internal/utils"
	"pix-server/internal/worker"
)

type Options struct {
	Addr string

	// MaxConnections caps concurrently served connections; zero serves
	// every connection on its own goroutine.
	MaxConnections      int
	ConnectionQueue     int
	IdleTimeout         time.Duration
	MalformedDiagnostic bool
	AcceptRPS           float64
	AcceptBurst         int
}

type Stats struct {
	ActiveConnections int64             `json:"active_connections"`
	TotalConnections  int64             `json:"total_connections"`
	Rejected          int64             `json:"rejected_connections"`
	Pool              *worker.PoolStats `json:"pool,omitempty"`
}

// Server accepts TCP connections and runs one connHandler per connection.
type Server struct {
	opts       Options
	dispatcher Dispatcher
	metrics    *Metrics
	limiter    *AcceptLimiter
	pool       *worker.WorkerPool

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closing  atomic.Bool

	active   atomic.Int64
	total    atomic.Int64
	rejected atomic.Int64
}

func New(opts Options, dispatcher Dispatcher, metrics *Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:       opts,
		dispatcher: dispatcher,
		metrics:    metrics,
		limiter:    NewAcceptLimiter(opts.AcceptRPS, opts.AcceptBurst, 0),
		ctx:        ctx,
		cancel:     cancel,
	}
	if opts.MaxConnections > 0 {
		s.pool = worker.NewWorkerPool(opts.MaxConnections, opts.ConnectionQueue)
	}
	return s
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = ln
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the accept loop until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	if s.pool != nil {
		s.pool.Start()
	}
	utils.LogSuccess("Server", "Listening on %s", s.listener.Addr())

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				backoff = nextBackoff(backoff)
				utils.LogWarning("Server", "Accept failed: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.accept(conn)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	if current *= 2; current > time.Second {
		current = time.Second
	}
	return current
}

func (s *Server) accept(conn net.Conn) {
	if !s.limiter.Allow(conn.RemoteAddr(), time.Now()) {
		s.reject(conn, "rate_limited", "Muitas conexões. Tente novamente mais tarde.")
		return
	}

	if s.pool == nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
		return
	}

	job := worker.Job{
		ID:  conn.RemoteAddr().String(),
		Run: func(context.Context) { s.handle(conn) },
	}
	if err := s.pool.Submit(job); err != nil {
		s.reject(conn, "capacity", "Servidor lotado. Tente novamente mais tarde.")
	}
}

func (s *Server) handle(conn net.Conn) {
	if s.ctx.Err() != nil {
		_ = conn.Close()
		return
	}
	s.active.Add(1)
	s.total.Add(1)
	defer s.active.Add(-1)

	handler := newConnHandler(conn, s.dispatcher, s.metrics, connOptions{
		idleTimeout:         s.opts.IdleTimeout,
		malformedDiagnostic: s.opts.MalformedDiagnostic,
	})
	handler.serve(s.ctx)
}

// reject writes one best-effort failure line and closes the connection.
func (s *Server) reject(conn net.Conn, reason, info string) {
	s.rejected.Add(1)
	s.metrics.connectionRejected(reason)
	utils.LogWarning("Server", "Rejected %s: %s", conn.RemoteAddr(), reason)

	if line, err := protocol.Encode(protocol.Failure(protocol.OpConnect, info)); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = conn.Write(append(line, '\n'))
	}
	_ = conn.Close()
}

// Shutdown stops accepting, closes every live connection and waits for the
// handlers to return.
func (s *Server) Shutdown(timeout time.Duration) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	utils.LogInfo("Server", "Shutting down")

	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.cancel()

	var poolErr error
	if s.pool != nil {
		poolErr = s.pool.Shutdown(timeout)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("connections still open after %v", timeout)
	}

	if poolErr != nil {
		return poolErr
	}
	utils.LogSuccess("Server", "Stopped")
	return nil
}

func (s *Server) Stats() Stats {
	stats := Stats{
		ActiveConnections: s.active.Load(),
		TotalConnections:  s.total.Load(),
		Rejected:          s.rejected.Load(),
	}
	if s.pool != nil {
		poolStats := s.pool.GetStats()
		stats.Pool = &poolStats
	}
	return stats
}
