package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yndnr/webhost-go/internal/server/listener"
)

// Server timeouts.
const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 10 * time.Second
	WriteTimeout      = 15 * time.Second
	IdleTimeout       = 60 * time.Second
)

// ListenerGauge reports the number of listeners served per scheme.
// *metric.Registry implements it.
type ListenerGauge interface {
	SetListenersBound(scheme string, n int)
}

// Server serves one handler on any number of bound listeners.
type Server struct {
	handler http.Handler
	logger  *slog.Logger
	gauge   ListenerGauge

	writeTimeout time.Duration

	mu      sync.Mutex
	servers []*http.Server
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithWriteTimeout overrides WriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// New creates a server for handler.
func New(handler http.Handler, logger *slog.Logger, gauge ListenerGauge, opts ...Option) *Server {
	s := &Server{
		handler:      handler,
		logger:       logger,
		gauge:        gauge,
		writeTimeout: WriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve starts serving every bound listener in the background.
//
// The returned channel receives at most one error per listener when
// serving stops for a reason other than Shutdown. It is closed after
// every listener has stopped.
func (s *Server) Serve(bound []listener.Bound) <-chan error {
	errCh := make(chan error, len(bound))
	counts := make(map[listener.Scheme]int)

	s.mu.Lock()
	for _, b := range bound {
		srv := s.newHTTPServer(b.Spec)
		s.servers = append(s.servers, srv)
		counts[b.Scheme]++

		s.wg.Add(1)
		go func(b listener.Bound, srv *http.Server) {
			defer s.wg.Done()

			s.logger.Info("listener started",
				"scheme", b.Scheme,
				"address", b.Addr().String(),
				"development_certificate", b.Development,
			)

			var err error
			if b.TLS != nil {
				err = srv.ServeTLS(b.Listener, "", "")
			} else {
				err = srv.Serve(b.Listener)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("listener stopped", "scheme", b.Scheme, "address", b.Address, "error", err)
				errCh <- err
			}
		}(b, srv)
	}
	s.mu.Unlock()

	if s.gauge != nil {
		for _, scheme := range []listener.Scheme{listener.SchemeHTTP, listener.SchemeHTTPS} {
			s.gauge.SetListenersBound(string(scheme), counts[scheme])
		}
	}

	go func() {
		s.wg.Wait()
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops every listener, waiting for in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(srv)
	}
	wg.Wait()
	s.wg.Wait()

	if s.gauge != nil {
		s.gauge.SetListenersBound(string(listener.SchemeHTTP), 0)
		s.gauge.SetListenersBound(string(listener.SchemeHTTPS), 0)
	}
	return errors.Join(errs...)
}

func (s *Server) newHTTPServer(spec listener.Spec) *http.Server {
	return &http.Server{
		Handler:           s.handler,
		TLSConfig:         spec.TLS,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
}
