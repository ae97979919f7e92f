package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes a registry on /metrics.
type Server struct {
	srv    *http.Server
	addr   string
	logger *logrus.Entry
	errCh  chan error
}

// NewRegistry returns a registry holding the given collectors.
func NewRegistry(collectors ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering collector")
		}
	}
	return reg, nil
}

// Serve starts an HTTP server for reg on addr. It returns once the listener
// is bound; serving continues in the background until Close.
func Serve(addr string, reg prometheus.Gatherer, logger *logrus.Entry) (*Server, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:   ln.Addr().String(),
		logger: logger,
		errCh:  make(chan error, 1),
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Metrics server stopped")
			s.errCh <- err
		}
		close(s.errCh)
	}()

	logger.WithField("addr", s.addr).Info("Serving metrics")

	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.addr
}

// Err is closed when the server stops, after delivering the error that
// stopped it, if any.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Close shuts the server down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
