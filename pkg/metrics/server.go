package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	cometservice "github.com/cometbft/cometbft/libs/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebugServer serves Prometheus metrics on /metrics and pprof on /debug/pprof.
type DebugServer struct {
	cometservice.BaseService

	logger     cometlog.Logger
	listenAddr string

	ln     net.Listener
	server *http.Server
	cancel context.CancelFunc
}

func NewDebugServer(logger cometlog.Logger, listenAddr string) *DebugServer {
	s := &DebugServer{logger: logger, listenAddr: listenAddr}
	s.BaseService = *cometservice.NewBaseService(logger, "DebugServer", s)
	return s
}

func (s *DebugServer) OnStart() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       1 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go StartMetrics(ctx)

	s.logger.Info("Debug and Prometheus Metrics Listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Debug server failed", "error", err)
		}
	}()
	return nil
}

func (s *DebugServer) OnStop() {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Debug server shutdown", "error", err)
	}
}

func (s *DebugServer) Addr() string {
	if s.ln == nil {
		return s.listenAddr
	}
	return s.ln.Addr().String()
}
