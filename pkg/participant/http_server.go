package participant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	cometservice "github.com/cometbft/cometbft/libs/service"

	"github.com/strangelove-ventures/fomc-oracle/version"
)

const (
	PathInfo    = "/"
	PathHealth  = "/health"
	PathExtract = "/extract"

	maxRequestSize = 1 << 20
)

// HTTPServer exposes a Participant over JSON/HTTP.
type HTTPServer struct {
	cometservice.BaseService

	logger      cometlog.Logger
	participant Participant
	listenAddr  string

	ln     net.Listener
	server *http.Server
}

func NewHTTPServer(logger cometlog.Logger, participant Participant, listenAddr string) *HTTPServer {
	s := &HTTPServer{
		logger:      logger,
		participant: participant,
		listenAddr:  listenAddr,
	}
	s.BaseService = *cometservice.NewBaseService(logger, "ParticipantHTTPServer", s)
	return s
}

func (s *HTTPServer) OnStart() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
	s.logger.Info("Participant HTTP Listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP serve", "error", err)
		}
	}()
	return nil
}

func (s *HTTPServer) OnStop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown", "error", err)
	}
}

// Addr returns the bound listen address once started.
func (s *HTTPServer) Addr() string {
	if s.ln == nil {
		return s.listenAddr
	}
	return s.ln.Addr().String()
}

func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathInfo, s.handleInfo)
	mux.HandleFunc(PathHealth, s.handleHealth)
	mux.HandleFunc(PathExtract, s.handleExtract)
	return mux
}

func (s *HTTPServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != PathInfo {
		writeError(w, http.StatusNotFound, ErrCodeInvalidRequest, "unknown path")
		return
	}
	writeJSON(w, http.StatusOK, &InfoResponse{
		Service:       "fomc-oracle participant",
		Version:       version.Version,
		ParticipantID: s.participant.GetID(),
		Endpoints:     []string{"GET " + PathHealth, "POST " + PathExtract},
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "method not allowed")
		return
	}
	res, err := s.participant.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	status := http.StatusOK
	if !res.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (s *HTTPServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "method not allowed")
		return
	}
	var req ExtractRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid json")
		return
	}

	res, err := s.participant.Extract(r.Context(), req.Text)
	if err != nil {
		switch code := errorCode(err); code {
		case ErrCodeNoDecision:
			writeError(w, http.StatusNotFound, code, "")
		case ErrCodeInvalidRequest:
			writeError(w, http.StatusBadRequest, code, err.Error())
		default:
			s.logger.Error("Extract failed", "error", err)
			writeError(w, http.StatusInternalServerError, code, "")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	data, _ := json.Marshal(&ErrorResponse{Error: code, Message: message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
