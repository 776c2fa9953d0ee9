package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/messages"
	"github.com/truefoundry/idlefleet/pkg/values"
	"github.com/truefoundry/idlefleet/switcher/internal/prom"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// Handler applies one trigger request
type Handler interface {
	Handle(ctx context.Context, req capacity.Request) (capacity.Result, error)
}

// Server receives trigger requests over HTTP and hands them to the controller.
// Every request is handled independently; ordering between concurrent triggers
// is left to whoever delivers them.
type Server struct {
	logger  *zap.Logger
	handler Handler
	// timeout is the deadline imposed on a single invocation
	timeout time.Duration
}

func NewServer(logger *zap.Logger, handler Handler, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = values.DefaultRequestTimeout
	}
	return &Server{
		logger:  logger.Named("switcherServer"),
		handler: handler,
		timeout: timeout,
	}
}

// Routes returns the mux served by Start
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	sentryHandler := sentryhttp.New(sentryhttp.Options{})
	mux.Handle("/metrics", sentryHandler.Handle(promhttp.Handler()))
	mux.Handle("/healthz", http.HandlerFunc(s.healthHandler))
	mux.Handle(values.InvokePath, sentryHandler.HandleFunc(s.invokeHandler))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", strings.TrimPrefix(port, ":")),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 10*time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout+5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Could not gracefully shutdown the server", zap.Error(err))
		}
		close(done)
	}()

	s.logger.Info("Starting switcher server", zap.String("port", port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start switcher server", zap.Error(err))
		return err
	}

	<-done
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error("Failed to write health response", zap.Error(err))
	}
}

func (s *Server) invokeHandler(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if err := req.Body.Close(); err != nil {
			s.logger.Error("Failed to close request body", zap.Error(err))
		}
	}()

	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeJSON(w, http.StatusMethodNotAllowed, messages.ErrorResponse{
			Error: "invalid request method",
			Kind:  messages.ErrorKindBadRequest,
		})
		return
	}

	body, err := decodeRequest(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		s.logger.Warn("Failed to decode request body", zap.Error(err))
		s.writeJSON(w, http.StatusBadRequest, messages.ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  messages.ErrorKindBadRequest,
		})
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), s.timeout)
	defer cancel()

	action := actionLabel(capacity.ParseAction(body))
	start := time.Now()
	result, err := s.handler.Handle(ctx, body)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		status, resp := errorResponse(err)
		prom.ActionCounter.WithLabelValues(action, "", resp.Kind).Inc()
		prom.ActionHistogram.WithLabelValues(action, resp.Kind).Observe(elapsed)
		if updateErr, ok := capacity.AsUpdateFailedError(err); ok {
			prom.StageFailureCounter.WithLabelValues(string(updateErr.Stage), strconv.FormatBool(updateErr.Partial())).Inc()
		}
		s.logger.Error("Failed to handle request", zap.String("action", action), zap.String("kind", resp.Kind), zap.Error(err))
		s.writeJSON(w, status, resp)
		return
	}

	prom.ActionCounter.WithLabelValues(action, result.Status, values.Success).Inc()
	prom.ActionHistogram.WithLabelValues(action, values.Success).Observe(elapsed)
	s.logger.Info("Request fulfilled successfully", zap.String("action", action), zap.String("status", result.Status))
	s.writeJSON(w, http.StatusOK, messages.StatusResponse{Status: result.Status})
}

var errTrailingData = errors.New("unexpected data after JSON object")

// decodeRequest reads exactly one JSON object. An empty body is an empty request.
func decodeRequest(r io.Reader) (capacity.Request, error) {
	body := capacity.Request{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return capacity.Request{}, nil
		}
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return body, nil
}

func errorResponse(err error) (int, messages.ErrorResponse) {
	if cfgErr, ok := capacity.AsConfigurationError(err); ok {
		return http.StatusInternalServerError, messages.ErrorResponse{
			Error: cfgErr.Error(),
			Kind:  messages.ErrorKindConfiguration,
		}
	}
	if updateErr, ok := capacity.AsUpdateFailedError(err); ok {
		applied := make([]string, 0, len(updateErr.Applied))
		for _, stage := range updateErr.Applied {
			applied = append(applied, string(stage))
		}
		return http.StatusBadGateway, messages.ErrorResponse{
			Error:   updateErr.Error(),
			Kind:    messages.ErrorKindUpdateFailed,
			Stage:   string(updateErr.Stage),
			Applied: applied,
		}
	}
	return http.StatusInternalServerError, messages.ErrorResponse{
		Error: err.Error(),
		Kind:  messages.ErrorKindInternal,
	}
}

func actionLabel(action capacity.Action) string {
	if action == capacity.ActionUnknown {
		return "unknown"
	}
	return string(action)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	jsonResponse, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to marshal response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(jsonResponse); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
