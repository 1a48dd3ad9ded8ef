package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/salus"
)

// maxBodyBytes caps setpoint request bodies
const maxBodyBytes = 4096

// SetpointRequest is the body of POST /api/devices/{id}/setpoint.
// Exactly one of Value (hundredths of °C) or Celsius is set.
type SetpointRequest struct {
	Value   *float64 `json:"value,omitempty"`
	Celsius *float64 `json:"celsius,omitempty"`
}

// SetpointResponse carries the literal status code from Salus Connect.
type SetpointResponse struct {
	Status int `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// Handler builds the bridge's HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/devices/{id}", s.handleDevice)
	mux.HandleFunc("POST /api/devices/{id}/setpoint", s.handleSetpoint)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s.logRequests(mux)
}

// HealthHandler returns a simple OK for liveness checks.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.thermostat.ListDevices(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []salus.DeviceSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := salus.ValidateDeviceID(id); err != nil {
		s.writeError(w, err)
		return
	}

	state, err := s.thermostat.DeviceState(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSetpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := salus.ValidateDeviceID(id); err != nil {
		s.writeError(w, err)
		return
	}

	value, err := decodeSetpoint(r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status, err := s.thermostat.UpdateTemperature(r.Context(), id, value)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("Setpoint written",
		zap.String("dsn", id),
		zap.Float64("value", value),
		zap.Int("status", status),
	)
	writeJSON(w, http.StatusOK, SetpointResponse{Status: status})
}

// decodeSetpoint reads a SetpointRequest and returns the value in hundredths.
func decodeSetpoint(body io.Reader) (float64, error) {
	var req SetpointRequest
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return 0, salus.NewValidationError("request body must be JSON with \"value\" or \"celsius\"")
	}

	switch {
	case req.Value != nil && req.Celsius != nil:
		return 0, salus.NewValidationError("set either \"value\" or \"celsius\", not both")
	case req.Value != nil:
		return *req.Value, nil
	case req.Celsius != nil:
		if math.IsNaN(*req.Celsius) || math.IsInf(*req.Celsius, 0) {
			return 0, salus.NewValidationError("celsius must be a finite number")
		}
		return salus.SetpointFromCelsius(*req.Celsius), nil
	default:
		return 0, salus.NewValidationError("missing \"value\" or \"celsius\"")
	}
}

// statusFor maps a client error to the bridge's HTTP status
func statusFor(err error) int {
	var apiErr *salus.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Type {
	case salus.ErrTypeValidation:
		return http.StatusBadRequest
	case salus.ErrTypeAuth:
		return http.StatusBadGateway
	case salus.ErrTypeHTTP:
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case salus.ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var apiErr *salus.APIError
	if errors.As(err, &apiErr) {
		resp.Type = strings.ReplaceAll(strings.ToLower(apiErr.Type.String()), " ", "_")
		if apiErr.Type == salus.ErrTypeValidation {
			resp.Error = apiErr.Message
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err), zap.Int("status", status))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for websocket upgrades
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
