package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chainstage/internal/model"
	"chainstage/internal/transform"
)

const maxWebhookBytes = 4 << 20

// handleWebhook answers 200 no matter what: the notifier interprets any other
// status as a delivery failure and retries, which would duplicate events.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.logger.Warn("webhook body read failed", zap.Error(err))
		writeJSON(w, http.StatusOK, model.Receipt{Error: "read body: " + err.Error()})
		return
	}
	receipt := s.svc.Ingestor.Ingest(r.Context(), r.PathValue("path"), body, r.Header, r.URL.String(), r.Method)
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	res, err := s.svc.Refresher.Refresh(r.Context(), stream)
	if errors.Is(err, transform.ErrUnknownStream) {
		http.Error(w, "unknown stream "+stream, http.StatusNotFound)
		return
	}
	writeJSON(w, jobStatusCode(res.Status), res)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	res, _ := s.svc.Discovery.Run(r.Context())
	writeJSON(w, jobStatusCode(res.Status), res)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if s.svc.Validator == nil {
		http.Error(w, "validation disabled: no rpc url configured", http.StatusServiceUnavailable)
		return
	}
	limit, err := queryLimit(r, s.cfg.ValidateLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, _ := s.svc.Validator.Run(r.Context(), limit)
	writeJSON(w, jobStatusCode(res.Status), res)
}

func (s *Server) handleResolveReserves(w http.ResponseWriter, r *http.Request) {
	if s.svc.Resolver == nil {
		http.Error(w, "reserve resolution disabled: no rpc url configured", http.StatusServiceUnavailable)
		return
	}
	limit, err := queryLimit(r, s.cfg.ReserveLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, _ := s.svc.Resolver.Run(r.Context(), limit)
	writeJSON(w, jobStatusCode(res.Status), res)
}

// jobStatusCode maps a job status to the transport code: the HTTP caller is a
// scheduler that alerts on 5xx.
func jobStatusCode(status string) int {
	if status == model.StatusError {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// queryLimit reads ?limit=N, falling back to the configured default.
func queryLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
