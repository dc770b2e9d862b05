package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/reqctx"
)

const (
	codeInternal = "INTERNAL"
	codeTimeout  = "TIMEOUT"
)

type dataEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Healthy bool                   `json:"healthy"`
	Message string                 `json:"message"`
	Uptime  float64                `json:"uptime"`
	Cache   map[string]interface{} `json:"cache,omitempty"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.GetAllCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, catalog.CategoryViews(cats))
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.catalog.GetCategory(r.Context(), r.PathValue("slug"), page, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleRefreshCategory(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.RefreshCategory(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.GetProduct(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleRefreshProduct(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.RefreshProduct(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.catalog.SearchProducts(r.Context(), r.URL.Query().Get("q"), page, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_, limit = catalog.NormalizePage(1, limit)
	jobs, err := s.catalog.ListJobs(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, jobs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.catalog.Health(r.Context())
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	resp := HealthResponse{
		Healthy: h.Healthy,
		Message: h.Message,
		Uptime:  time.Since(s.started).Seconds(),
	}
	if s.opts.CacheStats != nil {
		resp.Cache = s.opts.CacheStats()
	}
	writeJSON(w, status, resp)
}

// pageParams reads page and limit. Absent values are zero and take the
// catalog defaults.
func pageParams(r *http.Request) (int, int, error) {
	page, err := intParam(r, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &catalog.Error{
			Code:    catalog.CodeInvalidArgument,
			Message: fmt.Sprintf("query parameter %s must be an integer, got %q", name, raw),
		}
	}
	return n, nil
}

// fail maps err to an error envelope. Server-side failures are logged with
// the request id prefixed, so log lines match the requestId clients see.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ce *catalog.Error
	switch {
	case errors.As(err, &ce):
		status := ce.HTTPStatus()
		if status >= http.StatusInternalServerError {
			log.Error().Err(reqctx.NewRequestError(r.Context(), err)).Msg("Catalog request failed")
		}
		writeError(w, r, status, string(ce.Code), ce.Message)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, codeTimeout, "request timed out")
	default:
		log.Error().Err(reqctx.NewRequestError(r.Context(), err)).Msg("Unexpected error")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataEnvelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: reqctx.GetRequestContext(r.Context()).RequestID,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
