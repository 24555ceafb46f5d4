package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sowdiff/api/internal/revdiff"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	readOnly := r.Method == http.MethodGet || r.Method == http.MethodHead

	if readOnly && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if readOnly && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"versions": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["versions"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if readOnly && r.URL.Path == "/api/snapshots/compare" {
		query := r.URL.Query()
		req, err := compareRequestFromQuery(query, query.Get("snapshot1"), query.Get("snapshot2"))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error(), nil)
			return
		}
		payload, err := s.service.Compare(r.Context(), req)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)
	// /api/documents/{documentId}/versions/compare
	if readOnly && len(parts) == 5 && parts[0] == "api" && parts[1] == "documents" && parts[3] == "versions" && parts[4] == "compare" {
		query := r.URL.Query()
		req, err := compareRequestFromQuery(query, query.Get("from"), query.Get("to"))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error(), nil)
			return
		}
		if req.Snapshot1 == "" || req.Snapshot2 == "" {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "from and to snapshot ids are required", nil)
			return
		}
		payload, err := s.service.CompareDocumentVersions(r.Context(), parts[2], req)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// compareRequestFromQuery reads the optional view parameters. highlight=false
// switches any side without an explicit view to plain.
func compareRequestFromQuery(query map[string][]string, first, second string) (CompareRequest, error) {
	get := func(key string) string {
		if values := query[key]; len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}

	fallback := revdiff.ViewHighlighted
	if raw := get("highlight"); raw != "" {
		highlight, err := strconv.ParseBool(raw)
		if err != nil {
			return CompareRequest{}, errors.New("highlight must be true or false")
		}
		if !highlight {
			fallback = revdiff.ViewPlain
		}
	}

	previousView, err := viewParam(get("previousView"), fallback)
	if err != nil {
		return CompareRequest{}, err
	}
	newView, err := viewParam(get("newView"), fallback)
	if err != nil {
		return CompareRequest{}, err
	}
	patch := false
	if raw := get("patch"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return CompareRequest{}, errors.New("patch must be true or false")
		}
		patch = parsed
	}
	return CompareRequest{
		Snapshot1:    strings.TrimSpace(first),
		Snapshot2:    strings.TrimSpace(second),
		PreviousView: previousView,
		NewView:      newView,
		Patch:        patch,
	}, nil
}

func viewParam(raw string, fallback revdiff.View) (revdiff.View, error) {
	if raw == "" {
		return fallback, nil
	}
	view := revdiff.View(strings.ToLower(raw))
	switch view {
	case revdiff.ViewHighlighted, revdiff.ViewPlain, revdiff.ViewRaw:
		return view, nil
	}
	return "", errors.New("view must be one of highlighted, plain, raw")
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

// RequestID returns the id assigned by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
