package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pulse/api/internal/export"
	"pulse/api/internal/report"
	"pulse/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	adminToken string
}

func NewHTTPServer(service *Service, corsOrigin, adminToken string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, adminToken: adminToken}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/gate/login" {
		s.handleGateLogin(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		sessionID, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "sessionId": sessionID})
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/admin/") {
		if !s.requireAdmin(w, r) {
			return
		}
		s.handleAdmin(w, r)
		return
	}

	// Everything below needs a respondent session.
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/survey":
		view, err := s.service.ActiveSurvey(r.Context(), sessionID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case r.Method == http.MethodPost && r.URL.Path == "/api/submissions":
		var input SubmitInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.Submit(r.Context(), sessionID, input); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodGet && r.URL.Path == "/api/report/months":
		months, err := s.service.ReportMonths(r.Context())
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"months": months})

	case r.Method == http.MethodGet && r.URL.Path == "/api/report":
		month, err := s.monthFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_MONTH", err.Error(), nil)
			return
		}
		rep, err := s.service.BuildReport(r.Context(), month)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)

	case r.Method == http.MethodPost && r.URL.Path == "/api/search":
		var body struct {
			Query        string `json:"query"`
			Month        string `json:"month"`
			QuestionSlug string `json:"questionSlug"`
			Limit        int    `json:"limit"`
			Offset       int    `json:"offset"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		response := s.service.SearchFreeform(search.Query{
			Text:         body.Query,
			Month:        body.Month,
			QuestionSlug: body.QuestionSlug,
			Limit:        body.Limit,
			Offset:       body.Offset,
		})
		writeJSON(w, http.StatusOK, response)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleGateLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body.Password)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/admin/sync":
		doc, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read config document", nil)
			return
		}
		summary, err := s.service.SyncConfig(r.Context(), doc)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)

	case r.Method == http.MethodGet && r.URL.Path == "/api/admin/config/history":
		commits, err := s.service.ConfigHistory()
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})

	case r.Method == http.MethodGet && (r.URL.Path == "/api/admin/report.pdf" || r.URL.Path == "/api/admin/report.csv"):
		month, err := s.monthFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_MONTH", err.Error(), nil)
			return
		}
		format := export.FormatPDF
		if strings.HasSuffix(r.URL.Path, ".csv") {
			format = export.FormatCSV
		}
		result, err := s.service.ExportReport(r.Context(), month, format)
		if err != nil {
			if errors.Is(err, export.ErrPDFDependencyMissing) {
				writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF rendering is not available on this host", nil)
				return
			}
			s.writeMappedError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case r.Method == http.MethodDelete && r.URL.Path == "/api/admin/sessions":
		count, err := s.service.ClearSessions(r.Context())
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": count})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// monthFromQuery reads month/year params, defaulting to the current month.
// Future months clamp to the current one; months before the first response
// simply aggregate to empty.
func (s *HTTPServer) monthFromQuery(r *http.Request) (report.Month, error) {
	current := report.CurrentMonth(s.service.now())

	monthParam := r.URL.Query().Get("month")
	yearParam := r.URL.Query().Get("year")
	if monthParam == "" && yearParam == "" {
		return current, nil
	}

	monthNum, err := strconv.Atoi(monthParam)
	if err != nil {
		return report.Month{}, fmt.Errorf("month must be 1-12")
	}
	yearNum, err := strconv.Atoi(yearParam)
	if err != nil {
		return report.Month{}, fmt.Errorf("year must be a four-digit year")
	}
	month, err := report.NewMonth(yearNum, monthNum)
	if err != nil {
		return report.Month{}, err
	}
	if current.Before(month) {
		return current, nil
	}
	return month, nil
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	sessionID, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Valid session token required", nil)
		return "", false
	}
	return sessionID, true
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.adminToken == "" {
		writeError(w, http.StatusServiceUnavailable, "ADMIN_UNCONFIGURED", "No admin token configured", nil)
		return false
	}
	candidate := bearerToken(r)
	if candidate == "" {
		candidate = r.Header.Get("X-Admin-Token")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminToken)) != 1 {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return false
	}
	return true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, code, message, details)
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
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
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

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
