package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/miquiestampas/Aureo/internal/ratelimit"
	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/services/aureo/internal/app"
	"github.com/miquiestampas/Aureo/services/aureo/internal/watcher"
)

const defaultMaxUploadBytes = 50 * 1024 * 1024

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Watcher        *watcher.Service
	LoginLimiter   ratelimit.Limiter
	TrustedProxies *util.TrustedProxies
	CORSOrigins    []string
	MaxUploadBytes int64
}

// Server exposes the REST API used by the frontend.
type Server struct {
	app            *app.App
	watcher        *watcher.Service
	loginLimiter   ratelimit.Limiter
	trusted        *util.TrustedProxies
	corsOrigins    []string
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.LoginLimiter == nil {
		return nil, errors.New("login rate limiter required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		watcher:        cfg.Watcher,
		loginLimiter:   cfg.LoginLimiter,
		trusted:        cfg.TrustedProxies,
		corsOrigins:    cfg.CORSOrigins,
		maxUploadBytes: maxUpload,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithClientIP(s.trusted, util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux)))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("POST /api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("GET /api/auth/me", s.authenticated(s.handleMe))

	// users
	s.mux.Handle("GET /api/users", s.adminOnly(s.handleListUsers))
	s.mux.Handle("POST /api/users", s.adminOnly(s.handleCreateUser))
	s.mux.Handle("PUT /api/users/{id}", s.adminOnly(s.handleUpdateUser))
	s.mux.Handle("DELETE /api/users/{id}", s.adminOnly(s.handleDeleteUser))

	// stores
	s.mux.Handle("GET /api/stores", s.authenticated(s.handleListStores))
	s.mux.Handle("POST /api/stores", s.adminOnly(s.handleSaveStore))
	s.mux.Handle("GET /api/stores/{code}", s.authenticated(s.handleGetStore))
	s.mux.Handle("PUT /api/stores/{code}", s.adminOnly(s.handleSaveStore))
	s.mux.Handle("DELETE /api/stores/{code}", s.adminOnly(s.handleDeleteStore))

	// file activities
	s.mux.Handle("POST /api/upload", s.authenticated(s.handleUpload))
	s.mux.Handle("GET /api/file-activities", s.authenticated(s.handleListActivities))
	s.mux.Handle("GET /api/file-activities/pending-assignment", s.authenticated(s.handlePendingAssignment))
	s.mux.Handle("GET /api/file-activities/{id}", s.authenticated(s.handleGetActivity))
	s.mux.Handle("GET /api/file-activities/{id}/download", s.authenticated(s.handleDownloadActivity))
	s.mux.Handle("GET /api/file-activities/{id}/pdf-document", s.authenticated(s.handleActivityPdfDocument))
	s.mux.Handle("POST /api/file-activities/{id}/assign", s.authenticated(s.handleAssignStore))
	s.mux.Handle("POST /api/file-activities/{id}/reprocess", s.adminOnly(s.handleReprocess))

	// orders and pdf documents
	s.mux.Handle("POST /api/orders/search", s.authenticated(s.handleSearchOrders))
	s.mux.Handle("GET /api/orders/{id}", s.authenticated(s.handleGetOrder))
	s.mux.Handle("GET /api/orders/{id}/alerts", s.authenticated(s.handleOrderAlerts))
	s.mux.Handle("GET /api/pdf-documents", s.authenticated(s.handleListPdfDocuments))

	// watchlists
	s.mux.Handle("GET /api/watchlist/persons", s.authenticated(s.handleListPersons))
	s.mux.Handle("POST /api/watchlist/persons", s.adminOnly(s.handleSavePerson))
	s.mux.Handle("PUT /api/watchlist/persons/{id}", s.adminOnly(s.handleSavePerson))
	s.mux.Handle("DELETE /api/watchlist/persons/{id}", s.adminOnly(s.handleDeletePerson))
	s.mux.Handle("GET /api/watchlist/items", s.authenticated(s.handleListItems))
	s.mux.Handle("POST /api/watchlist/items", s.adminOnly(s.handleSaveItem))
	s.mux.Handle("PUT /api/watchlist/items/{id}", s.adminOnly(s.handleSaveItem))
	s.mux.Handle("DELETE /api/watchlist/items/{id}", s.adminOnly(s.handleDeleteItem))

	// alerts
	s.mux.Handle("GET /api/alerts", s.authenticated(s.handleListAlerts))
	s.mux.Handle("GET /api/alerts/{id}", s.authenticated(s.handleGetAlert))
	s.mux.Handle("POST /api/alerts/{id}/review", s.adminOnly(s.handleReviewAlert))

	// system
	s.mux.Handle("GET /api/file-watching", s.authenticated(s.handleWatchingStatus))
	s.mux.Handle("POST /api/file-watching", s.adminOnly(s.handleToggleWatching))
	s.mux.Handle("GET /api/config", s.adminOnly(s.handleListConfig))
	s.mux.Handle("PUT /api/config/{key}", s.adminOnly(s.handleSetConfig))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.Role.IsAdmin() {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "token.verify", "fail", "reason", "missing_token")
		return domain.User{}, false
	}
	user, ok := s.app.UserFromToken(token)
	if !ok {
		s.audit(r, "token.verify", "fail", "reason", "invalid_token")
		return domain.User{}, false
	}
	return user, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIPFromRequest(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorCode(w, status, errorCodeForStatus(status), msg)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps application errors onto HTTP responses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		writeErrorCode(w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "AUTH_FORBIDDEN", "forbidden")
	case errors.Is(err, app.ErrStoreNotFound):
		writeErrorCode(w, http.StatusNotFound, "STORE_NOT_FOUND", err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", err.Error())
	case errors.Is(err, app.ErrStoreTypeMismatch):
		writeErrorCode(w, http.StatusBadRequest, "STORE_TYPE_MISMATCH", err.Error())
	case errors.Is(err, app.ErrUnsupportedFile):
		writeErrorCode(w, http.StatusBadRequest, "FILE_UNSUPPORTED_TYPE", err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		writeErrorCode(w, http.StatusBadRequest, "REQUEST_INVALID", err.Error())
	case errors.Is(err, app.ErrInvalidState):
		writeErrorCode(w, http.StatusConflict, "ACTIVITY_INVALID_STATE", err.Error())
	case errors.Is(err, app.ErrUsernameTaken):
		writeErrorCode(w, http.StatusConflict, "USER_ALREADY_EXISTS", err.Error())
	case errors.Is(err, watcher.ErrUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, "WATCHER_UNAVAILABLE", err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request_failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "RESOURCE_NOT_FOUND"
	case http.StatusRequestEntityTooLarge:
		return "FILE_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "SYSTEM_UNAVAILABLE"
	default:
		return "SYSTEM_INTERNAL_ERROR"
	}
}

