package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/agrof66/machine-dashboard/internal/audit"
	"github.com/agrof66/machine-dashboard/internal/auth"
	"github.com/agrof66/machine-dashboard/internal/chart"
	"github.com/agrof66/machine-dashboard/internal/chat"
	"github.com/agrof66/machine-dashboard/internal/config"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/internal/source"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

//go:embed static/*
var staticFiles embed.FS

var (
	errNoSession  = errors.New("login required")
	errForbidden  = errors.New("branch not permitted")
	errAdminOnly  = errors.New("admin role required")
	errNoDataset  = errors.New("no data set loaded, upload a workbook first")
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
	errRateLimit  = errors.New("too many login attempts, try again later")
)

// Deps are the collaborators of the HTTP handler.
type Deps struct {
	Logger        *zap.Logger
	Config        *config.Configuration
	MaxUploadSize int64
	Version       string
	Directory     *auth.Directory
	Sessions      *auth.Sessions
	// OAuth is nil unless Google login is configured.
	OAuth     *auth.OAuth
	Cache     *source.Cache
	Assistant *chat.Assistant
	// Audit is nil when the download log is disabled.
	Audit *audit.Log
	// LoginAttemptsPerMinute bounds password logins per client address.
	LoginAttemptsPerMinute int
	Now                    func() time.Time
}

type handler struct {
	logger        *zap.Logger
	cfg           *config.Configuration
	maxUploadSize int64
	version       string
	users         *auth.Directory
	sessions      *auth.Sessions
	oauth         *auth.OAuth
	cache         *source.Cache
	assistant     *chat.Assistant
	audit         *audit.Log
	logins        *limiter
	now           func() time.Time
}

// NewHandler constructs the HTTP handler that serves the web UI and dashboard API.
func NewHandler(d Deps) (http.Handler, error) {
	h, err := newHandler(d)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/version", h.handleVersion)

	// Login and session
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)
	mux.HandleFunc("GET /api/me", h.withSession(h.handleMe))
	mux.HandleFunc("GET /auth/google/login", h.handleGoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", h.handleGoogleCallback)

	// Data
	mux.HandleFunc("POST /api/upload", h.withSession(h.handleUpload))
	mux.HandleFunc("POST /api/reload", h.withSession(h.handleReload))
	mux.HandleFunc("GET /api/dashboard", h.withSession(h.handleDashboard))
	mux.HandleFunc("GET /api/export/{file}", h.withSession(h.handleExport))
	mux.HandleFunc("GET /api/chart/{file}", h.withSession(h.handleChart))
	mux.HandleFunc("POST /api/chat", h.withSession(h.handleChat))
	mux.HandleFunc("GET /api/audit", h.withSession(h.handleAudit))

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare embedded static files: %w", err)
	}
	mux.Handle("GET /", http.FileServer(http.FS(sub)))

	return gzhttp.GzipHandler(h.logRequests(mux)), nil
}

func newHandler(d Deps) (*handler, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := d.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadConfiguration(""); err != nil {
			return nil, err
		}
	}

	maxUploadSize := d.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	version := strings.TrimSpace(d.Version)
	if version == "" {
		version = "dev"
	}

	users := d.Directory
	if users == nil {
		users = auth.DefaultDirectory()
	}
	sessions := d.Sessions
	if sessions == nil {
		sessions = auth.NewSessions(cfg.SessionTTL())
	}
	cache := d.Cache
	if cache == nil {
		cache = source.NewCache(cfg.CacheTTL(), logger)
	}
	assistant := d.Assistant
	if assistant == nil {
		assistant = chat.NewAssistant(nil, logger)
	}

	attempts := d.LoginAttemptsPerMinute
	if attempts <= 0 {
		attempts = DefaultLoginAttemptsPerMinute
	}

	now := d.Now
	if now == nil {
		now = time.Now
	}

	return &handler{
		logger:        logger,
		cfg:           cfg,
		maxUploadSize: maxUploadSize,
		version:       version,
		users:         users,
		sessions:      sessions,
		oauth:         d.OAuth,
		cache:         cache,
		assistant:     assistant,
		audit:         d.Audit,
		logins:        newLimiter(rate.Every(time.Minute/time.Duration(attempts)), attempts),
		now:           now,
	}, nil
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// dataset returns the session upload or the configured workbook.
func (h *handler) dataset(ctx context.Context, sess *auth.Session) (*sheet.Dataset, error) {
	if sess.Upload != nil {
		return sess.Upload, nil
	}

	file := source.FileSource{Path: h.cfg.Data.Path}
	var src source.Source = file
	switch h.cfg.Data.Source {
	case config.SourceUpload:
		return nil, errNoDataset
	case config.SourceDrive:
		if h.oauth != nil && sess.Token != nil && h.cfg.Data.DriveFileID != "" {
			src = source.FallbackSource{
				Primary: source.DriveSource{
					FileID:      h.cfg.Data.DriveFileID,
					TokenSource: h.oauth.TokenSource(ctx, sess.Token),
				},
				Fallback: file,
				Logger:   h.logger,
			}
		}
	}
	return h.cache.Load(ctx, src)
}

// statusFor maps an error onto the HTTP status reported to the client.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoSession), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden), errors.Is(err, errAdminOnly),
		errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrDomainNotAllowed),
		errors.Is(err, auth.ErrUnknownUser), errors.Is(err, auth.ErrNoBranches):
		return http.StatusForbidden
	case errors.Is(err, errNotFound), errors.Is(err, errNoDataset),
		errors.Is(err, fs.ErrNotExist), errors.Is(err, chart.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, chat.ErrEmptyQuestion),
		errors.Is(err, sheet.ErrMissingColumns), errors.Is(err, sheet.ErrEmptySheet),
		errors.Is(err, sheet.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, chat.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(w http.ResponseWriter, err error, op string) {
	h.respondErrorWithOp(w, statusFor(err), err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	if h.logger != nil {
		log := h.logger.Warn
		if status >= http.StatusInternalServerError {
			log = h.logger.Error
		}
		log("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
