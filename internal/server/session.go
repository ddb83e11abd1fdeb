package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agrof66/machine-dashboard/internal/auth"
	"github.com/agrof66/machine-dashboard/internal/config"
	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	stateCookieName = "md_oauth_state"
	stateCookieTTL  = 10 * time.Minute
	maxJSONBody     = 64 << 10
)

// anonymous is the user of every request when login is disabled.
var anonymous = auth.User{
	Email:    "anonymous",
	Name:     "Gast",
	Role:     auth.RoleSuperAdmin,
	Branches: []string{constants.BranchUnrestricted},
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *auth.Session)

// withSession resolves the session cookie. Without login every visitor gets
// an anonymous session of its own so uploads stay separate.
func (h *handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(constants.SessionCookieName); err == nil {
			if sess, ok := h.sessions.Get(c.Value); ok {
				next(w, r, sess)
				return
			}
		}

		if h.cfg.Auth.Mode != config.AuthNone {
			h.fail(w, errNoSession, "server.withSession")
			return
		}
		sess := h.sessions.Create(anonymous, nil)
		h.setSessionCookie(w, r, sess)
		next(w, r, sess)
	}
}

func (h *handler) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.Expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLogin"
	if h.cfg.Auth.Mode != config.AuthPassword {
		h.fail(w, fmt.Errorf("%w: password login is disabled", errNotFound), op)
		return
	}
	if !h.logins.allow(clientAddress(r)) {
		w.Header().Set("Retry-After", "60")
		h.fail(w, errRateLimit, op)
		return
	}

	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, fmt.Errorf("%w: failed to decode login: %v", errBadRequest, err), op)
		return
	}

	u, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	if _, err := h.users.ValidateAccess(u.Email, h.cfg.Profile().AllowedDomains); err != nil {
		h.fail(w, err, op)
		return
	}

	sess := h.sessions.Create(u, nil)
	h.setSessionCookie(w, r, sess)
	h.logger.Info("user logged in",
		zap.String("op", op),
		zap.String("user", u.Email),
		zap.String("method", config.AuthPassword),
	)
	h.writeJSON(w, http.StatusOK, h.profile(r, sess))
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(constants.SessionCookieName); err == nil {
		h.sessions.Delete(c.Value)
	}
	clearCookie(w, constants.SessionCookieName)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type profileResponse struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Region      string   `json:"region,omitempty"`
	Branches    []string `json:"branches"`
	AppName     string   `json:"appName"`
	AuthMode    string   `json:"authMode"`
	DataSource  string   `json:"dataSource"`
	Chat        bool     `json:"chat"`
	Upload      string   `json:"upload,omitempty"`
}

func (h *handler) profile(r *http.Request, sess *auth.Session) profileResponse {
	var known []string
	user := sess.User
	if ds, err := h.dataset(r.Context(), sess); err == nil {
		known = dashboard.Branches(ds.Machines)
		user = datasetUser(user, ds)
	}
	resp := profileResponse{
		Email:       sess.User.Email,
		Name:        sess.User.Name,
		DisplayName: sess.User.DisplayName(),
		Role:        string(sess.User.Role),
		Region:      sess.User.Region,
		Branches:    user.BranchOptions(known),
		AppName:     h.cfg.Profile().AppName,
		AuthMode:    h.cfg.Auth.Mode,
		DataSource:  h.cfg.Data.Source,
		Chat:        h.assistant.Enabled(),
	}
	if sess.Upload != nil {
		resp.Upload = sess.Upload.Source
	}
	return resp
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	h.writeJSON(w, http.StatusOK, h.profile(r, sess))
}

func (h *handler) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		h.fail(w, fmt.Errorf("%w: google login is not configured", errNotFound), "server.handleGoogleLogin")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		Expires:  h.now().Add(stateCookieTTL),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGoogleCallback"
	if h.oauth == nil {
		h.fail(w, fmt.Errorf("%w: google login is not configured", errNotFound), op)
		return
	}

	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		h.fail(w, fmt.Errorf("%w: google login cancelled: %s", errNoSession, reason), op)
		return
	}
	c, err := r.Cookie(stateCookieName)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		h.fail(w, fmt.Errorf("%w: invalid login state", errBadRequest), op)
		return
	}
	clearCookie(w, stateCookieName)

	token, email, err := h.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %v", errNoSession, err), op)
		return
	}
	u, err := h.users.ValidateAccess(email, h.cfg.Profile().AllowedDomains)
	if err != nil {
		h.fail(w, err, op)
		return
	}

	sess := h.sessions.Create(u, token)
	h.setSessionCookie(w, r, sess)
	h.logger.Info("user logged in",
		zap.String("op", op),
		zap.String("user", u.Email),
		zap.String("method", config.AuthGoogle),
	)
	http.Redirect(w, r, "/", http.StatusFound)
}
