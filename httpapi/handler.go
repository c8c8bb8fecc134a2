package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/internal/logging"
	"github.com/MrEthical07/otpAuth/middleware"
)

const maxBodyBytes = 64 << 10

// Engine is the subset of *otpAuth.Engine the handlers call.
type Engine interface {
	Register(ctx context.Context, req otpAuth.RegisterRequest) (*otpAuth.RegisterResult, error)
	VerifyOtp(ctx context.Context, email, code string) (*otpAuth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*otpAuth.AuthResult, error)
	Logout(ctx context.Context, token string)
	ResendOtp(ctx context.Context, email string) error
	ValidateToken(ctx context.Context, token string) (*otpAuth.Claims, error)
}

// Options tunes the handler. Readiness drives /healthz; nil reports healthy.
type Options struct {
	CookieSecure bool
	TrustProxy   bool
	Readiness    otpAuth.Readiness
	Logger       logging.Logger
	Now          func() time.Time
}

// Handler serves the auth routes.
type Handler struct {
	engine Engine
	opts   Options
	logger logging.Logger
	now    func() time.Time
}

func New(engine Engine, opts Options) *Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		engine: engine,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).With("component", "httpapi"),
		now:    now,
	}
}

// Routes returns the mux with request-context middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/verify", h.verify)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.HandleFunc("POST /auth/resend", h.resend)
	mux.Handle("GET /auth/me", middleware.RequireSession(h.engine)(http.HandlerFunc(h.me)))
	mux.HandleFunc("GET /healthz", h.health)
	return middleware.RequestContext(h.opts.TrustProxy)(mux)
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type meResponse struct {
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req otpAuth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.VerifyOtp(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSession(w, res)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSession(w, res)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromRequest(r)
	h.engine.Logout(r.Context(), token)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.ResendOtp(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, otpAuth.ErrTokenInvalid)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		AccountID: claims.AccountID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.opts.Readiness != nil && !h.opts.Readiness.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setSession(w http.ResponseWriter, res *otpAuth.AuthResult) {
	maxAge := int(res.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		reason := "malformed JSON body"
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			reason = "request body too large"
		case errors.Is(err, io.EOF):
			reason = "request body is empty"
		}
		h.writeError(w, r, fmt.Errorf("%w: %s", otpAuth.ErrInvalidRequest, reason))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
