package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coastalkoffix/webapp/internal/domain"
	"github.com/coastalkoffix/webapp/internal/repository"
	"github.com/coastalkoffix/webapp/internal/service"
	"github.com/coastalkoffix/webapp/internal/session"
	"github.com/coastalkoffix/webapp/pkg/config"
	"github.com/coastalkoffix/webapp/pkg/logger"
)

type Handlers struct {
	auth     service.AuthService
	users    repository.UserRepository
	sessions *session.Store
	limiter  repository.RateLimitRepository
	cfg      *config.Config
}

func New(
	auth service.AuthService,
	users repository.UserRepository,
	sessions *session.Store,
	limiter repository.RateLimitRepository,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		auth:     auth,
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		cfg:      cfg,
	}
}

func (h *Handlers) Routes(r chi.Router) {
	// Anonymous-only pages; an authenticated caller is sent to /home.
	r.Group(func(r chi.Router) {
		r.Use(h.RedirectAuthenticated)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusFound)
		})
		r.Get("/register", h.RegisterPage)
		r.Post("/register", h.Register)
		r.Get("/login", h.LoginPage)
		r.With(h.RateLimit("login", 10, time.Minute)).Post("/login", h.Login)
	})

	// OTP and reset steps stay reachable with or without a session.
	r.Get("/verify-otp", h.VerifyOTPPage)
	r.With(h.RateLimit("verify_otp", 5, time.Minute)).Post("/verify-otp", h.VerifyOTP)
	r.Get("/forgot-password", h.ForgotPasswordPage)
	r.With(h.RateLimit("forgot_password", 5, time.Minute)).Post("/forgot-password", h.ForgotPassword)
	r.Get("/reset-otp", h.ResetOTPPage)
	r.With(h.RateLimit("reset_otp", 5, time.Minute)).Post("/reset-otp", h.ResetOTP)
	r.Get("/reset-password", h.ResetPasswordPage)
	r.Post("/reset-password", h.ResetPassword)

	r.Get("/logout", h.Logout)

	// Protected pages
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/home", h.Home)
		r.Get("/profile", h.Profile)
	})
}

// ---------- Auth flows ----------

func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", nil)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendMessage(w, "Registration failed. Try again.")
		return
	}

	req := &domain.RegisterRequest{
		FirstName:  r.PostFormValue("firstName"),
		MiddleName: r.PostFormValue("middleName"),
		LastName:   r.PostFormValue("lastName"),
		Mobile:     r.PostFormValue("mobile"),
		Country:    r.PostFormValue("country"),
		State:      r.PostFormValue("state"),
		District:   r.PostFormValue("district"),
		PinCode:    r.PostFormValue("pinCode"),
		Email:      r.PostFormValue("email"),
		Password:   r.PostFormValue("password"),
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPasswordPolicy):
			sendMessage(w, "Password rules not matched")
		case errors.Is(err, domain.ErrDuplicateEmail):
			sendMessage(w, "Email already registered")
		default:
			logger.ErrorContext(r.Context(), "Registration failed", "error", err)
			sendMessage(w, "Registration failed. Try again.")
		}
		return
	}

	http.Redirect(w, r, "/verify-otp?email="+url.QueryEscape(user.Email), http.StatusFound)
}

func (h *Handlers) VerifyOTPPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "verify_otp.html", map[string]string{"Email": r.URL.Query().Get("email")})
}

func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendMessage(w, "OTP verification failed")
		return
	}

	user, err := h.auth.VerifyRegistration(r.Context(), r.PostFormValue("email"), r.PostFormValue("otp"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCode):
			sendMessage(w, "Invalid OTP")
		case errors.Is(err, domain.ErrExpiredCode):
			sendMessage(w, "OTP Expired")
		default:
			logger.ErrorContext(r.Context(), "OTP verification failed", "error", err)
			sendMessage(w, "OTP verification failed")
		}
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", nil)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendMessage(w, "Login failed")
		return
	}

	user, err := h.auth.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			sendMessage(w, "User not found")
		case errors.Is(err, domain.ErrNotVerified):
			sendMessage(w, "Please verify OTP first")
		case errors.Is(err, domain.ErrBadCredentials):
			sendMessage(w, "Incorrect password")
		default:
			logger.ErrorContext(r.Context(), "Login failed", "error", err)
			sendMessage(w, "Login failed")
		}
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

func (h *Handlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "forgot_password.html", nil)
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendMessage(w, "Reset request failed")
		return
	}

	email := domain.NormalizeEmail(r.PostFormValue("email"))
	if err := h.auth.RequestPasswordReset(r.Context(), email); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			sendMessage(w, "Email not registered")
			return
		}
		logger.ErrorContext(r.Context(), "Reset request failed", "error", err)
		sendMessage(w, "Reset request failed")
		return
	}

	http.Redirect(w, r, "/reset-otp?email="+url.QueryEscape(email), http.StatusFound)
}

func (h *Handlers) ResetOTPPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "reset_otp.html", map[string]string{"Email": r.URL.Query().Get("email")})
}

func (h *Handlers) ResetOTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendMessage(w, "OTP verification failed")
		return
	}

	email := domain.NormalizeEmail(r.PostFormValue("email"))
	if err := h.auth.VerifyResetCode(r.Context(), email, r.PostFormValue("otp")); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCode):
			sendMessage(w, "Invalid OTP")
		case errors.Is(err, domain.ErrExpiredCode):
			sendMessage(w, "OTP expired")
		default:
			logger.ErrorContext(r.Context(), "Reset OTP verification failed", "error", err)
			sendMessage(w, "OTP verification failed")
		}
		return
	}

	http.Redirect(w, r, "/reset-password?email="+url.QueryEscape(email), http.StatusFound)
}

func (h *Handlers) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "reset_password.html", map[string]string{"Email": r.URL.Query().Get("email")})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendMessage(w, "Password reset failed")
		return
	}

	err := h.auth.ResetPassword(
		r.Context(),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
		r.PostFormValue("confirmPassword"),
	)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPasswordMismatch):
			sendMessage(w, "Passwords do not match")
		case errors.Is(err, domain.ErrPasswordPolicy):
			sendMessage(w, "Password rule not matched")
		default:
			logger.ErrorContext(r.Context(), "Password reset failed", "error", err)
			sendMessage(w, "Password reset failed")
		}
		return
	}

	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cfg.Session.CookieName); err == nil {
		if err := h.sessions.Destroy(r.Context(), c.Value); err != nil {
			logger.ErrorContext(r.Context(), "Failed to destroy session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusFound)
}

// ---------- Protected pages ----------

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home.html", map[string]interface{}{"User": currentUser(r)})
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "profile.html", map[string]interface{}{"User": currentUser(r)})
}

// ---------- Helpers ----------

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, userID int64) bool {
	token, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to create session", "error", err)
		sendMessage(w, "Something went wrong. Try again.")
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.Session.TTL / time.Second),
		HttpOnly: true,
	})

	return true
}

// sendMessage writes a user-facing plain-text outcome. Failures and successes
// both answer 200; the site never speaks in status codes.
func sendMessage(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, msg)
}

type contextKey int

const userContextKey contextKey = 0

func currentUser(r *http.Request) *domain.User {
	if u, ok := r.Context().Value(userContextKey).(*domain.User); ok {
		return u
	}
	return nil
}

func withUser(ctx context.Context, u *domain.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, u)
	return context.WithValue(ctx, logger.UserIDKey, u.ID)
}
