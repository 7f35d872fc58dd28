// Package handler is the HTML boundary for registration and email verification.
//
// Routes:
//
//	GET  /                home page with flash messages
//	GET  /register        registration form
//	POST /register        create a pending account, redirect to /verify/{id}
//	GET  /verify/{id}     code entry form
//	POST /verify/{id}     check the code, activate, sign in, redirect to /
//	GET  /login           login form
//	POST /login           not implemented (501)
package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"signup-verify/internal/account/domain"
	"signup-verify/internal/account/service"
	"signup-verify/internal/logging"
	"signup-verify/internal/server/middleware"
	"signup-verify/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const genericError = "Something went wrong. Please try again."

// Registrar creates pending accounts.
type Registrar interface {
	Register(ctx context.Context, form service.RegistrationForm) (*service.RegistrationResult, error)
}

// Verifier looks up and activates pending accounts.
type Verifier interface {
	Lookup(ctx context.Context, id string) (*domain.Account, error)
	Verify(ctx context.Context, id, code string) (*domain.Account, error)
}

// Sessions is the subset of *session.Manager the handler uses.
type Sessions interface {
	Login(w http.ResponseWriter, r *http.Request, accountID string) error
	AddFlash(w http.ResponseWriter, r *http.Request, kind session.FlashKind, message string) error
	Flashes(w http.ResponseWriter, r *http.Request) []session.Flash
}

// Handler serves the registration and verification pages.
type Handler struct {
	registrar Registrar
	verifier  Verifier
	sessions  Sessions
	log       logging.Logger
}

// NewHandler returns an account handler.
func NewHandler(registrar Registrar, verifier Verifier, sessions Sessions, log logging.Logger) *Handler {
	return &Handler{
		registrar: registrar,
		verifier:  verifier,
		sessions:  sessions,
		log:       log.With("component", "account_handler"),
	}
}

// Register wires the handler into r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.HandleFunc("/register", h.registerForm).Methods(http.MethodGet)
	r.HandleFunc("/register", h.submitRegistration).Methods(http.MethodPost)
	r.HandleFunc("/verify/{id}", h.verifyForm).Methods(http.MethodGet)
	r.HandleFunc("/verify/{id}", h.submitCode).Methods(http.MethodPost)
	r.HandleFunc("/login", h.loginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", h.submitLogin).Methods(http.MethodPost)
}

// pageData is shared by every template.
type pageData struct {
	Title     string
	Flashes   []session.Flash
	Email     string
	AccountID string
	Error     string
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Home"}
	if id, ok := middleware.GetAccountID(r.Context()); ok {
		a, err := h.verifier.Lookup(r.Context(), id)
		switch {
		case err == nil:
			data.Email = a.Email
		case !errors.Is(err, domain.ErrNotFound):
			h.log.Error(r.Context(), "load signed-in account", "account_id", id, "error", err)
		}
	}
	h.render(w, r, http.StatusOK, "home.html", data)
}

func (h *Handler) registerForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", pageData{Title: "Register"})
}

func (h *Handler) submitRegistration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "error.html", pageData{Title: "Bad request", Error: "The form could not be read."})
		return
	}
	form := service.RegistrationForm{
		Username:    r.PostFormValue("username"),
		Email:       r.PostFormValue("email"),
		PhoneNumber: r.PostFormValue("phone_number"),
		Password1:   r.PostFormValue("password1"),
		Password2:   r.PostFormValue("password2"),
	}

	res, err := h.registrar.Register(r.Context(), form)
	if err != nil {
		h.flash(w, r, session.FlashError, h.registrationMessage(r.Context(), err))
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	h.flash(w, r, session.FlashSuccess, "Registration successful. Enter the code we sent to your email.")
	if res.DeliveryErr != nil {
		h.flash(w, r, session.FlashWarning, "We could not send the verification email. Please contact support if it does not arrive.")
	}
	http.Redirect(w, r, "/verify/"+res.Account.ID, http.StatusSeeOther)
}

// registrationMessage maps a registration error to the text shown on the form.
func (h *Handler) registrationMessage(ctx context.Context, err error) string {
	var ve *domain.ValidationError
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &ve):
		return capitalize(ve.Message) + "."
	case errors.As(err, &ce):
		return "An account with this " + strings.ReplaceAll(string(ce.Field), "_", " ") + " already exists."
	default:
		h.log.Error(ctx, "registration failed", "error", err)
		return genericError
	}
}

func (h *Handler) verifyForm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.verifier.Lookup(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, r, id, err)
		return
	}
	if a.IsActive {
		h.flash(w, r, session.FlashWarning, "This account is already verified.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "verify.html", pageData{Title: "Verify email", Email: a.Email, AccountID: a.ID})
}

func (h *Handler) submitCode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "error.html", pageData{Title: "Bad request", Error: "The form could not be read."})
		return
	}

	a, err := h.verifier.Verify(r.Context(), id, r.PostFormValue("code"))
	switch {
	case err == nil:
		if err := h.sessions.Login(w, r, a.ID); err != nil {
			h.log.Error(r.Context(), "start session", "account_id", a.ID, "error", err)
		}
		h.flash(w, r, session.FlashSuccess, "Your email has been verified.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, service.ErrInvalidCode):
		data := pageData{Title: "Verify email", AccountID: id, Error: "Invalid code."}
		if pending, lookupErr := h.verifier.Lookup(r.Context(), id); lookupErr == nil {
			data.Email = pending.Email
		}
		h.render(w, r, http.StatusOK, "verify.html", data)
	case errors.Is(err, service.ErrAlreadyActive):
		h.flash(w, r, session.FlashWarning, "This account is already verified.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.lookupFailed(w, r, id, err)
	}
}

// lookupFailed renders the invalid link page for unknown ids and a generic error otherwise.
func (h *Handler) lookupFailed(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		h.render(w, r, http.StatusNotFound, "invalid_link.html", pageData{Title: "Invalid link"})
		return
	}
	h.log.Error(r.Context(), "verification failed", "account_id", id, "error", err)
	h.render(w, r, http.StatusInternalServerError, "error.html", pageData{Title: "Error", Error: genericError})
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", pageData{Title: "Log in"})
}

func (h *Handler) submitLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotImplemented, "login.html", pageData{Title: "Log in", Error: "Login is not available yet."})
}

func (h *Handler) flash(w http.ResponseWriter, r *http.Request, kind session.FlashKind, msg string) {
	if err := h.sessions.AddFlash(w, r, kind, msg); err != nil {
		h.log.Warn(r.Context(), "save flash", "error", err)
	}
}

// render pops pending flashes, then writes the page. Nothing is written if the template fails.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.Flashes = h.sessions.Flashes(w, r)
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error(r.Context(), "render template", "template", name, "error", err)
		http.Error(w, genericError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
