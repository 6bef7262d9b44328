package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pulse-analytics/pulse/internal/ctxkeys"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/response"
	"github.com/pulse-analytics/pulse/internal/service"
	"github.com/pulse-analytics/pulse/internal/validation"
)

const (
	msgRegistered      = "If that email is new, a verification link has been sent."
	msgVerified        = "Email verified. You can now log in."
	msgLoggedOut       = "Logged out successfully"
	msgResent          = "If that email is registered and unverified, a new link has been sent."
	msgForgotPassword  = "If that email is registered, a password reset link has been sent."
	msgPasswordChanged = "Password reset successfully. You can now log in with your new password."
)

type authHandler struct {
	authService *service.AuthService
	validator   *validation.Validator
}

func NewAuthHandler(authService *service.AuthService, validator *validation.Validator) *authHandler {
	return &authHandler{
		authService: authService,
		validator:   validator,
	}
}

func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}

	req.Name = validation.NormalizeName(req.Name)
	req.Email = validation.NormalizeEmail(req.Email)
	if !validate(w, h.validator, &req) {
		return
	}

	_, err := h.authService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil && !errors.Is(err, service.ErrDuplicateEmail) {
		writeError(w, r, err)
		return
	}

	// Duplicates get the same answer so registration does not reveal accounts.
	response.Message(w, http.StatusCreated, msgRegistered)
}

func (h *authHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.ValidationError(w, "token is required", map[string]string{"token": "is required"})
		return
	}

	err := h.authService.VerifyEmail(r.Context(), token)
	switch {
	case err == nil:
		response.Message(w, http.StatusOK, msgVerified)
	case errors.Is(err, service.ErrTokenNotFound):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidToken, "Invalid or already used verification link")
	case errors.Is(err, service.ErrTokenExpired):
		response.Error(w, http.StatusBadRequest, response.CodeTokenExpired, "Verification link has expired. Please request a new one.")
	default:
		writeError(w, r, err)
	}
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := r.ParseForm()
	if err != nil {
		response.ValidationError(w, "Request body must be form encoded", nil)
		return
	}

	req := model.LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if !validate(w, h.validator, &req) {
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		response.JSON(w, http.StatusOK, pair)
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		response.Error(w, http.StatusUnauthorized, response.CodeInvalidCredentials, "Incorrect email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		response.Error(w, http.StatusBadRequest, response.CodeAccountDisabled, "Account is disabled")
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Error(w, http.StatusForbidden, response.CodeEmailNotVerified, "Please verify your email before logging in")
	default:
		writeError(w, r, err)
	}
}

func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		response.JSON(w, http.StatusOK, pair)
	case errors.Is(err, service.ErrAccountNotAccessible):
		response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Account is not accessible")
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		response.Error(w, http.StatusUnauthorized, response.CodeInvalidToken, "Invalid or expired refresh token")
	default:
		writeError(w, r, err)
	}
}

// Logout always succeeds from the client's point of view.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	_ = decodeBody(r, &req)

	err := h.authService.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		slog.Error("logout failed", "error", err)
	}

	response.Message(w, http.StatusOK, msgLoggedOut)
}

func (h *authHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	err := h.authService.ResendVerification(r.Context(), email)
	if err != nil {
		slog.Error("resend verification failed", "error", err)
	}

	ResendVerificationAccepted(w, r)
}

// ResendVerificationAccepted writes the reply ResendVerification gives for
// every input. Rate limited requests get it too.
func ResendVerificationAccepted(w http.ResponseWriter, _ *http.Request) {
	response.Message(w, http.StatusOK, msgResent)
}

func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	_ = decodeBody(r, &req)

	err := h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		// Don't reveal specific errors to user
		slog.Error("forgot password failed", "error", err)
	}

	ForgotPasswordAccepted(w, r)
}

// ForgotPasswordAccepted writes the reply ForgotPassword gives for every
// input. Rate limited requests get it too.
func ForgotPasswordAccepted(w http.ResponseWriter, _ *http.Request) {
	response.Message(w, http.StatusOK, msgForgotPassword)
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	err := h.authService.ResetPassword(r.Context(), req.Token, req.Password)
	switch {
	case err == nil:
		response.Message(w, http.StatusOK, msgPasswordChanged)
	case errors.Is(err, service.ErrTokenNotFound):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidToken, "Invalid or already used reset link.")
	case errors.Is(err, service.ErrTokenExpired):
		response.Error(w, http.StatusBadRequest, response.CodeTokenExpired, "Reset link has expired. Please request a new one.")
	default:
		writeError(w, r, err)
	}
}

func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, ctxkeys.User(r.Context()))
}
