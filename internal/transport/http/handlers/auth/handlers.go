package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp/totp"

	"pdr/internal/domain/auth"
	"pdr/internal/domain/notifications"
	cryptoutil "pdr/internal/platform/crypto"
	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
	"pdr/internal/transport/http/shared"
)

const (
	sessionTTL  = 8 * time.Hour
	resetTTL    = time.Hour
	totpIssuer  = "PDR"
	genericMsg  = "invalid email or password"
	resetNotice = "if the account exists, a reset link has been issued"
)

// AuditRecorder is the slice of the audit service these handlers write to.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

type Handler struct {
	Auth          *auth.Service
	Notifications *notifications.Service
	Audit         AuditRecorder
	Encryption    *cryptoutil.Service
	JWTSecret     string
}

func New(authSvc *auth.Service, notifSvc *notifications.Service, auditSvc AuditRecorder, enc *cryptoutil.Service, jwtSecret string) *Handler {
	return &Handler{
		Auth:          authSvc,
		Notifications: notifSvc,
		Audit:         auditSvc,
		Encryption:    enc,
		JWTSecret:     jwtSecret,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Role         string `json:"role"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	v := &shared.Validator{}
	v.Required("email", req.Email)
	v.Required("password", req.Password)
	if v.HasIssues() {
		shared.FailValidation(w, r, v)
		return
	}

	user, err := h.Auth.FindActiveUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", genericMsg, reqID)
			return
		}
		slog.Error("login lookup failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "login failed", reqID)
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", genericMsg, reqID)
		return
	}

	if user.MFAEnabled {
		if req.MFACode == "" {
			api.Fail(w, http.StatusUnauthorized, "mfa_required", "MFA code required", reqID)
			return
		}
		secret, err := h.Encryption.DecryptString(user.MFASecretEn)
		if err != nil {
			slog.Error("mfa secret decrypt failed", "error", err, "userId", user.ID)
			api.Fail(w, http.StatusInternalServerError, "internal_error", "login failed", reqID)
			return
		}
		if !totp.Validate(req.MFACode, secret) {
			api.Fail(w, http.StatusUnauthorized, "invalid_mfa_code", "invalid MFA code", reqID)
			return
		}
	}

	refreshToken, err := generateToken()
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "login failed", reqID)
		return
	}
	if err := h.Auth.CreateSession(r.Context(), user.ID, auth.HashToken(refreshToken), time.Now().Add(sessionTTL)); err != nil {
		slog.Error("session create failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "login failed", reqID)
		return
	}

	accessToken, err := auth.GenerateToken(h.JWTSecret, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
	}, sessionTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "login failed", reqID)
		return
	}

	if err := h.Auth.UpdateLastLogin(r.Context(), user.ID); err != nil {
		slog.Warn("last login update failed", "error", err, "userId", user.ID)
	}
	if err := h.Audit.Record(r.Context(), user.ID, "auth.login", "user", user.ID, reqID, clientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.login failed", "err", err)
	}

	api.Success(w, loginResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Name:         user.Name,
		Role:         user.Role,
	}, reqID)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		api.Fail(w, http.StatusBadRequest, "bad_request", "refreshToken is required", reqID)
		return
	}

	oldHash := auth.HashToken(req.RefreshToken)
	valid, err := h.Auth.SessionValid(r.Context(), user.UserID, oldHash)
	if err != nil {
		slog.Error("session lookup failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "refresh failed", reqID)
		return
	}
	if !valid {
		api.Fail(w, http.StatusUnauthorized, "invalid_session", "session expired or revoked", reqID)
		return
	}

	newRefresh, err := generateToken()
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "refresh failed", reqID)
		return
	}
	if err := h.Auth.RotateSession(r.Context(), user.UserID, oldHash, auth.HashToken(newRefresh), time.Now().Add(sessionTTL)); err != nil {
		slog.Error("session rotate failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "refresh failed", reqID)
		return
	}

	accessToken, err := auth.GenerateToken(h.JWTSecret, auth.Claims{
		UserID: user.UserID,
		Role:   user.Role,
		Name:   user.Name,
	}, sessionTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "refresh failed", reqID)
		return
	}

	api.Success(w, map[string]string{
		"token":        accessToken,
		"refreshToken": newRefresh,
	}, reqID)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		if err := h.Auth.RevokeSession(r.Context(), user.UserID, auth.HashToken(req.RefreshToken)); err != nil {
			slog.Warn("session revoke failed", "error", err, "userId", user.UserID)
		}
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "auth.logout", "user", user.UserID, reqID, clientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.logout failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "logged out"}, reqID)
}

func (h *Handler) MFASetup(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if !h.Encryption.Configured() {
		api.Fail(w, http.StatusServiceUnavailable, "mfa_unavailable", "MFA is not configured on this server", reqID)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Name,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "MFA setup failed", reqID)
		return
	}

	secretEnc, err := h.Encryption.EncryptString(key.Secret())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "MFA setup failed", reqID)
		return
	}
	if err := h.Auth.UpdateMFASecret(r.Context(), user.UserID, secretEnc); err != nil {
		slog.Error("mfa secret store failed", "error", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "MFA setup failed", reqID)
		return
	}

	api.Success(w, map[string]string{
		"secret": key.Secret(),
		"url":    key.URL(),
	}, reqID)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) MFAEnable(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		api.Fail(w, http.StatusBadRequest, "bad_request", "code is required", reqID)
		return
	}

	secretEnc, err := h.Auth.GetMFASecret(r.Context(), user.UserID)
	if err != nil || len(secretEnc) == 0 {
		api.Fail(w, http.StatusBadRequest, "mfa_not_setup", "run MFA setup first", reqID)
		return
	}
	secret, err := h.Encryption.DecryptString(secretEnc)
	if err != nil {
		slog.Error("mfa secret decrypt failed", "error", err, "userId", user.UserID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "MFA enable failed", reqID)
		return
	}
	if !totp.Validate(req.Code, secret) {
		api.Fail(w, http.StatusBadRequest, "invalid_mfa_code", "invalid MFA code", reqID)
		return
	}

	if err := h.Auth.SetMFAEnabled(r.Context(), user.UserID, true); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "MFA enable failed", reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "auth.mfa_enabled", "user", user.UserID, reqID, clientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.mfa_enabled failed", "err", err)
	}
	api.Success(w, map[string]bool{"mfaEnabled": true}, reqID)
}

func (h *Handler) MFADisable(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	if err := h.Auth.SetMFAEnabled(r.Context(), user.UserID, false); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "MFA disable failed", reqID)
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "auth.mfa_disabled", "user", user.UserID, reqID, clientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.mfa_disabled failed", "err", err)
	}
	api.Success(w, map[string]bool{"mfaEnabled": false}, reqID)
}

type requestResetRequest struct {
	Email string `json:"email"`
}

// RequestReset always answers the same way so the endpoint cannot be used to
// probe which emails exist.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req requestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		api.Fail(w, http.StatusBadRequest, "bad_request", "email is required", reqID)
		return
	}

	userID, err := h.Auth.UserIDByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err == nil && userID != "" {
		token, tokenErr := generateToken()
		if tokenErr == nil {
			if createErr := h.Auth.CreatePasswordReset(r.Context(), userID, auth.HashToken(token), time.Now().Add(resetTTL)); createErr == nil {
				if notifErr := h.Notifications.Create(r.Context(), userID, "password_reset", "Password reset requested",
					"Use this token to reset your password: "+token); notifErr != nil {
					slog.Warn("reset notification failed", "error", notifErr, "userId", userID)
				}
			} else {
				slog.Error("password reset create failed", "error", createErr)
			}
		}
	}

	api.Success(w, map[string]string{"status": resetNotice}, reqID)
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	v := &shared.Validator{}
	v.Required("token", req.Token)
	v.Required("newPassword", req.NewPassword)
	if len(req.NewPassword) > 0 && len(req.NewPassword) < 8 {
		v.Add("newPassword", "must be at least 8 characters")
	}
	if v.HasIssues() {
		shared.FailValidation(w, r, v)
		return
	}

	tokenHash := auth.HashToken(req.Token)
	userID, err := h.Auth.PasswordResetUserID(r.Context(), tokenHash)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_reset_token", "reset token is invalid or expired", reqID)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "password reset failed", reqID)
		return
	}
	if err := h.Auth.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "password reset failed", reqID)
		return
	}
	if err := h.Auth.MarkPasswordResetUsed(r.Context(), tokenHash); err != nil {
		slog.Warn("reset token mark-used failed", "error", err)
	}

	if err := h.Audit.Record(r.Context(), userID, "auth.password_reset", "user", userID, reqID, clientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.password_reset failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "password updated"}, reqID)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
