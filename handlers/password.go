package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/middleware/ratelimit"
	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/challenge"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/mail"
	"go.uber.org/zap"
)

type PasswordHandler struct {
	cfg        *config.Config
	challenges *challenge.Service
	accounts   *account.Service
	sender     mail.Sender
	limiter    *ratelimit.Limiter
	logger     *logging.Service
}

func NewPasswordHandler(cfg *config.Config, challenges *challenge.Service, accounts *account.Service, sender mail.Sender, limiter *ratelimit.Limiter, logger *logging.Service) *PasswordHandler {
	return &PasswordHandler{
		cfg:        cfg,
		challenges: challenges,
		accounts:   accounts,
		sender:     sender,
		limiter:    limiter,
		logger:     logger,
	}
}

type forgotPasswordRequest struct {
	Email  string `json:"email"`
	Tenant string `json:"tenant"`
}

func (r forgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Tenant, validation.Required),
	)
}

// Forgot starts a password reset. The response is the same whether or not
// the address belongs to anyone; only existing accounts get a token stored
// and mailed.
func (h *PasswordHandler) Forgot(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if err := req.Validate(); err != nil {
		return validationFailure(c, err)
	}

	if !h.limiter.Allow(req.Email + "|" + req.Tenant) {
		return failure(c, http.StatusTooManyRequests, "too_many_requests")
	}

	user, err := h.accounts.FindByIdentity(req.Email, req.Tenant)
	if err != nil {
		return neutralLink(c)
	}

	issued, err := h.challenges.Create(c.Request().Context(), challenge.CreateInput{
		SubjectKey: user.Email,
		Tenant:     req.Tenant,
		Flow:       challenge.FlowPasswordReset,
		Payload: &challenge.PasswordResetPayload{
			Email:  user.Email,
			Tenant: req.Tenant,
		},
		ClientIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		h.logger.Error("failed to create password reset challenge", zap.Error(err))
		return neutralLink(c)
	}

	url := h.cfg.App.URL + "/password/reset?token=" + issued.Secret
	if err := h.sender.SendLink(c.Request().Context(), user.Email, url, "password_reset", map[string]any{
		"Tenant": req.Tenant,
	}); err != nil {
		h.logger.Error("failed to deliver password reset link", zap.Error(err))
	}

	return neutralLink(c)
}

type verifyResetRequest struct {
	Token string `json:"token"`
}

// Verify is the first leg of the two-phase reset: it confirms the token is
// live without spending it, so the client can show the new-password form.
func (h *PasswordHandler) Verify(c echo.Context) error {
	var req verifyResetRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if req.Token == "" {
		return failure(c, http.StatusBadRequest, "missing_token")
	}

	_, err := h.challenges.Verify(c.Request().Context(), req.Token)
	switch {
	case errors.Is(err, challenge.ErrChallengeInvalidOrUsed):
		return failure(c, http.StatusUnauthorized, "invalid_or_used")
	case errors.Is(err, challenge.ErrChallengeExpired):
		return failure(c, http.StatusGone, "expired")
	case err != nil:
		h.logger.Error("failed to verify password reset token", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	return success(c, nil)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *PasswordHandler) Reset(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if req.Token == "" {
		return failure(c, http.StatusBadRequest, "missing_token")
	}
	if err := h.accounts.ValidatePassword(req.NewPassword); err != nil {
		return failure(c, http.StatusBadRequest, "weak_password")
	}

	passwordHash, err := h.accounts.HashPassword(req.NewPassword)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	outcome, err := h.challenges.Consume(c.Request().Context(), challenge.ConsumeInput{
		Secret:          req.Token,
		NewPasswordHash: passwordHash,
	})
	switch {
	case errors.Is(err, challenge.ErrChallengeInvalidOrUsed):
		return failure(c, http.StatusUnauthorized, "invalid_or_used")
	case errors.Is(err, challenge.ErrChallengeExpired):
		return failure(c, http.StatusGone, "expired")
	case err != nil:
		h.logger.Error("failed to consume password reset token", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	return success(c, map[string]any{"applied": outcome.Mutated})
}
