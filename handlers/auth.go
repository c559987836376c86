package handlers

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	jwtmw "github.com/tech-arch1tect/scanassist/middleware/jwt"
	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/jwt"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"go.uber.org/zap"
)

type AuthHandler struct {
	accounts *account.Service
	tokens   *jwt.Service
	logger   *logging.Service
}

func NewAuthHandler(accounts *account.Service, tokens *jwt.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Identity    string `json:"identity"`
	Password    string `json:"password"`
	Tenant      string `json:"tenant"`
	DeviceToken string `json:"device_token"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identity, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Tenant, validation.Required),
	)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if err := req.Validate(); err != nil {
		return validationFailure(c, err)
	}

	user, err := h.accounts.FindByIdentity(req.Identity, req.Tenant)
	if err != nil {
		_ = h.accounts.VerifyPassword(dummyPasswordHash, req.Password)
		return failure(c, http.StatusUnauthorized, "invalid_credentials")
	}
	if err := h.accounts.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return failure(c, http.StatusUnauthorized, "invalid_credentials")
	}

	accessToken, err := h.tokens.GenerateToken(user.ID, user.Tenant, user.Role)
	if err != nil {
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	if err := h.accounts.SetLoggedIn(user.Email, user.Tenant, true); err != nil {
		h.logger.Warn("failed to record login state", zap.Error(err))
	}
	if req.DeviceToken != "" {
		if err := h.accounts.SetDeviceToken(user.Email, user.Tenant, req.DeviceToken); err != nil {
			h.logger.Warn("failed to store device token", zap.Error(err))
		}
	}

	return success(c, map[string]any{
		"access_token": accessToken,
		"expires_in":   h.tokens.AccessExpirySeconds(),
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	claims := jwtmw.GetClaims(c)
	if claims == nil {
		return failure(c, http.StatusUnauthorized, "invalid_token")
	}

	user, err := h.accounts.FindByID(claims.UserID, claims.Tenant)
	if err != nil {
		return failure(c, http.StatusUnauthorized, "invalid_token")
	}

	if err := h.accounts.SetLoggedIn(user.Email, user.Tenant, false); err != nil {
		h.logger.Warn("failed to record logout state", zap.Error(err))
	}
	if err := h.accounts.SetDeviceToken(user.Email, user.Tenant, ""); err != nil {
		h.logger.Warn("failed to clear device token", zap.Error(err))
	}

	return success(c, nil)
}
