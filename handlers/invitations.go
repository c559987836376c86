package handlers

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"go.uber.org/zap"
)

type InvitationHandler struct {
	accounts *account.Service
	logger   *logging.Service
}

func NewInvitationHandler(accounts *account.Service, logger *logging.Service) *InvitationHandler {
	return &InvitationHandler{accounts: accounts, logger: logger}
}

type createInvitationRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Tenant   string `json:"tenant"`
}

func (r createInvitationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required),
		validation.Field(&r.Tenant, validation.Required),
	)
}

// Create provisions a registration allowance. Admin only; registration
// initiate refuses addresses without one.
func (h *InvitationHandler) Create(c echo.Context) error {
	var req createInvitationRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if err := req.Validate(); err != nil {
		return validationFailure(c, err)
	}

	if _, err := h.accounts.FindInvitation(req.Email, req.Tenant); err == nil {
		return failure(c, http.StatusConflict, "invitation_exists")
	}

	invitation := &account.Invitation{
		Email:    req.Email,
		Username: req.Username,
		Role:     req.Role,
		Tenant:   req.Tenant,
	}
	if err := h.accounts.CreateInvitation(invitation); err != nil {
		h.logger.Error("failed to create invitation", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"status": "success",
		"id":     invitation.ID,
	})
}
