package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/scanassist/middleware/ratelimit"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/mail"
	"github.com/tech-arch1tect/scanassist/services/otp"
	"go.uber.org/zap"
)

type OTPHandler struct {
	codes   *otp.Store
	sender  mail.Sender
	limiter *ratelimit.Limiter
	logger  *logging.Service
}

func NewOTPHandler(codes *otp.Store, sender mail.Sender, limiter *ratelimit.Limiter, logger *logging.Service) *OTPHandler {
	return &OTPHandler{codes: codes, sender: sender, limiter: limiter, logger: logger}
}

type sendCodeRequest struct {
	Recipient string `json:"recipient"`
	Purpose   string `json:"purpose"`
}

func (r sendCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Recipient, validation.Required, validation.Length(3, 200)),
		validation.Field(&r.Purpose, validation.Required, validation.In(
			string(otp.PurposeRegister),
			string(otp.PurposeChangePhone),
			string(otp.PurposeLogin),
		)),
	)
}

func (h *OTPHandler) Send(c echo.Context) error {
	var req sendCodeRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if err := req.Validate(); err != nil {
		return validationFailure(c, err)
	}

	if !h.limiter.Allow(req.Recipient + "|" + req.Purpose) {
		return failure(c, http.StatusTooManyRequests, "too_many_requests")
	}

	code, err := h.codes.Issue(req.Recipient, otp.Purpose(req.Purpose))
	if err != nil {
		h.logger.Error("failed to issue code", zap.Error(err))
		return neutralCode(c)
	}

	if err := h.sender.SendCode(c.Request().Context(), req.Recipient, code); err != nil {
		h.logger.Error("failed to deliver code", zap.Error(err))
	}

	return neutralCode(c)
}

type checkCodeRequest struct {
	Recipient string `json:"recipient"`
	Purpose   string `json:"purpose"`
	Code      string `json:"code"`
}

func (r checkCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Recipient, validation.Required),
		validation.Field(&r.Purpose, validation.Required),
		validation.Field(&r.Code, validation.Required),
	)
}

func (h *OTPHandler) Check(c echo.Context) error {
	var req checkCodeRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if err := req.Validate(); err != nil {
		return validationFailure(c, err)
	}

	err := h.codes.Check(req.Recipient, otp.Purpose(req.Purpose), req.Code)
	switch {
	case errors.Is(err, otp.ErrTooManyAttempts):
		return failure(c, http.StatusTooManyRequests, "too_many_attempts")
	case errors.Is(err, otp.ErrCodeNotFound), errors.Is(err, otp.ErrCodeExpired):
		return failure(c, http.StatusNotFound, "not_found")
	case errors.Is(err, otp.ErrCodeMismatch):
		return failure(c, http.StatusBadRequest, "incorrect_code")
	case err != nil:
		h.logger.Error("failed to check code", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	return success(c, nil)
}
