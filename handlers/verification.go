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

// dummyPasswordHash is a structurally valid bcrypt digest compared against
// when the account does not exist, so both paths pay the full bcrypt cost.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type VerificationHandler struct {
	cfg        *config.Config
	challenges *challenge.Service
	accounts   *account.Service
	sender     mail.Sender
	limiter    *ratelimit.Limiter
	logger     *logging.Service
}

func NewVerificationHandler(cfg *config.Config, challenges *challenge.Service, accounts *account.Service, sender mail.Sender, limiter *ratelimit.Limiter, logger *logging.Service) *VerificationHandler {
	return &VerificationHandler{
		cfg:        cfg,
		challenges: challenges,
		accounts:   accounts,
		sender:     sender,
		limiter:    limiter,
		logger:     logger,
	}
}

type initiateRequest struct {
	FlowKind string `json:"flow_kind"`
	Tenant   string `json:"tenant"`

	// register_user
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	PhoneRegion string `json:"phone_region"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Role        string `json:"role"`

	// change_email
	CurrentEmail string `json:"current_email"`
	NewEmail     string `json:"new_email"`

	// legacy_web_activation
	Country string `json:"country"`
}

func (r initiateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FlowKind, validation.Required, validation.In(
			string(challenge.FlowRegisterUser),
			string(challenge.FlowChangeEmail),
			string(challenge.FlowDeleteAccount),
			string(challenge.FlowLegacyWebActivation),
		)),
		validation.Field(&r.Tenant, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.CurrentEmail, is.Email),
		validation.Field(&r.NewEmail, is.Email),
	)
}

// Initiate starts a link-token flow. Whatever happens past input validation
// and the flow's own preconditions, the caller sees the same neutral body.
func (h *VerificationHandler) Initiate(c echo.Context) error {
	var req initiateRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if err := req.Validate(); err != nil {
		return validationFailure(c, err)
	}

	switch challenge.FlowKind(req.FlowKind) {
	case challenge.FlowRegisterUser:
		return h.initiateRegister(c, req)
	case challenge.FlowChangeEmail:
		return h.initiateChangeEmail(c, req)
	case challenge.FlowDeleteAccount:
		return h.initiateDeleteAccount(c, req)
	case challenge.FlowLegacyWebActivation:
		return h.initiateWebActivation(c, req)
	default:
		return failure(c, http.StatusBadRequest, "unknown_flow")
	}
}

func (h *VerificationHandler) initiateRegister(c echo.Context, req initiateRequest) error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
	); err != nil {
		return validationFailure(c, err)
	}
	if err := h.accounts.ValidatePassword(req.Password); err != nil {
		return failure(c, http.StatusBadRequest, "weak_password")
	}

	phone := req.PhoneNumber
	if phone != "" {
		normalized, err := h.accounts.NormalizePhone(req.PhoneNumber, req.PhoneRegion)
		if err != nil {
			return failure(c, http.StatusBadRequest, "invalid_phone_number")
		}
		phone = normalized
	}

	if !h.limiter.Allow(req.Email + "|" + req.Tenant) {
		return failure(c, http.StatusTooManyRequests, "too_many_requests")
	}

	// Registration is invitation-gated; a taken or uninvited address is
	// reported outright, a deliberate exception to the neutral discipline.
	if _, err := h.accounts.FindByIdentity(req.Email, req.Tenant); err == nil {
		return failure(c, http.StatusBadRequest, "email_cannot_be_used")
	}
	invitation, err := h.accounts.FindInvitation(req.Email, req.Tenant)
	if err != nil {
		return failure(c, http.StatusBadRequest, "email_cannot_be_used")
	}

	passwordHash, err := h.accounts.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	role := req.Role
	if role == "" {
		role = invitation.Role
	}

	h.issueAndDeliver(c, challenge.CreateInput{
		SubjectKey: req.Email,
		Tenant:     req.Tenant,
		Flow:       challenge.FlowRegisterUser,
		Payload: &challenge.RegisterUserPayload{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: passwordHash,
			PhoneNumber:  phone,
			Address:      req.Address,
			City:         req.City,
			PostalCode:   req.PostalCode,
			Role:         role,
			Tenant:       req.Tenant,
		},
	}, req.Email, "verify_email")
	return neutralLink(c)
}

func (h *VerificationHandler) initiateChangeEmail(c echo.Context, req initiateRequest) error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.CurrentEmail, validation.Required),
		validation.Field(&req.NewEmail, validation.Required),
		validation.Field(&req.Password, validation.Required),
	); err != nil {
		return validationFailure(c, err)
	}

	user, err := h.authenticate(req.CurrentEmail, req.Password, req.Tenant)
	if err != nil {
		return failure(c, http.StatusUnauthorized, "invalid_credentials")
	}

	if !h.limiter.Allow(req.CurrentEmail + "|" + req.Tenant) {
		return failure(c, http.StatusTooManyRequests, "too_many_requests")
	}

	// The link goes to the address being claimed, proving control of it.
	h.issueAndDeliver(c, challenge.CreateInput{
		SubjectKey: user.Email,
		Tenant:     req.Tenant,
		Flow:       challenge.FlowChangeEmail,
		Payload: &challenge.ChangeEmailPayload{
			CurrentEmail: user.Email,
			NewEmail:     req.NewEmail,
			Tenant:       req.Tenant,
		},
	}, req.NewEmail, "change_email")
	return neutralLink(c)
}

func (h *VerificationHandler) initiateDeleteAccount(c echo.Context, req initiateRequest) error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
	); err != nil {
		return validationFailure(c, err)
	}

	user, err := h.authenticate(req.Email, req.Password, req.Tenant)
	if err != nil {
		return failure(c, http.StatusUnauthorized, "invalid_credentials")
	}

	if !h.limiter.Allow(req.Email + "|" + req.Tenant) {
		return failure(c, http.StatusTooManyRequests, "too_many_requests")
	}

	h.issueAndDeliver(c, challenge.CreateInput{
		SubjectKey: user.Email,
		Tenant:     req.Tenant,
		Flow:       challenge.FlowDeleteAccount,
		Payload: &challenge.DeleteAccountPayload{
			Email:  user.Email,
			Tenant: req.Tenant,
		},
	}, user.Email, "delete_account")
	return neutralLink(c)
}

func (h *VerificationHandler) initiateWebActivation(c echo.Context, req initiateRequest) error {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
	); err != nil {
		return validationFailure(c, err)
	}
	if err := h.accounts.ValidatePassword(req.Password); err != nil {
		return failure(c, http.StatusBadRequest, "weak_password")
	}

	if !h.limiter.Allow(req.Email + "|" + req.Tenant) {
		return failure(c, http.StatusTooManyRequests, "too_many_requests")
	}

	passwordHash, err := h.accounts.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	h.issueAndDeliver(c, challenge.CreateInput{
		SubjectKey: req.Email,
		Tenant:     req.Tenant,
		Flow:       challenge.FlowLegacyWebActivation,
		Payload: &challenge.LegacyWebActivationPayload{
			Email:        req.Email,
			PasswordHash: passwordHash,
			City:         req.City,
			Country:      req.Country,
			Tenant:       req.Tenant,
			Role:         req.Role,
		},
	}, req.Email, "verify_email")
	return neutralLink(c)
}

// issueAndDeliver stores the challenge and mails the link. Failures are
// logged only; the initiate response was neutral before this ran and stays
// neutral after.
func (h *VerificationHandler) issueAndDeliver(c echo.Context, in challenge.CreateInput, recipient, template string) {
	in.ClientIP = c.RealIP()
	in.UserAgent = c.Request().UserAgent()

	issued, err := h.challenges.Create(c.Request().Context(), in)
	if err != nil {
		h.logger.Error("failed to create challenge",
			zap.String("flow", string(in.Flow)),
			zap.Error(err),
		)
		return
	}

	url := h.cfg.App.URL + "/verify?token=" + issued.Secret
	if err := h.sender.SendLink(c.Request().Context(), recipient, url, template, map[string]any{
		"Tenant": in.Tenant,
	}); err != nil {
		h.logger.Error("failed to deliver verification link",
			zap.String("flow", string(in.Flow)),
			zap.Error(err),
		)
	}
}

func (h *VerificationHandler) authenticate(identity, password, tenant string) (*account.User, error) {
	user, err := h.accounts.FindByIdentity(identity, tenant)
	if err != nil {
		// Burn a comparison anyway so timing does not split on
		// account existence.
		_ = h.accounts.VerifyPassword(dummyPasswordHash, password)
		return nil, account.ErrInvalidCredentials
	}
	if err := h.accounts.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, account.ErrInvalidCredentials
	}
	return user, nil
}

type consumeRequest struct {
	Token string `json:"token"`
}

// Consume spends a link token. Unlike initiate, specific failures are fine
// here: possession of the secret is what is being proven, not account
// existence.
func (h *VerificationHandler) Consume(c echo.Context) error {
	var req consumeRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "malformed_request")
	}
	if req.Token == "" {
		return failure(c, http.StatusBadRequest, "missing_token")
	}

	outcome, err := h.challenges.Consume(c.Request().Context(), challenge.ConsumeInput{Secret: req.Token})
	return h.respondConsume(c, outcome, err)
}

func (h *VerificationHandler) respondConsume(c echo.Context, outcome *challenge.Outcome, err error) error {
	switch {
	case errors.Is(err, challenge.ErrChallengeInvalidOrUsed):
		return failure(c, http.StatusUnauthorized, "invalid_or_used")
	case errors.Is(err, challenge.ErrChallengeExpired):
		return failure(c, http.StatusGone, "expired")
	case errors.Is(err, challenge.ErrEmailTaken):
		return failure(c, http.StatusConflict, "email_taken")
	case err != nil:
		h.logger.Error("failed to consume challenge", zap.Error(err))
		return failure(c, http.StatusInternalServerError, "internal_error")
	}

	return success(c, map[string]any{
		"flow":    string(outcome.Flow),
		"applied": outcome.Mutated,
	})
}
