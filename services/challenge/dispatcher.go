package challenge

import (
	"fmt"

	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FlowDispatcher maps a consumed challenge to its account mutation. Every
// branch runs on the transaction that flipped the token to USED.
type FlowDispatcher struct {
	accounts *account.Service
	logger   *logging.Service
}

func NewFlowDispatcher(accounts *account.Service, logger *logging.Service) *FlowDispatcher {
	return &FlowDispatcher{accounts: accounts, logger: logger}
}

func (d *FlowDispatcher) Dispatch(tx *gorm.DB, ch *Challenge, payload FlowPayload, in ConsumeInput) (*Outcome, error) {
	switch p := payload.(type) {
	case *RegisterUserPayload:
		return d.registerUser(tx, p)
	case *ChangeEmailPayload:
		return d.changeEmail(tx, p)
	case *DeleteAccountPayload:
		return d.deleteAccount(tx, p)
	case *LegacyWebActivationPayload:
		return d.activateWebAccount(tx, p)
	case *PasswordResetPayload:
		return d.resetPassword(tx, p, in)
	default:
		return nil, fmt.Errorf("no dispatch branch for flow %q", ch.FlowKind)
	}
}

func (d *FlowDispatcher) registerUser(tx *gorm.DB, p *RegisterUserPayload) (*Outcome, error) {
	taken, err := d.accounts.EmailTakenTx(tx, p.Email, p.Tenant)
	if err != nil {
		return nil, err
	}
	if taken {
		// The address got registered between initiate and consume,
		// e.g. through an earlier link from a resent invitation. Skip
		// the insert but still activate the invitation; the token is
		// spent either way.
		if err := d.accounts.ActivateInvitationTx(tx, p.Email, p.Tenant); err != nil {
			return nil, err
		}
		d.logger.Info("registration replayed for existing user", zap.String("tenant", p.Tenant))
		return &Outcome{Flow: FlowRegisterUser}, nil
	}

	user := &account.User{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		PhoneNumber:  p.PhoneNumber,
		Address:      p.Address,
		City:         p.City,
		PostalCode:   p.PostalCode,
		Role:         p.Role,
		Tenant:       p.Tenant,
	}
	if err := d.accounts.CreateUserTx(tx, user); err != nil {
		return nil, err
	}
	if err := d.accounts.ActivateInvitationTx(tx, p.Email, p.Tenant); err != nil {
		return nil, err
	}

	d.logger.Info("user registered", zap.String("tenant", p.Tenant))
	return &Outcome{Flow: FlowRegisterUser, Mutated: true}, nil
}

func (d *FlowDispatcher) changeEmail(tx *gorm.DB, p *ChangeEmailPayload) (*Outcome, error) {
	taken, err := d.accounts.EmailTakenTx(tx, p.NewEmail, p.Tenant)
	if err != nil {
		return nil, err
	}
	if taken {
		return &Outcome{Flow: FlowChangeEmail}, ErrEmailTaken
	}

	affected, err := d.accounts.UpdateEmailTx(tx, p.CurrentEmail, p.NewEmail, p.Tenant)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		if err := d.accounts.RebindInvitationEmailTx(tx, p.CurrentEmail, p.NewEmail, p.Tenant); err != nil {
			return nil, err
		}
	}

	return &Outcome{Flow: FlowChangeEmail, Mutated: affected > 0}, nil
}

func (d *FlowDispatcher) deleteAccount(tx *gorm.DB, p *DeleteAccountPayload) (*Outcome, error) {
	affected, err := d.accounts.DeleteUserTx(tx, p.Email, p.Tenant)
	if err != nil {
		return nil, err
	}
	if _, err := d.accounts.DeleteInvitationTx(tx, p.Email, p.Tenant); err != nil {
		return nil, err
	}

	// Deleting an already-absent account succeeds; the token was spent
	// either way.
	d.logger.Info("account deletion applied",
		zap.String("tenant", p.Tenant),
		zap.Int64("rows", affected),
	)
	return &Outcome{Flow: FlowDeleteAccount, Mutated: affected > 0}, nil
}

func (d *FlowDispatcher) activateWebAccount(tx *gorm.DB, p *LegacyWebActivationPayload) (*Outcome, error) {
	webAccount := &account.WebAccount{
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		City:         p.City,
		Country:      p.Country,
		Tenant:       p.Tenant,
		Role:         p.Role,
	}
	if err := d.accounts.UpsertWebAccountTx(tx, webAccount); err != nil {
		return nil, err
	}

	d.logger.Info("web account activated", zap.String("tenant", p.Tenant))
	return &Outcome{Flow: FlowLegacyWebActivation, Mutated: true}, nil
}

func (d *FlowDispatcher) resetPassword(tx *gorm.DB, p *PasswordResetPayload, in ConsumeInput) (*Outcome, error) {
	if in.NewPasswordHash == "" {
		return nil, fmt.Errorf("password reset consumed without a replacement password")
	}

	affected, err := d.accounts.UpdatePasswordTx(tx, p.Email, p.Tenant, in.NewPasswordHash)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// The address may belong to a legacy web account instead.
		affected, err = d.accounts.UpdateWebPasswordTx(tx, p.Email, in.NewPasswordHash)
		if err != nil {
			return nil, err
		}
	}

	return &Outcome{Flow: FlowPasswordReset, Mutated: affected > 0}, nil
}
