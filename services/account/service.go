package account

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidPhoneNumber    = errors.New("invalid phone number")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return fmt.Errorf("password must be at least %d characters", s.config.Auth.MinLength)
	}

	var hasUpper, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if s.config.Auth.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.Auth.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NormalizePhone formats a phone number to E.164. The region may be an ISO
// code ("FR") or an international calling prefix ("+33").
func (s *Service) NormalizePhone(number, region string) (string, error) {
	if strings.HasPrefix(region, "+") {
		code := 0
		if _, err := fmt.Sscanf(region, "+%d", &code); err != nil {
			return "", ErrInvalidPhoneNumber
		}
		region = phonenumbers.GetRegionCodeForCountryCode(code)
		if region == "ZZ" {
			return "", ErrInvalidPhoneNumber
		}
	}

	if strings.HasPrefix(number, "+") {
		region = ""
	}

	parsed, err := phonenumbers.Parse(number, region)
	if err != nil {
		return "", ErrInvalidPhoneNumber
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidPhoneNumber
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// FindByIdentity looks a user up by email or username within a tenant.
func (s *Service) FindByIdentity(identity, tenant string) (*User, error) {
	return s.FindByIdentityTx(s.db, identity, tenant)
}

func (s *Service) FindByIdentityTx(tx *gorm.DB, identity, tenant string) (*User, error) {
	var user User
	err := tx.Where("(lower(email) = lower(?) OR lower(username) = lower(?)) AND tenant = ?",
		identity, identity, tenant).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (s *Service) FindByID(id uint, tenant string) (*User, error) {
	var user User
	err := s.db.Where("id = ? AND tenant = ?", id, tenant).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (s *Service) EmailTakenTx(tx *gorm.DB, email, tenant string) (bool, error) {
	var count int64
	err := tx.Model(&User{}).
		Where("lower(email) = lower(?) AND tenant = ?", email, tenant).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (s *Service) CreateUserTx(tx *gorm.DB, user *User) error {
	if err := tx.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateEmailTx rebinds a user's email within a tenant. Returns the number of
// rows changed; zero means the account vanished between initiate and consume.
func (s *Service) UpdateEmailTx(tx *gorm.DB, currentEmail, newEmail, tenant string) (int64, error) {
	result := tx.Model(&User{}).
		Where("lower(email) = lower(?) AND tenant = ?", currentEmail, tenant).
		Update("email", newEmail)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update email: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) UpdatePasswordTx(tx *gorm.DB, email, tenant, passwordHash string) (int64, error) {
	result := tx.Model(&User{}).
		Where("lower(email) = lower(?) AND tenant = ?", email, tenant).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update password: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) DeleteUserTx(tx *gorm.DB, email, tenant string) (int64, error) {
	result := tx.Unscoped().
		Where("lower(email) = lower(?) AND tenant = ?", email, tenant).
		Delete(&User{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete user: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) SetDeviceToken(identity, tenant, deviceToken string) error {
	result := s.db.Model(&User{}).
		Where("(lower(email) = lower(?) OR lower(username) = lower(?)) AND tenant = ?",
			identity, identity, tenant).
		Updates(map[string]any{"device_token": deviceToken, "logged_in": true})
	if result.Error != nil {
		return fmt.Errorf("failed to store device token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) SetLoggedIn(identity, tenant string, loggedIn bool) error {
	result := s.db.Model(&User{}).
		Where("(lower(email) = lower(?) OR lower(username) = lower(?)) AND tenant = ?",
			identity, identity, tenant).
		Update("logged_in", loggedIn)
	if result.Error != nil {
		return fmt.Errorf("failed to update login state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) FindInvitation(identity, tenant string) (*Invitation, error) {
	return s.FindInvitationTx(s.db, identity, tenant)
}

func (s *Service) FindInvitationTx(tx *gorm.DB, identity, tenant string) (*Invitation, error) {
	var invitation Invitation
	err := tx.Where("(lower(email) = lower(?) OR lower(username) = lower(?)) AND tenant = ?",
		identity, identity, tenant).First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	return &invitation, nil
}

func (s *Service) CreateInvitation(invitation *Invitation) error {
	if err := s.db.Create(invitation).Error; err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (s *Service) ActivateInvitationTx(tx *gorm.DB, email, tenant string) error {
	err := tx.Model(&Invitation{}).
		Where("lower(email) = lower(?) AND tenant = ?", email, tenant).
		Update("activated", true).Error
	if err != nil {
		return fmt.Errorf("failed to activate invitation: %w", err)
	}
	return nil
}

// RebindInvitationEmailTx keeps the invitation ledger in step with an email
// change so a later re-registration matches the new address.
func (s *Service) RebindInvitationEmailTx(tx *gorm.DB, currentEmail, newEmail, tenant string) error {
	err := tx.Model(&Invitation{}).
		Where("lower(email) = lower(?) AND tenant = ?", currentEmail, tenant).
		Updates(map[string]any{"email": newEmail, "username": newEmail}).Error
	if err != nil {
		return fmt.Errorf("failed to rebind invitation: %w", err)
	}
	return nil
}

func (s *Service) DeleteInvitationTx(tx *gorm.DB, email, tenant string) (int64, error) {
	result := tx.Unscoped().
		Where("lower(email) = lower(?) AND tenant = ?", email, tenant).
		Delete(&Invitation{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete invitation: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) FindWebAccount(email string) (*WebAccount, error) {
	var account WebAccount
	err := s.db.Where("lower(email) = lower(?)", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up web account: %w", err)
	}
	return &account, nil
}

// UpsertWebAccountTx applies the legacy update-if-exists-else-insert
// activation: existing rows get their fields refreshed and Activated set,
// missing rows are inserted already activated.
func (s *Service) UpsertWebAccountTx(tx *gorm.DB, account *WebAccount) error {
	var existing WebAccount
	err := tx.Where("lower(email) = lower(?)", account.Email).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"password_hash": account.PasswordHash,
			"city":          account.City,
			"country":       account.Country,
			"tenant":        account.Tenant,
			"role":          account.Role,
			"activated":     true,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to activate web account: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		account.Activated = true
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create web account: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("failed to look up web account: %w", err)
	}
}

func (s *Service) UpdateWebPasswordTx(tx *gorm.DB, email, passwordHash string) (int64, error) {
	result := tx.Model(&WebAccount{}).
		Where("lower(email) = lower(?) AND activated = ?", email, true).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update web password: %w", result.Error)
	}
	return result.RowsAffected, nil
}
