package account

import (
	"time"

	"gorm.io/gorm"
)

// User is a tenant-scoped account. The same email may exist in different
// tenants (applications) without colliding.
type User struct {
	gorm.Model
	Username     string `gorm:"index:idx_users_username_tenant,unique;not null"`
	Email        string `gorm:"index:idx_users_email_tenant,unique;not null"`
	PasswordHash string `gorm:"not null"`
	PhoneNumber  string
	Address      string
	City         string
	PostalCode   string
	Role         string
	Tenant       string `gorm:"index:idx_users_username_tenant,unique;index:idx_users_email_tenant,unique;not null"`
	DeviceToken  string
	LoggedIn     bool `gorm:"default:false"`
}

func (User) TableName() string {
	return "users"
}

// Invitation is an admin-provisioned registration allowance. Sign-up is only
// honoured for identities present here; Activated flips when the matching
// verification challenge is consumed.
type Invitation struct {
	gorm.Model
	Username  string `gorm:"index:idx_invitations_username_tenant,unique;not null"`
	Email     string `gorm:"index:idx_invitations_email_tenant,unique;not null"`
	Role      string `gorm:"not null"`
	Tenant    string `gorm:"index:idx_invitations_username_tenant,unique;index:idx_invitations_email_tenant,unique;not null"`
	Activated bool   `gorm:"default:false"`
}

func (Invitation) TableName() string {
	return "invitations"
}

// WebAccount is the legacy web-portal account table kept for the
// LegacyWebActivation flow.
type WebAccount struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	City         string
	Country      string
	Tenant       string
	Role         string
	Activated    bool `gorm:"default:false"`
	ActivatedAt  *time.Time
}

func (WebAccount) TableName() string {
	return "web_accounts"
}
