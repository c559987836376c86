package challenge

import (
	"time"

	"gorm.io/gorm"
)

type FlowKind string

const (
	FlowRegisterUser        FlowKind = "register_user"
	FlowChangeEmail         FlowKind = "change_email"
	FlowDeleteAccount       FlowKind = "delete_account"
	FlowLegacyWebActivation FlowKind = "legacy_web_activation"
	FlowPasswordReset       FlowKind = "password_reset"
)

type Status string

// Transitions are monotonic: PENDING may move to any other status, VERIFIED
// only to USED or EXPIRED, and USED/CANCELLED/EXPIRED absorb. Every flip is a
// conditional update keyed on the current status.
const (
	StatusPending   Status = "PENDING"
	StatusVerified  Status = "VERIFIED"
	StatusUsed      Status = "USED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusUsed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Challenge is one verification attempt. Only the secret's digest is stored;
// the plaintext lives in the initiator's response and the outbound message.
type Challenge struct {
	gorm.Model
	ReferenceID   string   `json:"reference_id" gorm:"uniqueIndex;not null"`
	SubjectKey    string   `json:"subject_key" gorm:"index:idx_challenges_subject;not null"`
	Tenant        string   `json:"tenant" gorm:"index:idx_challenges_subject;not null"`
	FlowKind      FlowKind `json:"flow_kind" gorm:"index:idx_challenges_subject;not null"`
	TokenHash     string   `json:"-" gorm:"index;not null"`
	Payload       string   `json:"-"`
	Status        Status   `json:"status" gorm:"not null;default:PENDING"`
	ExpiresAt     time.Time  `json:"expires_at" gorm:"not null"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedIP     string     `json:"-"`
	UserAgent     string     `json:"-"`
	ClientSummary string     `json:"-"`
}

func (Challenge) TableName() string {
	return "verification_challenges"
}
