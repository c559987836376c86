package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrChallengeInvalidOrUsed deliberately covers unknown, consumed,
	// cancelled and already-latched-expired tokens with one error so the
	// HTTP surface cannot leak which case occurred.
	ErrChallengeInvalidOrUsed = errors.New("verification token is invalid or has already been used")
	ErrChallengeExpired       = errors.New("verification token has expired")
	ErrEmailTaken             = errors.New("email address is already in use")
)

// Dispatcher applies a consumed challenge's side effect inside the
// consuming transaction.
type Dispatcher interface {
	Dispatch(tx *gorm.DB, ch *Challenge, payload FlowPayload, in ConsumeInput) (*Outcome, error)
}

type Outcome struct {
	Flow    FlowKind
	Mutated bool
}

type CreateInput struct {
	SubjectKey string
	Tenant     string
	Flow       FlowKind
	Payload    FlowPayload
	ClientIP   string
	UserAgent  string
}

type ConsumeInput struct {
	Secret string
	// NewPasswordHash is only read by the password reset flow.
	NewPasswordHash string
}

// Issued pairs a freshly stored challenge with its plaintext secret. The
// secret exists nowhere else; callers hand it to the notification gateway.
type Issued struct {
	Challenge *Challenge
	Secret    string
}

type Service struct {
	db         *gorm.DB
	cfg        *config.Config
	codec      *token.Codec
	dispatcher Dispatcher
	logger     *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, codec *token.Codec, dispatcher Dispatcher, logger *logging.Service) *Service {
	return &Service{db: db, cfg: cfg, codec: codec, dispatcher: dispatcher, logger: logger}
}

func (s *Service) ttlFor(flow FlowKind) time.Duration {
	switch flow {
	case FlowRegisterUser:
		return s.cfg.Verification.RegisterExpiry
	case FlowChangeEmail:
		return s.cfg.Verification.ChangeEmailExpiry
	case FlowDeleteAccount:
		return s.cfg.Verification.DeleteAccountExpiry
	case FlowLegacyWebActivation:
		return s.cfg.Verification.LegacyWebExpiry
	case FlowPasswordReset:
		return s.cfg.Verification.PasswordResetExpiry
	default:
		return s.cfg.Verification.RegisterExpiry
	}
}

// Create stores a fresh challenge for (subject, tenant, flow). Any active
// challenge for the same triple is cancelled and terminal leftovers are
// purged, so at most one consumable token per triple exists at a time.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Issued, error) {
	secret, digest, err := s.codec.Generate(s.cfg.Verification.TokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	payload, err := EncodePayload(in.Payload)
	if err != nil {
		return nil, err
	}

	ch := &Challenge{
		ReferenceID:   uuid.New().String(),
		SubjectKey:    strings.ToLower(in.SubjectKey),
		Tenant:        in.Tenant,
		FlowKind:      in.Flow,
		TokenHash:     digest,
		Payload:       payload,
		Status:        StatusPending,
		ExpiresAt:     time.Now().Add(s.ttlFor(in.Flow)),
		CreatedIP:     in.ClientIP,
		UserAgent:     in.UserAgent,
		ClientSummary: summariseClient(in.UserAgent),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Purge before cancelling so the row superseded right now survives
		// one more round as an audit trace.
		if err := tx.Unscoped().
			Where("subject_key = ? AND tenant = ? AND flow_kind = ?", ch.SubjectKey, ch.Tenant, ch.FlowKind).
			Where("status IN ?", []Status{StatusUsed, StatusCancelled, StatusExpired}).
			Delete(&Challenge{}).Error; err != nil {
			return fmt.Errorf("failed to purge terminal challenges: %w", err)
		}

		if err := tx.Model(&Challenge{}).
			Where("subject_key = ? AND tenant = ? AND flow_kind = ?", ch.SubjectKey, ch.Tenant, ch.FlowKind).
			Where("status IN ?", []Status{StatusPending, StatusVerified}).
			Update("status", StatusCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel active challenges: %w", err)
		}

		if err := tx.Create(ch).Error; err != nil {
			return fmt.Errorf("failed to create challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge created",
		zap.String("reference_id", ch.ReferenceID),
		zap.String("flow", string(ch.FlowKind)),
		zap.String("tenant", ch.Tenant),
	)
	return &Issued{Challenge: ch, Secret: secret}, nil
}

// resolve finds the newest challenge matching the secret's digest. Newest
// first so a superseded-then-cancelled row never shadows the live one.
func (s *Service) resolve(db *gorm.DB, secret string) (*Challenge, error) {
	digest := s.codec.Digest(secret)
	var ch Challenge
	if err := db.Where("token_hash = ?", digest).Order("id DESC").First(&ch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeInvalidOrUsed
		}
		return nil, fmt.Errorf("failed to look up challenge: %w", err)
	}
	return &ch, nil
}

// latchExpired flips an overdue row to EXPIRED. Exactly one caller observes
// the flip; everyone racing it gets invalid_or_used.
func (s *Service) latchExpired(db *gorm.DB, ch *Challenge) error {
	res := db.Model(&Challenge{}).
		Where("id = ? AND status IN ?", ch.ID, []Status{StatusPending, StatusVerified}).
		Update("status", StatusExpired)
	if res.Error != nil {
		return fmt.Errorf("failed to expire challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrChallengeInvalidOrUsed
	}
	s.logger.Info("challenge expired", zap.String("reference_id", ch.ReferenceID))
	return ErrChallengeExpired
}

// Verify performs the first leg of a two-phase flow: it proves the caller
// holds the secret without consuming it. Verifying twice is a no-op.
func (s *Service) Verify(ctx context.Context, secret string) (*Challenge, error) {
	db := s.db.WithContext(ctx)

	ch, err := s.resolve(db, secret)
	if err != nil {
		return nil, err
	}
	if ch.Status.Terminal() {
		return nil, ErrChallengeInvalidOrUsed
	}
	if time.Now().After(ch.ExpiresAt) {
		return nil, s.latchExpired(db, ch)
	}
	if ch.Status == StatusVerified {
		return ch, nil
	}

	now := time.Now()
	res := db.Model(&Challenge{}).
		Where("id = ? AND status = ?", ch.ID, StatusPending).
		Updates(map[string]any{"status": StatusVerified, "verified_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to verify challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrChallengeInvalidOrUsed
	}
	ch.Status = StatusVerified
	ch.VerifiedAt = &now
	return ch, nil
}

// Consume atomically retires the challenge and applies its flow's side
// effect in one transaction. The conditional update to USED guarantees a
// single winner under concurrent attempts; a dispatcher failure rolls the
// whole unit back so the token stays consumable after transient faults.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (*Outcome, error) {
	db := s.db.WithContext(ctx)

	ch, err := s.resolve(db, in.Secret)
	if err != nil {
		return nil, err
	}
	if ch.Status.Terminal() {
		return nil, ErrChallengeInvalidOrUsed
	}
	if time.Now().After(ch.ExpiresAt) {
		return nil, s.latchExpired(db, ch)
	}

	payload, err := DecodePayload(ch.Payload)
	if err != nil {
		return nil, err
	}

	var outcome *Outcome
	var conflict error
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Challenge{}).
			Where("id = ? AND status = ?", ch.ID, ch.Status).
			Updates(map[string]any{"status": StatusUsed, "used_at": time.Now()})
		if res.Error != nil {
			return fmt.Errorf("failed to consume challenge: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrChallengeInvalidOrUsed
		}

		out, err := s.dispatcher.Dispatch(tx, ch, payload, in)
		if errors.Is(err, ErrEmailTaken) {
			// The token is still spent on a conflict; keep the USED
			// flip and commit.
			conflict = err
			outcome = out
			return nil
		}
		if err != nil {
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		s.logger.Warn("challenge consumed with conflict",
			zap.String("reference_id", ch.ReferenceID),
			zap.String("flow", string(ch.FlowKind)),
		)
		return outcome, conflict
	}

	s.logger.Info("challenge consumed",
		zap.String("reference_id", ch.ReferenceID),
		zap.String("flow", string(ch.FlowKind)),
		zap.String("tenant", ch.Tenant),
	)
	return outcome, nil
}

// Cancel retires every active challenge for the subject without consuming
// anything. Used when the underlying request is withdrawn.
func (s *Service) Cancel(ctx context.Context, subjectKey, tenant string, flow FlowKind) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Challenge{}).
		Where("subject_key = ? AND tenant = ? AND flow_kind = ?", strings.ToLower(subjectKey), tenant, flow).
		Where("status IN ?", []Status{StatusPending, StatusVerified}).
		Update("status", StatusCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cancel challenges: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func summariseClient(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.Parse(rawUA)
	if ua.Name == "" {
		return rawUA
	}
	summary := ua.Name
	if ua.Version != "" {
		summary += " " + ua.Version
	}
	if ua.OS != "" {
		summary += " on " + ua.OS
	}
	return summary
}
