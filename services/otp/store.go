package otp

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/token"
	"go.uber.org/zap"
)

var (
	ErrCodeNotFound    = errors.New("no code issued for recipient and purpose")
	ErrCodeExpired     = errors.New("code has expired")
	ErrCodeMismatch    = errors.New("incorrect code")
	ErrTooManyAttempts = errors.New("too many incorrect attempts")
)

type Purpose string

const (
	PurposeRegister    Purpose = "register"
	PurposeChangePhone Purpose = "change_phone"
	PurposeLogin       Purpose = "login"
)

type Config struct {
	CodeLength  int
	Expiry      time.Duration
	MaxAttempts int
}

type entry struct {
	code        string
	expiresAt   time.Time
	attempts    int
	maxAttempts int
}

// Store holds short numeric codes keyed by (recipient, purpose). All access
// goes through one mutex; an entry for a key is always replaced wholesale on
// Issue, so codes for different purposes never clobber each other.
type Store struct {
	mu     sync.Mutex
	data   map[key]*entry
	cfg    Config
	codec  *token.Codec
	logger *logging.Service
}

type key struct {
	recipient string
	purpose   Purpose
}

func NewStore(cfg Config, codec *token.Codec, logger *logging.Service) *Store {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	store := &Store{
		data:   make(map[key]*entry),
		cfg:    cfg,
		codec:  codec,
		logger: logger,
	}

	go store.cleanup()

	return store
}

// Issue creates a fresh code for the key, replacing any previous entry.
func (s *Store) Issue(recipient string, purpose Purpose) (string, error) {
	code, err := s.codec.GenerateCode(s.cfg.CodeLength)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key{recipient, purpose}] = &entry{
		code:        code,
		expiresAt:   time.Now().Add(s.cfg.Expiry),
		maxAttempts: s.cfg.MaxAttempts,
	}

	s.logger.Debug("otp code issued",
		zap.String("purpose", string(purpose)),
		zap.Time("expires_at", time.Now().Add(s.cfg.Expiry)))

	return code, nil
}

// Check validates a submitted code. The entry is deleted on success, on
// expiry, and once the attempt budget is exhausted; a later check with the
// correct code then reports ErrCodeNotFound.
func (s *Store) Check(recipient string, purpose Purpose, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{recipient, purpose}
	e, ok := s.data[k]
	if !ok {
		return ErrCodeNotFound
	}

	if e.attempts >= e.maxAttempts {
		delete(s.data, k)
		s.logger.Warn("otp attempt budget exhausted", zap.String("purpose", string(purpose)))
		return ErrTooManyAttempts
	}

	if time.Now().After(e.expiresAt) {
		delete(s.data, k)
		return ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		e.attempts++
		if e.attempts >= e.maxAttempts {
			delete(s.data, k)
			s.logger.Warn("otp attempt budget exhausted", zap.String("purpose", string(purpose)))
			return ErrTooManyAttempts
		}
		return ErrCodeMismatch
	}

	delete(s.data, k)
	return nil
}

func (s *Store) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()

		for k, e := range s.data {
			if now.After(e.expiresAt) {
				delete(s.data, k)
			}
		}

		s.mu.Unlock()
	}
}
