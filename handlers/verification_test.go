package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/scanassist/services/challenge"
)

func TestInitiateRegisterSendsLink(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvitation(t, "new@example.com", "newbie", "acme")

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind": "register_user",
		"tenant":    "acme",
		"username":  "newbie",
		"email":     "new@example.com",
		"password":  "Password123!",
		"city":      "Lyon",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), neutralLinkMessage)

	links := env.sender.SentLinks()
	require.Len(t, links, 1)
	assert.Equal(t, "new@example.com", links[0].Recipient)
	assert.Equal(t, "verify_email", links[0].Template)
	assert.Contains(t, links[0].URL, "token=")
}

func TestInitiateRegisterRejectsUninvitedOrTaken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "taken@example.com", "Password123!", "acme")

	body := map[string]any{
		"flow_kind": "register_user",
		"tenant":    "acme",
		"username":  "someone",
		"email":     "uninvited@example.com",
		"password":  "Password123!",
	}
	rec := env.post(t, "/api/verify/initiate", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email_cannot_be_used")

	body["email"] = "taken@example.com"
	rec = env.post(t, "/api/verify/initiate", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email_cannot_be_used")
}

func TestInitiateRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvitation(t, "new@example.com", "newbie", "acme")

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind": "register_user",
		"tenant":    "acme",
		"username":  "newbie",
		"email":     "new@example.com",
		"password":  "weak",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "weak_password")
	assert.Empty(t, env.sender.SentLinks())
}

func TestInitiateRejectsUnknownFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind": "mystery",
		"tenant":    "acme",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiateChangeEmailRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "jdoe@example.com", "Password123!", "acme")

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind":     "change_email",
		"tenant":        "acme",
		"current_email": "jdoe@example.com",
		"new_email":     "new@example.com",
		"password":      "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_credentials")

	rec = env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind":     "change_email",
		"tenant":        "acme",
		"current_email": "jdoe@example.com",
		"new_email":     "new@example.com",
		"password":      "Password123!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The link proves control of the claimed address.
	links := env.sender.SentLinks()
	require.Len(t, links, 1)
	assert.Equal(t, "new@example.com", links[0].Recipient)
	assert.Equal(t, "change_email", links[0].Template)
}

func TestConsumeMissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/verify/consume", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_token")
}

func TestConsumeRegisterRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvitation(t, "new@example.com", "newbie", "acme")

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind": "register_user",
		"tenant":    "acme",
		"username":  "newbie",
		"email":     "new@example.com",
		"password":  "Password123!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	secret := env.lastLinkToken(t)

	rec = env.post(t, "/api/verify/consume", map[string]any{"token": secret})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"flow":"register_user"`)

	user, err := env.accounts.FindByIdentity("new@example.com", "acme")
	require.NoError(t, err)
	assert.Equal(t, "newbie", user.Username)

	inv, err := env.accounts.FindInvitation("new@example.com", "acme")
	require.NoError(t, err)
	assert.True(t, inv.Activated)

	rec = env.post(t, "/api/verify/consume", map[string]any{"token": secret})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_or_used")
}

func TestConsumeUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/verify/consume", map[string]any{"token": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsumeExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvitation(t, "new@example.com", "newbie", "acme")

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind": "register_user",
		"tenant":    "acme",
		"username":  "newbie",
		"email":     "new@example.com",
		"password":  "Password123!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	secret := env.lastLinkToken(t)

	require.NoError(t, env.db.Model(&challenge.Challenge{}).
		Where("subject_key = ?", "new@example.com").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	rec = env.post(t, "/api/verify/consume", map[string]any{"token": secret})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	rec = env.post(t, "/api/verify/consume", map[string]any{"token": secret})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsumeChangeEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "jdoe@example.com", "Password123!", "acme")
	env.seedUser(t, "occupied@example.com", "Password123!", "acme")

	rec := env.post(t, "/api/verify/initiate", map[string]any{
		"flow_kind":     "change_email",
		"tenant":        "acme",
		"current_email": "jdoe@example.com",
		"new_email":     "occupied@example.com",
		"password":      "Password123!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	secret := env.lastLinkToken(t)

	rec = env.post(t, "/api/verify/consume", map[string]any{"token": secret})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email_taken")

	// The conflict spent the token.
	rec = env.post(t, "/api/verify/consume", map[string]any{"token": secret})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInitiateSubjectRateLimit(t *testing.T) {
	env := newTestEnvWithRates(t, 2, 100)
	env.seedUser(t, "jdoe@example.com", "Password123!", "acme")

	body := map[string]any{
		"flow_kind": "delete_account",
		"tenant":    "acme",
		"email":     "jdoe@example.com",
		"password":  "Password123!",
	}
	for i := 0; i < 2; i++ {
		rec := env.post(t, "/api/verify/initiate", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.post(t, "/api/verify/initiate", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
