package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgotPasswordNeutralBodies(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "real@example.com", "Password123!", "acme")

	existing := env.post(t, "/api/password/forgot", map[string]any{
		"email": "real@example.com", "tenant": "acme",
	})
	missing := env.post(t, "/api/password/forgot", map[string]any{
		"email": "nobody@example.com", "tenant": "acme",
	})

	require.Equal(t, http.StatusOK, existing.Code)
	require.Equal(t, http.StatusOK, missing.Code)
	// Byte-identical bodies: the response must not hint at account
	// existence.
	assert.Equal(t, existing.Body.Bytes(), missing.Body.Bytes())

	// Only the real account got a token mailed.
	links := env.sender.SentLinks()
	require.Len(t, links, 1)
	assert.Equal(t, "real@example.com", links[0].Recipient)
	assert.Equal(t, "password_reset", links[0].Template)
}

func TestForgotPasswordValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/password/forgot", map[string]any{
		"email": "not-an-email", "tenant": "acme",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordResetTwoPhase(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "jdoe@example.com", "Password123!", "acme")

	rec := env.post(t, "/api/password/forgot", map[string]any{
		"email": "jdoe@example.com", "tenant": "acme",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	secret := env.lastLinkToken(t)

	// Phase one: prove possession without spending.
	rec = env.post(t, "/api/password/verify", map[string]any{"token": secret})
	require.Equal(t, http.StatusOK, rec.Code)

	// A weak replacement is rejected before the token is touched.
	rec = env.post(t, "/api/password/reset", map[string]any{
		"token": secret, "new_password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/api/password/reset", map[string]any{
		"token": secret, "new_password": "Brand-New-Pass1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := env.accounts.FindByIdentity("jdoe@example.com", "acme")
	require.NoError(t, err)
	assert.NoError(t, env.accounts.VerifyPassword(user.PasswordHash, "Brand-New-Pass1!"))

	// Spent: both legs now refuse.
	rec = env.post(t, "/api/password/verify", map[string]any{"token": secret})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.post(t, "/api/password/reset", map[string]any{
		"token": secret, "new_password": "Another-Pass1!",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordVerifyMissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/password/verify", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/api/password/verify", map[string]any{"token": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotPasswordSupersedesPriorToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "jdoe@example.com", "Password123!", "acme")

	body := map[string]any{"email": "jdoe@example.com", "tenant": "acme"}
	require.Equal(t, http.StatusOK, env.post(t, "/api/password/forgot", body).Code)
	firstSecret := env.lastLinkToken(t)
	require.Equal(t, http.StatusOK, env.post(t, "/api/password/forgot", body).Code)

	rec := env.post(t, "/api/password/verify", map[string]any{"token": firstSecret})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.post(t, "/api/password/verify", map[string]any{"token": env.lastLinkToken(t)})
	assert.Equal(t, http.StatusOK, rec.Code)
}
