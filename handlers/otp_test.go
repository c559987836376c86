package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendCode(t *testing.T, env *testEnv, recipient string) string {
	t.Helper()

	rec := env.post(t, "/api/verify/otp/send", map[string]any{
		"recipient": recipient, "purpose": "register",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), neutralCodeMessage)

	codes := env.sender.SentCodes()
	require.NotEmpty(t, codes)
	return codes[len(codes)-1].Code
}

func TestOTPSendAndCheck(t *testing.T) {
	env := newTestEnv(t)
	code := sendCode(t, env, "user@example.com")
	require.Len(t, code, env.cfg.OTP.CodeLength)

	rec := env.post(t, "/api/verify/otp/check", map[string]any{
		"recipient": "user@example.com", "purpose": "register", "code": code,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Consumed on success.
	rec = env.post(t, "/api/verify/otp/check", map[string]any{
		"recipient": "user@example.com", "purpose": "register", "code": code,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPCheckWrongCode(t *testing.T) {
	env := newTestEnv(t)
	code := sendCode(t, env, "user@example.com")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	rec := env.post(t, "/api/verify/otp/check", map[string]any{
		"recipient": "user@example.com", "purpose": "register", "code": wrong,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "incorrect_code")

	// The real code still works after a single miss.
	rec = env.post(t, "/api/verify/otp/check", map[string]any{
		"recipient": "user@example.com", "purpose": "register", "code": code,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOTPCheckUnknownRecipient(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/verify/otp/check", map[string]any{
		"recipient": "nobody@example.com", "purpose": "register", "code": "123456",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPCheckAttemptBudget(t *testing.T) {
	env := newTestEnv(t)
	code := sendCode(t, env, "user@example.com")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	body := map[string]any{
		"recipient": "user@example.com", "purpose": "register", "code": wrong,
	}
	for i := 0; i < env.cfg.OTP.MaxAttempts-1; i++ {
		rec := env.post(t, "/api/verify/otp/check", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := env.post(t, "/api/verify/otp/check", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too_many_attempts")

	// Lockout purged the entry; even the right code is gone now.
	rec = env.post(t, "/api/verify/otp/check", map[string]any{
		"recipient": "user@example.com", "purpose": "register", "code": code,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPSendValidatesPurpose(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/verify/otp/send", map[string]any{
		"recipient": "user@example.com", "purpose": "world_domination",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
