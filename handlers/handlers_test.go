package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/server"
	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/challenge"
	"github.com/tech-arch1tect/scanassist/services/jwt"
	"github.com/tech-arch1tect/scanassist/services/otp"
	"github.com/tech-arch1tect/scanassist/services/token"
	"github.com/tech-arch1tect/scanassist/testutils"
	"gorm.io/gorm"

	"github.com/tech-arch1tect/scanassist/middleware/ratelimit"
)

type testEnv struct {
	cfg        *config.Config
	srv        *server.Server
	db         *gorm.DB
	sender     *testutils.MockSender
	accounts   *account.Service
	challenges *challenge.Service
	codes      *otp.Store
	tokens     *jwt.Service
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRates(t, 100, 100)
}

func newTestEnvWithRates(t *testing.T, initiateRate, consumeRate int) *testEnv {
	t.Helper()

	db := testutils.SetupTestDB(t,
		&challenge.Challenge{}, &account.User{}, &account.Invitation{}, &account.WebAccount{})
	cfg := testutils.GetTestConfig()
	cfg.RateLimit = config.RateLimitConfig{
		InitiateRate:   initiateRate,
		InitiatePeriod: time.Minute,
		ConsumeRate:    consumeRate,
		ConsumePeriod:  time.Minute,
	}

	accounts := account.NewService(cfg, db, nil)
	codec := token.NewCodec()
	dispatcher := challenge.NewFlowDispatcher(accounts, nil)
	challenges := challenge.NewService(db, cfg, codec, dispatcher, nil)
	codes := otp.NewStore(otp.Config{
		CodeLength:  cfg.OTP.CodeLength,
		Expiry:      cfg.OTP.Expiry,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, codec, nil)
	tokens := jwt.NewService(cfg, nil)
	sender := &testutils.MockSender{}

	store := ratelimit.NewMemoryStore()
	limiter := ProvideSubjectLimiter(cfg, store)

	srv := server.New(cfg, nil)
	RegisterRoutes(srv, cfg, store, tokens,
		NewVerificationHandler(cfg, challenges, accounts, sender, limiter, nil),
		NewPasswordHandler(cfg, challenges, accounts, sender, limiter, nil),
		NewOTPHandler(codes, sender, limiter, nil),
		NewAuthHandler(accounts, tokens, nil),
		NewInvitationHandler(accounts, nil),
	)

	return &testEnv{
		cfg:        cfg,
		srv:        srv,
		db:         db,
		sender:     sender,
		accounts:   accounts,
		challenges: challenges,
		codes:      codes,
		tokens:     tokens,
	}
}

func (env *testEnv) post(t *testing.T, path string, body map[string]any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	env.srv.Echo().ServeHTTP(rec, req)
	return rec
}

// lastLinkToken pulls the secret out of the most recently mailed link.
func (env *testEnv) lastLinkToken(t *testing.T) string {
	t.Helper()

	links := env.sender.SentLinks()
	require.NotEmpty(t, links)
	url := links[len(links)-1].URL
	idx := strings.Index(url, "token=")
	require.GreaterOrEqual(t, idx, 0)
	return url[idx+len("token="):]
}

func (env *testEnv) seedUser(t *testing.T, email, password, tenant string) *account.User {
	t.Helper()

	hash, err := env.accounts.HashPassword(password)
	require.NoError(t, err)
	user := &account.User{
		Username:     strings.SplitN(email, "@", 2)[0],
		Email:        email,
		PasswordHash: hash,
		Tenant:       tenant,
		Role:         "user",
	}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *testEnv) seedInvitation(t *testing.T, email, username, tenant string) {
	t.Helper()
	require.NoError(t, env.accounts.CreateInvitation(&account.Invitation{
		Email:    email,
		Username: username,
		Role:     "user",
		Tenant:   tenant,
	}))
}
