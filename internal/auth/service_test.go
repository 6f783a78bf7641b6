package auth

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/accounts"
	"github.com/greengrocer/storefront/internal/cart"
	pkgAuth "github.com/greengrocer/storefront/pkg/auth"
	"github.com/greengrocer/storefront/pkg/auth/session"
	"github.com/greengrocer/storefront/pkg/config"
	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/db/dbtest"
	"github.com/greengrocer/storefront/pkg/db/models"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/outbox"
	redisclient "github.com/greengrocer/storefront/pkg/redis"
	"github.com/greengrocer/storefront/pkg/security"
)

type stubMerger struct {
	calls     []string
	accountID uuid.UUID
	result    *cart.MergeResult
	err       error
}

func (s *stubMerger) MergeOnLogin(_ context.Context, sessionID string, accountID uuid.UUID) (*cart.MergeResult, error) {
	s.calls = append(s.calls, sessionID)
	s.accountID = accountID
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &cart.MergeResult{}, nil
}

type authFixture struct {
	conn     *gorm.DB
	sessions *session.Manager
	merger   *stubMerger
	svc      Service
	jwt      config.JWTConfig
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "storefront-test", ExpirationMinutes: 15}
	sessions, err := session.NewManager(redisclient.NewFromRaw(raw), jwtCfg)
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard})
	merger := &stubMerger{}
	svc, err := NewService(ServiceParams{
		TxRunner: db.Wrap(conn),
		Accounts: accounts.NewRepository(conn),
		Hasher: security.NewPasswordHasher(config.PasswordConfig{
			ArgonMemoryKB:    64,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		}),
		SessionManager: sessions,
		Merger:         merger,
		Outbox:         outbox.NewService(outbox.NewRepository(conn), logg),
		JWTConfig:      jwtCfg,
		Logger:         logg,
	})
	require.NoError(t, err)

	return &authFixture{conn: conn, sessions: sessions, merger: merger, svc: svc, jwt: jwtCfg}
}

func (f *authFixture) register(t *testing.T) *accounts.AccountDTO {
	t.Helper()
	account, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    "Ada@Example.com",
		Username: "ada",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return account
}

func TestRegisterCreatesAccountAndEvent(t *testing.T) {
	f := newAuthFixture(t)
	account := f.register(t)

	assert.Equal(t, "ada@example.com", account.Email)
	assert.Equal(t, "ada", account.Username)

	var stored models.Account
	require.NoError(t, f.conn.Take(&stored, "id = ?", account.ID).Error)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "account_registered", string(events[0].EventType))
	assert.Equal(t, account.ID, events[0].AggregateID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email: "ada@example.com", Username: "ada2", Password: "correct horse",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.Register(context.Background(), RegisterRequest{
		Email: "other@example.com", Username: "ada", Password: "correct horse",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newAuthFixture(t)
	cases := []RegisterRequest{
		{Email: "not-an-email", Username: "ada", Password: "correct horse"},
		{Email: "ada@example.com", Username: "", Password: "correct horse"},
		{Email: "ada@example.com", Username: "a@b", Password: "correct horse"},
		{Email: "ada@example.com", Username: "ada", Password: "short"},
	}
	for _, req := range cases {
		_, err := f.svc.Register(context.Background(), req)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "request %+v", req)
	}
}

func TestLoginByEmailOrUsername(t *testing.T) {
	f := newAuthFixture(t)
	account := f.register(t)
	ctx := context.Background()

	for _, identifier := range []string{"ADA@example.com", "ada"} {
		resp, err := f.svc.Login(ctx, LoginRequest{Identifier: identifier, Password: "correct horse"})
		require.NoError(t, err, identifier)
		assert.Equal(t, account.ID, resp.Account.ID)
		require.NotNil(t, resp.Account.LastLoginAt)

		claims, err := pkgAuth.ParseAccessToken(f.jwt, resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, account.ID, claims.AccountID)

		active, err := f.sessions.HasSession(ctx, claims.ID)
		require.NoError(t, err)
		assert.True(t, active)
	}
	assert.Empty(t, f.merger.calls)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, err := f.svc.Login(context.Background(), LoginRequest{Identifier: "ada", Password: "wrong password"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.Login(context.Background(), LoginRequest{Identifier: "nobody", Password: "correct horse"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginMergesGuestCart(t *testing.T) {
	f := newAuthFixture(t)
	account := f.register(t)
	f.merger.result = &cart.MergeResult{Merged: 2}

	resp, err := f.svc.Login(context.Background(), LoginRequest{
		Identifier: "ada", Password: "correct horse", SessionID: "guest-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"guest-1"}, f.merger.calls)
	assert.Equal(t, account.ID, f.merger.accountID)
	assert.Equal(t, 2, resp.MergedLines)
}

func TestLoginSurvivesMergeFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	f.merger.err = errors.New("redis down")

	resp, err := f.svc.Login(context.Background(), LoginRequest{
		Identifier: "ada", Password: "correct horse", SessionID: "guest-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Zero(t, resp.MergedLines)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Identifier: "ada", Password: "correct horse"})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(f.jwt, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims.ID))
	active, err := f.sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, active)

	err = f.svc.Logout(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
