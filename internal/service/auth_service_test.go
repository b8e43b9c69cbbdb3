package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/quizforge/quizforge-backend/internal/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newAuthService() *service.AuthService {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
	return service.NewAuthService(cfg, storetest.NewUsers(), zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "s3cret", IsAdmin: true})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.True(t, user.IsAdmin)
	// The stored password is a hash, never the plaintext.
	require.NotEqual(t, "s3cret", user.Password)

	logged, token, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.IsAdmin)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "pw2"})
	require.ErrorIs(t, err, service.ErrUserExists)
}

func TestLoginFailures(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Login(ctx, model.LoginRequest{Username: "ghost", Password: "pw"})
	require.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "right"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, service.ErrInvalidPassword)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token + "x")
	require.Error(t, err)

	_, err = svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
}

type failingUsers struct{}

func (failingUsers) Create(context.Context, *model.User) error {
	return errors.New("connection reset")
}

func (failingUsers) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestAuthLogsStorageFailures(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: 4}
	svc := service.NewAuthService(cfg, failingUsers{}, zerolog.New(&buf))
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "s3cret"})
	require.Error(t, err)
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), "create user failed")
	require.Contains(t, buf.String(), `"username":"alice"`)

	buf.Reset()
	_, _, err = svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "s3cret"})
	require.Error(t, err)
	require.Contains(t, buf.String(), "fetch user failed")
	require.Contains(t, buf.String(), `"component":"auth"`)
}
