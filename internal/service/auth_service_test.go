package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kerc-health/recordvault/internal/config"
	"github.com/kerc-health/recordvault/internal/domain"
	"github.com/kerc-health/recordvault/pkg/auth"
)

var _ UserRepository = (*mockUserRepo)(nil)

type mockUserRepo struct {
	GetByEmailFunc         func(ctx context.Context, email string) (*domain.User, error)
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateLoginAttemptFunc func(ctx context.Context, id uuid.UUID, success bool) error
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool) error {
	if m.UpdateLoginAttemptFunc != nil {
		return m.UpdateLoginAttemptFunc(ctx, id, success)
	}
	return nil
}

func testJWTManager() *auth.JWTManager {
	return auth.NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-at-least-32-chars-long-for-security",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "recordvault-test",
	})
}

func activeUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           testOwnerID,
		Email:        "owner@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleOwner,
		IsActive:     true,
	}
}

func TestLogin(t *testing.T) {
	user := activeUser(t, "correct-horse")
	var attemptSuccess *bool
	repo := &mockUserRepo{
		GetByEmailFunc: func(ctx context.Context, email string) (*domain.User, error) {
			return user, nil
		},
		UpdateLoginAttemptFunc: func(ctx context.Context, id uuid.UUID, success bool) error {
			attemptSuccess = &success
			return nil
		},
	}
	svc := NewAuthService(repo, testJWTManager(), newTestAudit(), zap.NewNop())

	pair, err := svc.Login(context.Background(), user.Email, "correct-horse", "10.0.0.1")

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	require.NotNil(t, attemptSuccess)
	assert.True(t, *attemptSuccess)
}

func TestLoginWrongPassword(t *testing.T) {
	user := activeUser(t, "correct-horse")
	repo := &mockUserRepo{
		GetByEmailFunc: func(ctx context.Context, email string) (*domain.User, error) {
			return user, nil
		},
	}
	svc := NewAuthService(repo, testJWTManager(), newTestAudit(), zap.NewNop())

	_, err := svc.Login(context.Background(), user.Email, "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, testJWTManager(), newTestAudit(), zap.NewNop())

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockedAccount(t *testing.T) {
	user := activeUser(t, "correct-horse")
	lockedUntil := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &lockedUntil
	repo := &mockUserRepo{
		GetByEmailFunc: func(ctx context.Context, email string) (*domain.User, error) {
			return user, nil
		},
	}
	svc := NewAuthService(repo, testJWTManager(), newTestAudit(), zap.NewNop())

	_, err := svc.Login(context.Background(), user.Email, "correct-horse", "")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "correct-horse")
	user.IsActive = false
	repo := &mockUserRepo{
		GetByEmailFunc: func(ctx context.Context, email string) (*domain.User, error) {
			return user, nil
		},
	}
	svc := NewAuthService(repo, testJWTManager(), newTestAudit(), zap.NewNop())

	_, err := svc.Login(context.Background(), user.Email, "correct-horse", "")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestRefreshToken(t *testing.T) {
	user := activeUser(t, "correct-horse")
	repo := &mockUserRepo{
		GetByEmailFunc: func(ctx context.Context, email string) (*domain.User, error) {
			return user, nil
		},
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			return user, nil
		},
	}
	svc := NewAuthService(repo, testJWTManager(), newTestAudit(), zap.NewNop())

	pair, err := svc.Login(context.Background(), user.Email, "correct-horse", "")
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token is not accepted on the refresh path.
	_, err = svc.RefreshToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
