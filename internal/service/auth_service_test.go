package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type fakeAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedIDs    []string
	revokedUsers  []string
	lastLoginIDs  []string
	auditLogs     []models.AuditLog
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	f.lastLoginIDs = append(f.lastLoginIDs, id)
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if f.refreshTokens == nil {
		f.refreshTokens = make(map[string]*models.RefreshToken)
	}
	if token.ID == "" {
		token.ID = "rt-1"
	}
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := f.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	f.revokedIDs = append(f.revokedIDs, id)
	return nil
}

func (f *fakeAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, *log)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(repo *fakeAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "studyspace-admin-api",
	})
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "owner@studyspace.test", PasswordHash: hashOf(t, "secret1"), FullName: "Owner", Role: models.RoleAdmin, Active: true},
	}}
	svc := newAuthFixture(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@studyspace.test", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Contains(t, repo.lastLoginIDs, "user-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "owner@studyspace.test", PasswordHash: hashOf(t, "secret1"), Active: true},
	}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@studyspace.test", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "owner@studyspace.test", PasswordHash: hashOf(t, "secret1"), Active: false},
	}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "owner@studyspace.test", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := &fakeAuthRepo{
		users: map[string]*models.User{
			"user-1": {ID: "user-1", Email: "owner@studyspace.test", Role: models.RoleAdmin, Active: true},
		},
		refreshTokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt-old", UserID: "user-1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthFixture(repo)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revokedIDs, "rt-old")
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &fakeAuthRepo{
		users: map[string]*models.User{
			"user-1": {ID: "user-1", Active: true},
		},
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-stale", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	svc := newAuthFixture(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "owner@studyspace.test", PasswordHash: hashOf(t, "oldpass"), Active: true},
	}}
	svc := newAuthFixture(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass1"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["user-1"].PasswordHash), []byte("newpass1")))
	assert.Contains(t, repo.revokedUsers, "user-1")
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", PasswordHash: hashOf(t, "oldpass"), Active: true},
	}}
	svc := newAuthFixture(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpass1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	svc := newAuthFixture(&fakeAuthRepo{})

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
