package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/repository"
)

const testSecret = "test-secret-with-enough-length"

func newAuthFixture(t *testing.T) (*AuthService, *repository.MockUserRepository, *repository.MockTokenRepository) {
	t.Helper()
	users := new(repository.MockUserRepository)
	tokens := new(repository.MockTokenRepository)
	auditRepo := new(repository.MockAuditRepository)
	auditRepo.On("Log", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewAuthService(users, tokens, NewAuditService(auditRepo, nil), testSecret, 15*time.Minute, time.Hour)
	return svc, users, tokens
}

func fomUser(t *testing.T) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return model.User{ID: "u-2", Username: "huda", PasswordHash: string(hash), Role: model.RoleFOM, Hub: "Kassala"}
}

func TestAuthService_Login(t *testing.T) {
	t.Run("issues tokens carrying role and hub", func(t *testing.T) {
		svc, users, tokens := newAuthFixture(t)
		users.On("FindByUsername", mock.Anything, "huda").Return(fomUser(t), nil)
		tokens.On("Store", mock.Anything, mock.AnythingOfType("string"), "u-2", mock.AnythingOfType("time.Time")).Return(nil)

		pair, err := svc.Login(context.Background(), "10.0.0.2", " huda ", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.Equal(t, int64(900), pair.ExpiresIn)
		assert.Equal(t, "Kassala", pair.User.Hub)

		claims, err := svc.ValidateToken(pair.AccessToken, "access")
		require.NoError(t, err)
		assert.Equal(t, "u-2", claims.UserID)
		assert.Equal(t, model.RoleFOM, claims.Role)
		assert.Equal(t, "Kassala", claims.Hub)

		_, err = svc.ValidateToken(pair.AccessToken, "refresh")
		requireStatus(t, err, http.StatusUnauthorized)
		tokens.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, users, tokens := newAuthFixture(t)
		users.On("FindByUsername", mock.Anything, "huda").Return(fomUser(t), nil)

		_, err := svc.Login(context.Background(), "", "huda", "guess")
		requireStatus(t, err, http.StatusUnauthorized)
		tokens.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("FindByUsername", mock.Anything, "ghost").Return(model.User{}, model.ErrUserNotFound)

		_, err := svc.Login(context.Background(), "", "ghost", "x")
		requireStatus(t, err, http.StatusUnauthorized)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	svc, users, tokens := newAuthFixture(t)
	user := fomUser(t)
	users.On("FindByUsername", mock.Anything, "huda").Return(user, nil)
	users.On("FindByID", mock.Anything, "u-2").Return(user, nil)
	tokens.On("Store", mock.Anything, mock.Anything, "u-2", mock.Anything).Return(nil)

	pair, err := svc.Login(context.Background(), "", "huda", "s3cret")
	require.NoError(t, err)

	tokens.On("Validate", mock.Anything, pair.RefreshToken).Return("u-2", nil).Once()
	tokens.On("Revoke", mock.Anything, pair.RefreshToken).Return(nil).Once()

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	tokens.On("Validate", mock.Anything, pair.RefreshToken).Return("", model.ErrTokenNotFound).Once()
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthService_Register(t *testing.T) {
	admin := model.AuditActor{UserID: "u-1", Username: "admin", Role: model.RoleAdmin}

	t.Run("creates a user", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Username == "sami" && u.Role == model.RoleFinancialAdmin && u.PasswordHash != "pw"
		})).Return(nil)

		created, err := svc.Register(context.Background(), admin, model.RegisterRequest{Username: "sami", Password: "pw", Role: "Financial_Admin"})
		require.NoError(t, err)
		assert.Equal(t, model.RoleFinancialAdmin, created.Role)
		users.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)

		_, err := svc.Register(context.Background(), admin, model.RegisterRequest{Username: "x", Password: "pw", Role: "editor"})
		requireStatus(t, err, http.StatusBadRequest)

		_, err = svc.Register(context.Background(), admin, model.RegisterRequest{Username: "x", Password: "pw", Role: "fom"})
		requireStatus(t, err, http.StatusBadRequest)

		_, err = svc.Register(context.Background(), admin, model.RegisterRequest{Username: "", Password: "pw"})
		requireStatus(t, err, http.StatusBadRequest)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("Create", mock.Anything, mock.Anything).Return(model.ErrUserAlreadyExists)

		_, err := svc.Register(context.Background(), admin, model.RegisterRequest{Username: "huda", Password: "pw"})
		requireStatus(t, err, http.StatusConflict)
	})
}

func TestAuthService_BootstrapAdmin(t *testing.T) {
	t.Run("creates admin on empty table", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("Count", mock.Anything).Return(0, nil)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Username == "admin" && u.Role == model.RoleAdmin &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("first-boot")) == nil
		})).Return(nil)

		require.NoError(t, svc.BootstrapAdmin(context.Background(), "first-boot"))
		users.AssertExpectations(t)
	})

	t.Run("leaves existing users alone", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		users.On("Count", mock.Anything).Return(3, nil)

		require.NoError(t, svc.BootstrapAdmin(context.Background(), ""))
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
