package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mmp-tracker/internal/model"
	"mmp-tracker/pkg/apierror"
)

const bcryptCost = 12

type AuthService struct {
	users      UserStore
	tokens     TokenStore
	audit      *AuditService
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users UserStore, tokens TokenStore, audit *AuditService, jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		audit:      audit,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// BootstrapAdmin creates the first admin account on an empty user table. Without a
// configured password a random one is generated and logged once.
func (s *AuthService) BootstrapAdmin(ctx context.Context, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		buf := make([]byte, 12)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		password = base64.RawURLEncoding.EncodeToString(buf)
		slog.Warn("BOOTSTRAP_ADMIN_PASSWORD not set; generated admin password", "username", "admin", "password", password)
	}

	_, err = s.createUser(ctx, "admin", password, model.RoleAdmin, "")
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return nil
	}
	if err == nil {
		slog.Info("bootstrap admin created", "username", "admin")
	}
	return err
}

func (s *AuthService) Login(ctx context.Context, ip string, username string, password string) (model.TokenPair, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, err
		}
		s.recordLogin(ctx, model.AuditActor{Username: username, IP: ip}, model.AuditStatusFailed, "unknown user")
		return model.TokenPair{}, unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordLogin(ctx, userActor(user, ip), model.AuditStatusFailed, "wrong password")
		return model.TokenPair{}, unauthorized("invalid credentials")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return model.TokenPair{}, err
	}
	s.recordLogin(ctx, userActor(user, ip), model.AuditStatusSuccess, "")
	return pair, nil
}

func (s *AuthService) Register(ctx context.Context, actor model.AuditActor, req model.RegisterRequest) (model.AuthUser, error) {
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	role := strings.ToLower(strings.TrimSpace(req.Role))

	if username == "" || password == "" {
		return model.AuthUser{}, apierror.BadRequest("username and password are required", "")
	}
	if role == "" {
		role = model.RoleDataCollector
	}
	if !model.ValidRole(role) {
		return model.AuthUser{}, apierror.BadRequest("invalid role", role)
	}
	hub := strings.TrimSpace(req.Hub)
	if role == model.RoleFOM && hub == "" {
		return model.AuthUser{}, apierror.BadRequest("hub is required for field operation managers", "")
	}

	user, err := s.createUser(ctx, username, password, role, hub)
	if err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.AuthUser{}, apierror.New("ALREADY_EXISTS", "username already exists", username, http.StatusConflict)
		}
		return model.AuthUser{}, err
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:      "register",
		Category:    CategoryAuth,
		Description: "Registered user " + user.Username + " as " + user.Role,
		Actor:       actor,
		Resource:    user.ID,
	})
	return authUser(user), nil
}

// Refresh rotates the token pair. The presented refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.ValidateToken(refreshToken, "refresh")
	if err != nil {
		return model.TokenPair{}, err
	}

	ownerID, err := s.tokens.Validate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrTokenExpired) {
			return model.TokenPair{}, unauthorized("refresh token is invalid")
		}
		return model.TokenPair{}, err
	}
	if ownerID != claims.UserID {
		return model.TokenPair{}, unauthorized("refresh token is invalid")
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, unauthorized("user not found")
		}
		return model.TokenPair{}, err
	}
	return s.issueTokenPair(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// PruneTokens removes expired refresh tokens.
func (s *AuthService) PruneTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanExpired(ctx)
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, unauthorized("invalid token signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, unauthorized("invalid token")
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, unauthorized("invalid token claims")
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, unauthorized("invalid token type")
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Username, _ = claimsMap["username"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.Hub, _ = claimsMap["hub"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, unauthorized("invalid token subject")
	}

	return claims, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.AuthUser{}, apierror.NotFound("user not found", userID)
		}
		return model.AuthUser{}, err
	}
	return authUser(user), nil
}

func (s *AuthService) ListUsers(ctx context.Context) (model.AuthUserList, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return model.AuthUserList{}, err
	}
	return model.AuthUserList{Users: users}, nil
}

func (s *AuthService) createUser(ctx context.Context, username, password, role, hub string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Hub:          hub,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user model.User) (model.TokenPair, error) {
	now := s.now()

	accessToken, err := s.signToken(s.claims(user, "access", now, s.accessTTL))
	if err != nil {
		return model.TokenPair{}, err
	}
	refreshToken, err := s.signToken(s.claims(user, "refresh", now, s.refreshTTL))
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, refreshToken, user.ID, now.Add(s.refreshTTL)); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         authUser(user),
	}, nil
}

func (s *AuthService) claims(user model.User, typ string, now time.Time, ttl time.Duration) jwt.MapClaims {
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"typ":      typ,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	if user.Hub != "" {
		claims["hub"] = user.Hub
	}
	return claims
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) recordLogin(ctx context.Context, actor model.AuditActor, status, reason string) {
	s.audit.Record(ctx, model.AuditEntry{
		Action:      "login",
		Category:    CategoryAuth,
		Description: "Login by " + actor.Username,
		Actor:       actor,
		Status:      status,
		Error:       reason,
	})
}

func userActor(u model.User, ip string) model.AuditActor {
	return model.AuditActor{UserID: u.ID, Username: u.Username, Role: u.Role, IP: ip}
}

func authUser(u model.User) model.AuthUser {
	return model.AuthUser{ID: u.ID, Username: u.Username, Role: u.Role, Hub: u.Hub}
}

func unauthorized(message string) error {
	return apierror.New("UNAUTHORIZED", message, "", http.StatusUnauthorized)
}
