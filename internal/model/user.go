package model

import (
	"strings"
	"time"
)

const (
	RoleAdmin          = "admin"
	RoleICT            = "ict"
	RoleFOM            = "fom"
	RoleFinancialAdmin = "financial_admin"
	RoleSupervisor     = "supervisor"
	RoleCoordinator    = "coordinator"
	RoleDataCollector  = "data_collector"
)

var Roles = []string{
	RoleAdmin,
	RoleICT,
	RoleFOM,
	RoleFinancialAdmin,
	RoleSupervisor,
	RoleCoordinator,
	RoleDataCollector,
}

func ValidRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, candidate := range Roles {
		if role == candidate {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Hub          string    `json:"hub,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AuthClaims struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Hub      string `json:"hub,omitempty"`
	Type     string `json:"typ"`
	TokenID  string `json:"jti"`
}

type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Hub      string `json:"hub,omitempty"`
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         AuthUser `json:"user"`
}

// Viewer identifies who is asking for data, for hub-restricted roles.
type Viewer struct {
	UserID string
	Role   string
	Hub    string
}

// HubRestricted reports whether the viewer only sees plans of their own hub.
func (v Viewer) HubRestricted() bool {
	return strings.EqualFold(v.Role, RoleFOM) && strings.TrimSpace(v.Hub) != ""
}

// CanSee reports whether a plan filed under hub is visible to the viewer.
func (v Viewer) CanSee(hub string) bool {
	return !v.HubRestricted() || strings.EqualFold(strings.TrimSpace(hub), strings.TrimSpace(v.Hub))
}
