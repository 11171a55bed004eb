package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Record related errors
	ErrMMPNotFound    = errors.New("mmp file not found")
	ErrSiteNotFound   = errors.New("site entry not found")
	ErrPermitNotFound = errors.New("permit not found")
	ErrBudgetNotFound = errors.New("budget not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
