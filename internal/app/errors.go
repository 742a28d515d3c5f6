package app

import "errors"

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords,
	// so login failures do not enable account enumeration.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthorized is returned when a bearer token is missing, invalid,
	// or does not belong to the claimed user.
	ErrUnauthorized = errors.New("unauthorized")

	ErrUsernameTaken = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupExists   = errors.New("group already exists")
	ErrGroupNotFound = errors.New("group not found")
)
