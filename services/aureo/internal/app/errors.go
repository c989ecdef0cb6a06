package app

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and must not reveal whether the username exists.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	ErrNotFound          = errors.New("not found")
	ErrStoreNotFound     = errors.New("store not found")
	ErrStoreTypeMismatch = errors.New("store type does not match file type")
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrInvalidState      = errors.New("activity is not in a state that allows this operation")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameTaken     = errors.New("username already exists")
	ErrForbidden         = errors.New("forbidden")
)
