package domain

import "errors"

var (
	ErrNotFound        = errors.New("upload not found")
	ErrRejected        = errors.New("upload rejected")
	ErrInvalidToken    = errors.New("invalid upload token")
	ErrIntentUsed      = errors.New("upload intent already used")
	ErrAlreadyResolved = errors.New("upload already resolved")
	ErrNotReady        = errors.New("upload not ready")
)
