package model

import "errors"

var (
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrRefreshTokenMismatch = errors.New("refresh token does not match stored value")
)
