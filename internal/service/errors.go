package service

import "errors"

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrConfiguration       = errors.New("platform app credentials are not configured")
	ErrInvalidState        = errors.New("invalid or expired state")
	ErrAuthExpired         = errors.New("authentication expired, account needs reconnection")
)
