package client

import "errors"

var (
	ErrUnavailable        = errors.New("server unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAuthRequired       = errors.New("this link requires you to log in")
	ErrInvalidCredentials = errors.New("wrong link password or username")
	ErrNotFound           = errors.New("link not found")
	ErrForbidden          = errors.New("access to this link is not allowed")
	ErrExpired            = errors.New("link expired")
	ErrLimitReached       = errors.New("link access limit reached")
)
