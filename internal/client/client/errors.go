package client

import "errors"

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBadRequest      = errors.New("request rejected by server")
	ErrInvalidResponse = errors.New("invalid server response")
)
