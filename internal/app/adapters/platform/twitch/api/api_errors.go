package api

import "errors"

var (
	ErrNoCredentials = errors.New("twitch client credentials are not configured")
	ErrNotFound      = errors.New("not found")
)
