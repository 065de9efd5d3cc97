package models

import "errors"

var (
	ErrSyncJobNotFound   = errors.New("sync job not found")
	ErrInvalidTransition = errors.New("invalid sync job transition")
)
