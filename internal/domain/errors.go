package domain

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidID         = errors.New("invalid order id")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrPublishFailed     = errors.New("event publish failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)
