package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateTick  = errors.New("duplicate tick")
	ErrPriceZero      = errors.New("american odds of zero are undefined")
	ErrResourceLost   = errors.New("resource connection lost")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrBatchCancelled = errors.New("batch cancelled")
	ErrLogClosed      = errors.New("tick log closed")
	ErrFeedClosed     = errors.New("feed closed")
)
