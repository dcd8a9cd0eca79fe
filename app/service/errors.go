package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrValidation          = errors.New("validation failed")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrAlreadyResolved     = errors.New("payment already resolved")
	ErrAlreadyPurchased    = errors.New("course already purchased")
	ErrStorage             = errors.New("storage failure")
	ErrNotification        = errors.New("notification failed")
	ErrProviderUnsupported = errors.New("provider is not supported")
	ErrProviderFailed      = errors.New("payment provider request failed")
)
