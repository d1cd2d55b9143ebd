package service

import "errors"

// Business errors. Handlers map these onto HTTP statuses instead of
// leaking store internals to clients.
var (
	ErrCartEmpty          = errors.New("cart is empty")
	ErrCourseUnavailable  = errors.New("course not available for purchase")
	ErrSessionMismatch    = errors.New("session does not belong to course")
	ErrInsufficientSeats  = errors.New("insufficient seats")
	ErrOrderNotPayable    = errors.New("order is not payable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrLinkRevoked        = errors.New("download link revoked")
	ErrEnrollmentInactive = errors.New("enrollment is not active")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCartOwnership      = errors.New("cart does not belong to caller")
)
