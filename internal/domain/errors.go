package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")

	// ErrAlreadyEntitled is returned when a paid account asks for another checkout.
	ErrAlreadyEntitled = errors.New("subscription already active")

	// ErrStoreUnavailable wraps failures of the shared key-value store.
	// Callers translate it into a service-unavailable response.
	ErrStoreUnavailable = errors.New("key-value store unavailable")

	// ErrInvalidRateLimitConfig is a programming error: a rule names an
	// identifier kind the limiter does not know.
	ErrInvalidRateLimitConfig = errors.New("invalid rate limit configuration")

	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrEventInFlight means another delivery of the same event currently
	// holds the processing claim.
	ErrEventInFlight = errors.New("event is being processed")

	ErrPaymentProvider = errors.New("payment provider error")
)
