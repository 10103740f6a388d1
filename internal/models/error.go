package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrRateLimited        = errors.New("too many failed attempts, temporarily blocked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email address not verified")

	// Verification secret errors. Each is terminal for that secret;
	// the user must request a new one.
	ErrSecretInvalid     = errors.New("verification secret not recognized")
	ErrSecretExpired     = errors.New("verification secret expired")
	ErrSecretAlreadyUsed = errors.New("verification secret already used")

	// Transaction and fulfillment errors
	ErrUnknownTransaction = errors.New("transaction reference not recognized")
	ErrGatewayUnavailable = errors.New("unlock gateway unavailable")
	ErrUnknownPackage     = errors.New("package not configured")
	ErrUnknownModel       = errors.New("device model not configured")
	ErrInvalidTransition  = errors.New("invalid transaction state transition")
)
