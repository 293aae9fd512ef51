package emailidentity

import "errors"

var (
	// ErrDuplicateEmail is returned when the email address is already taken
	ErrDuplicateEmail = errors.New("email address already taken")

	// ErrUnknownEmail is returned when no record exists for an email address
	ErrUnknownEmail = errors.New("unknown email address")

	// ErrTokenNotFound is returned when a verification key is absent, expired,
	// or already consumed. The three cases are deliberately indistinguishable.
	ErrTokenNotFound = errors.New("verification key not found")

	// ErrNotVerified is returned when an operation requires a verified email
	ErrNotVerified = errors.New("email address not verified")

	// ErrAlreadyVerified is returned when resending verification for an
	// address that is already verified
	ErrAlreadyVerified = errors.New("email address already verified")

	// ErrLastVerifiedEmail is returned when deleting an email would leave the
	// account without a verified contact point
	ErrLastVerifiedEmail = errors.New("cannot delete the last verified email")

	// ErrEmailNotFound is returned when an email record does not exist or is
	// not owned by the calling user
	ErrEmailNotFound = errors.New("email record not found")

	// ErrAccountNotFound is returned when an account record does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidMode is returned when an operation is not available in the
	// configured email mode
	ErrInvalidMode = errors.New("operation not available in this email mode")
)
