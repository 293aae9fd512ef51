package login

import "errors"

var (
	// ErrInvalidCredentials is returned for every authentication failure.
	// Unknown identifier, unverified email, inactive account, and wrong
	// password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
