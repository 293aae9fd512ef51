package emailidentity

import "github.com/google/uuid"

// EmailCreatedEvent is emitted when a new unverified email record is minted.
// The external layer uses it to drive follow-up work (welcome pages, audit).
type EmailCreatedEvent struct {
	EmailID    uuid.UUID
	UserID     uuid.NullUUID
	Email      string
	FirstEmail bool
}

// EmailVerifiedEvent is emitted when a verification key is successfully
// consumed.
type EmailVerifiedEvent struct {
	EmailID uuid.UUID
	UserID  uuid.NullUUID
	Email   string
	Default bool
}

// PasswordResetEvent is emitted when a reset key is consumed and the
// credential updated.
type PasswordResetEvent struct {
	EmailID uuid.UUID
	UserID  uuid.UUID
	Email   string
}
