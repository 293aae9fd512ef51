package emailidentity

import (
	"time"

	"github.com/google/uuid"
)

// VerifiedSentinel replaces the verification key once it has been consumed.
// A record carrying the sentinel has no live token.
const VerifiedSentinel = "ALREADY_VERIFIED"

// UserEmail represents one email address, optionally bound to an account.
type UserEmail struct {
	ID              uuid.UUID
	UserID          uuid.NullUUID
	Email           string
	Verified        bool
	Default         bool
	VerificationKey string
	KeyCreatedAt    time.Time
}

// KeyExpired reports whether the record's verification key can no longer be
// used: either it was already consumed, or it is older than the window.
func (e UserEmail) KeyExpired(window time.Duration, now time.Time) bool {
	return e.VerificationKey == VerifiedSentinel || !e.KeyCreatedAt.Add(window).After(now)
}

// Account represents an account record in the account directory. Its Email
// field mirrors the email of the account's current default UserEmail.
type Account struct {
	ID        uuid.UUID
	Username  string
	FirstName string
	Email     string
	Password  []byte
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SweepResult reports what a retention sweep removed.
type SweepResult struct {
	Emails   int64
	Accounts int64
}
