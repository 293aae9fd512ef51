package emailidentity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EmailIdentityRepository defines storage operations for UserEmail records and
// the account directory they are bound to. Every operation that reads then
// writes is atomic with respect to concurrent callers: Verify and ConsumeKey
// are single conditional updates, SetDefault runs its whole cascade in one
// transaction.
//
// Email comparison is case-insensitive; stored values keep their original
// case.
type EmailIdentityRepository interface {
	// Email operations
	CreateUnverified(ctx context.Context, email string, userID uuid.NullUUID, key string) (UserEmail, error)
	GetByID(ctx context.Context, id uuid.UUID) (UserEmail, error)
	GetByEmail(ctx context.Context, email string) (UserEmail, error)
	GetByKey(ctx context.Context, key string) (UserEmail, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]UserEmail, error)
	BindAccount(ctx context.Context, emailID, userID uuid.UUID) error

	// Verify consumes a live key: it matches a record whose key equals the
	// argument, is not the consumed sentinel, and was minted after cutoff,
	// then marks the record verified in the same statement. At most one of
	// any number of concurrent calls with the same key succeeds; the rest
	// get ErrTokenNotFound. Nothing is mutated on the failure path.
	Verify(ctx context.Context, key string, cutoff time.Time) (UserEmail, error)

	// ConsumeKey invalidates a live key without touching the verified flag.
	// Same atomicity and cutoff rules as Verify. Used by password reset.
	ConsumeKey(ctx context.Context, key string, cutoff time.Time) (UserEmail, error)

	// Rekey mints a new key for the record and resets its creation time.
	Rekey(ctx context.Context, id uuid.UUID, newKey string, now time.Time) error

	// SetDefault clears the default flag on the user's other emails, sets it
	// on the target, and mirrors the address onto the account record, all in
	// one transaction.
	SetDefault(ctx context.Context, userID, emailID uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOtherEmails(ctx context.Context, userID, keepID uuid.UUID) (int64, error)
	DeleteNonDefault(ctx context.Context, userID uuid.UUID) (int64, error)

	// DeleteExpiredUnverified bulk-deletes unverified emails whose key was
	// minted at or before cutoff, then deletes owning accounts that are left
	// with zero emails and were never activated.
	DeleteExpiredUnverified(ctx context.Context, cutoff time.Time) (SweepResult, error)

	// Account directory operations
	CreateAccount(ctx context.Context, account Account) (Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetAccountByUsername(ctx context.Context, username string) (Account, error)
	ActivateAccount(ctx context.Context, id uuid.UUID) error
	SetPassword(ctx context.Context, id uuid.UUID, hash []byte) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	CountEmailsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
