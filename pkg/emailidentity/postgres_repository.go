package emailidentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresEmailIdentityRepository implements EmailIdentityRepository using PostgreSQL
type PostgresEmailIdentityRepository struct {
	db *pgxpool.Pool
}

// NewPostgresEmailIdentityRepository creates a new PostgreSQL-based repository
func NewPostgresEmailIdentityRepository(db *pgxpool.Pool) *PostgresEmailIdentityRepository {
	return &PostgresEmailIdentityRepository{db: db}
}

const userEmailColumns = "id, user_id, email, verified, is_default, verification_key, key_created_at"

func scanUserEmail(row pgx.Row) (UserEmail, error) {
	var e UserEmail
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Email,
		&e.Verified,
		&e.Default,
		&e.VerificationKey,
		&e.KeyCreatedAt,
	)
	return e, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUnverified inserts a new unverified email record
func (r *PostgresEmailIdentityRepository) CreateUnverified(ctx context.Context, email string, userID uuid.NullUUID, key string) (UserEmail, error) {
	query := `
		INSERT INTO user_emails (id, user_id, email, verified, is_default, verification_key, key_created_at)
		VALUES ($1, $2, $3, FALSE, $4, $5, NOW() AT TIME ZONE 'UTC')
		RETURNING ` + userEmailColumns

	isDefault := !userID.Valid
	e, err := scanUserEmail(r.db.QueryRow(ctx, query, uuid.New(), userID, email, isDefault, key))
	if err != nil {
		if isUniqueViolation(err) {
			return UserEmail{}, ErrDuplicateEmail
		}
		return UserEmail{}, fmt.Errorf("failed to create email record: %w", err)
	}
	return e, nil
}

// GetByID retrieves an email record by ID
func (r *PostgresEmailIdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (UserEmail, error) {
	query := `SELECT ` + userEmailColumns + ` FROM user_emails WHERE id = $1`

	e, err := scanUserEmail(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserEmail{}, ErrEmailNotFound
		}
		return UserEmail{}, err
	}
	return e, nil
}

// GetByEmail retrieves an email record by address, case-insensitively
func (r *PostgresEmailIdentityRepository) GetByEmail(ctx context.Context, email string) (UserEmail, error) {
	query := `SELECT ` + userEmailColumns + ` FROM user_emails WHERE LOWER(email) = LOWER($1)`

	e, err := scanUserEmail(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserEmail{}, ErrUnknownEmail
		}
		return UserEmail{}, err
	}
	return e, nil
}

// GetByKey retrieves an email record by its verification key
func (r *PostgresEmailIdentityRepository) GetByKey(ctx context.Context, key string) (UserEmail, error) {
	query := `SELECT ` + userEmailColumns + ` FROM user_emails WHERE verification_key = $1 AND verification_key <> $2`

	e, err := scanUserEmail(r.db.QueryRow(ctx, query, key, VerifiedSentinel))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserEmail{}, ErrTokenNotFound
		}
		return UserEmail{}, err
	}
	return e, nil
}

// ListByUser retrieves all email records owned by a user
func (r *PostgresEmailIdentityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]UserEmail, error) {
	query := `SELECT ` + userEmailColumns + ` FROM user_emails WHERE user_id = $1`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []UserEmail
	for rows.Next() {
		e, err := scanUserEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// BindAccount attaches an email record to an account
func (r *PostgresEmailIdentityRepository) BindAccount(ctx context.Context, emailID, userID uuid.UUID) error {
	query := `UPDATE user_emails SET user_id = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, emailID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// Verify atomically consumes a live verification key and marks the record
// verified. The predicate and the write happen in one statement, so of any
// number of concurrent calls with the same key exactly one succeeds.
func (r *PostgresEmailIdentityRepository) Verify(ctx context.Context, key string, cutoff time.Time) (UserEmail, error) {
	query := `
		UPDATE user_emails
		SET verified = TRUE, verification_key = $3
		WHERE verification_key = $1
		AND verification_key <> $3
		AND key_created_at > $2
		RETURNING ` + userEmailColumns

	e, err := scanUserEmail(r.db.QueryRow(ctx, query, key, cutoff, VerifiedSentinel))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserEmail{}, ErrTokenNotFound
		}
		return UserEmail{}, err
	}
	return e, nil
}

// ConsumeKey atomically invalidates a live key without changing the verified
// flag. Used by the password reset flow.
func (r *PostgresEmailIdentityRepository) ConsumeKey(ctx context.Context, key string, cutoff time.Time) (UserEmail, error) {
	query := `
		UPDATE user_emails
		SET verification_key = $3
		WHERE verification_key = $1
		AND verification_key <> $3
		AND key_created_at > $2
		RETURNING ` + userEmailColumns

	e, err := scanUserEmail(r.db.QueryRow(ctx, query, key, cutoff, VerifiedSentinel))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserEmail{}, ErrTokenNotFound
		}
		return UserEmail{}, err
	}
	return e, nil
}

// Rekey replaces the verification key and resets its creation time
func (r *PostgresEmailIdentityRepository) Rekey(ctx context.Context, id uuid.UUID, newKey string, now time.Time) error {
	query := `UPDATE user_emails SET verification_key = $2, key_created_at = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, newKey, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// SetDefault makes the target the user's only default email and mirrors the
// address onto the account record, all in one transaction. The account row is
// locked first so concurrent default switches for one user serialize.
func (r *PostgresEmailIdentityRepository) SetDefault(ctx context.Context, userID, emailID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, userID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}

	_, err = tx.Exec(ctx, `UPDATE user_emails SET is_default = FALSE WHERE user_id = $1 AND id <> $2 AND is_default`, userID, emailID)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE user_emails SET is_default = TRUE WHERE id = $2 AND user_id = $1`, userID, emailID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts
		SET email = (SELECT email FROM user_emails WHERE id = $2),
		    updated_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1`, userID, emailID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes an email record
func (r *PostgresEmailIdentityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_emails WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// DeleteOtherEmails removes every email a user owns except the given one
func (r *PostgresEmailIdentityRepository) DeleteOtherEmails(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_emails WHERE user_id = $1 AND id <> $2`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteNonDefault removes every non-default email a user owns
func (r *PostgresEmailIdentityRepository) DeleteNonDefault(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_emails WHERE user_id = $1 AND NOT is_default`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredUnverified bulk-deletes stale unverified emails, then removes
// owning accounts left with zero emails that were never activated. The cutoff
// is evaluated once for the whole sweep.
func (r *PostgresEmailIdentityRepository) DeleteExpiredUnverified(ctx context.Context, cutoff time.Time) (SweepResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM user_emails
		WHERE verified = FALSE AND key_created_at <= $1
		RETURNING user_id`, cutoff)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	affected := make(map[uuid.UUID]bool)
	for rows.Next() {
		var userID uuid.NullUUID
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return SweepResult{}, err
		}
		result.Emails++
		if userID.Valid {
			affected[userID.UUID] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SweepResult{}, err
	}

	if len(affected) > 0 {
		userIDs := make([]uuid.UUID, 0, len(affected))
		for id := range affected {
			userIDs = append(userIDs, id)
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM accounts
			WHERE id = ANY($1)
			AND active = FALSE
			AND NOT EXISTS (SELECT 1 FROM user_emails WHERE user_id = accounts.id)`, userIDs)
		if err != nil {
			return SweepResult{}, err
		}
		result.Accounts = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return SweepResult{}, err
	}
	return result, nil
}

// Empty usernames are stored as NULL so the unique constraint only applies
// to real values.
const accountColumns = "id, COALESCE(username, ''), first_name, email, password, active, created_at, updated_at"

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.FirstName,
		&a.Email,
		&a.Password,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// CreateAccount inserts a new account record
func (r *PostgresEmailIdentityRepository) CreateAccount(ctx context.Context, account Account) (Account, error) {
	query := `
		INSERT INTO accounts (id, username, first_name, email, password, active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NOW() AT TIME ZONE 'UTC', NOW() AT TIME ZONE 'UTC')
		RETURNING ` + accountColumns

	id := account.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	a, err := scanAccount(r.db.QueryRow(ctx, query, id, account.Username, account.FirstName, account.Email, account.Password, account.Active))
	if err != nil {
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

// GetAccountByID retrieves an account by ID
func (r *PostgresEmailIdentityRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// GetAccountByUsername retrieves an account by username
func (r *PostgresEmailIdentityRepository) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// ActivateAccount marks an account active
func (r *PostgresEmailIdentityRepository) ActivateAccount(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts SET active = TRUE, updated_at = NOW() AT TIME ZONE 'UTC' WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetPassword stores a new credential hash for an account
func (r *PostgresEmailIdentityRepository) SetPassword(ctx context.Context, id uuid.UUID, hash []byte) error {
	query := `UPDATE accounts SET password = $2, updated_at = NOW() AT TIME ZONE 'UTC' WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account record
func (r *PostgresEmailIdentityRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CountEmailsByUser counts how many email records a user owns
func (r *PostgresEmailIdentityRepository) CountEmailsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_emails WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
