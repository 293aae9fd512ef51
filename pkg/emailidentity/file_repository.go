package emailidentity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileEmailIdentityRepository implements EmailIdentityRepository using
// file-based storage. Intended for development and testing.
type FileEmailIdentityRepository struct {
	dataDir  string
	emails   map[uuid.UUID]*UserEmail // Key: email ID
	accounts map[uuid.UUID]*Account   // Key: account ID
	mutex    sync.RWMutex
}

// emailIdentityData represents the structure of data stored in the JSON file
type emailIdentityData struct {
	Emails   []*UserEmail `json:"emails"`
	Accounts []*Account   `json:"accounts"`
}

// NewFileEmailIdentityRepository creates a new file-based repository
func NewFileEmailIdentityRepository(dataDir string) (*FileEmailIdentityRepository, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileEmailIdentityRepository{
		dataDir:  dataDir,
		emails:   make(map[uuid.UUID]*UserEmail),
		accounts: make(map[uuid.UUID]*Account),
	}

	// Load existing data
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// CreateUnverified inserts a new unverified email record
func (r *FileEmailIdentityRepository) CreateUnverified(ctx context.Context, email string, userID uuid.NullUUID, key string) (UserEmail, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, e := range r.emails {
		if strings.EqualFold(e.Email, email) {
			return UserEmail{}, ErrDuplicateEmail
		}
	}

	e := &UserEmail{
		ID:              uuid.New(),
		UserID:          userID,
		Email:           email,
		Verified:        false,
		Default:         !userID.Valid,
		VerificationKey: key,
		KeyCreatedAt:    time.Now().UTC(),
	}

	r.emails[e.ID] = e

	if err := r.save(); err != nil {
		delete(r.emails, e.ID)
		return UserEmail{}, fmt.Errorf("failed to save: %w", err)
	}

	return *e, nil
}

// GetByID retrieves an email record by ID
func (r *FileEmailIdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (UserEmail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, ok := r.emails[id]
	if !ok {
		return UserEmail{}, ErrEmailNotFound
	}
	return *e, nil
}

// GetByEmail retrieves an email record by address, case-insensitively
func (r *FileEmailIdentityRepository) GetByEmail(ctx context.Context, email string) (UserEmail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, e := range r.emails {
		if strings.EqualFold(e.Email, email) {
			return *e, nil
		}
	}
	return UserEmail{}, ErrUnknownEmail
}

// GetByKey retrieves an email record by its verification key
func (r *FileEmailIdentityRepository) GetByKey(ctx context.Context, key string) (UserEmail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, ok := r.findByKey(key)
	if !ok {
		return UserEmail{}, ErrTokenNotFound
	}
	return *e, nil
}

// ListByUser retrieves all email records owned by a user
func (r *FileEmailIdentityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]UserEmail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var emails []UserEmail
	for _, e := range r.emails {
		if e.UserID.Valid && e.UserID.UUID == userID {
			emails = append(emails, *e)
		}
	}
	return emails, nil
}

// BindAccount attaches an email record to an account
func (r *FileEmailIdentityRepository) BindAccount(ctx context.Context, emailID, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.emails[emailID]
	if !ok {
		return ErrEmailNotFound
	}

	previous := e.UserID
	e.UserID = uuid.NullUUID{UUID: userID, Valid: true}

	if err := r.save(); err != nil {
		e.UserID = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// Verify atomically consumes a live verification key and marks the record
// verified. The whole check-and-set runs under the write lock, so of any
// number of concurrent calls with the same key exactly one succeeds.
func (r *FileEmailIdentityRepository) Verify(ctx context.Context, key string, cutoff time.Time) (UserEmail, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.findByKey(key)
	if !ok || !e.KeyCreatedAt.After(cutoff) {
		return UserEmail{}, ErrTokenNotFound
	}

	prevVerified, prevKey := e.Verified, e.VerificationKey
	e.Verified = true
	e.VerificationKey = VerifiedSentinel

	if err := r.save(); err != nil {
		e.Verified, e.VerificationKey = prevVerified, prevKey
		return UserEmail{}, fmt.Errorf("failed to save: %w", err)
	}
	return *e, nil
}

// ConsumeKey atomically invalidates a live key without changing the verified flag
func (r *FileEmailIdentityRepository) ConsumeKey(ctx context.Context, key string, cutoff time.Time) (UserEmail, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.findByKey(key)
	if !ok || !e.KeyCreatedAt.After(cutoff) {
		return UserEmail{}, ErrTokenNotFound
	}

	prevKey := e.VerificationKey
	e.VerificationKey = VerifiedSentinel

	if err := r.save(); err != nil {
		e.VerificationKey = prevKey
		return UserEmail{}, fmt.Errorf("failed to save: %w", err)
	}
	return *e, nil
}

// Rekey replaces the verification key and resets its creation time
func (r *FileEmailIdentityRepository) Rekey(ctx context.Context, id uuid.UUID, newKey string, now time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.emails[id]
	if !ok {
		return ErrEmailNotFound
	}

	prevKey, prevCreated := e.VerificationKey, e.KeyCreatedAt
	e.VerificationKey = newKey
	e.KeyCreatedAt = now

	if err := r.save(); err != nil {
		e.VerificationKey, e.KeyCreatedAt = prevKey, prevCreated
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// SetDefault makes the target the user's only default email and mirrors the
// address onto the account record
func (r *FileEmailIdentityRepository) SetDefault(ctx context.Context, userID, emailID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}

	target, ok := r.emails[emailID]
	if !ok || !target.UserID.Valid || target.UserID.UUID != userID {
		return ErrEmailNotFound
	}

	for _, e := range r.emails {
		if e.UserID.Valid && e.UserID.UUID == userID {
			e.Default = e.ID == emailID
		}
	}
	a.Email = target.Email
	a.UpdatedAt = time.Now().UTC()

	if err := r.save(); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// Delete removes an email record
func (r *FileEmailIdentityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.emails[id]
	if !ok {
		return ErrEmailNotFound
	}

	delete(r.emails, id)

	if err := r.save(); err != nil {
		r.emails[id] = e
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// DeleteOtherEmails removes every email a user owns except the given one
func (r *FileEmailIdentityRepository) DeleteOtherEmails(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var deleted int64
	for id, e := range r.emails {
		if e.UserID.Valid && e.UserID.UUID == userID && id != keepID {
			delete(r.emails, id)
			deleted++
		}
	}

	if deleted > 0 {
		if err := r.save(); err != nil {
			return 0, fmt.Errorf("failed to save: %w", err)
		}
	}
	return deleted, nil
}

// DeleteNonDefault removes every non-default email a user owns
func (r *FileEmailIdentityRepository) DeleteNonDefault(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var deleted int64
	for id, e := range r.emails {
		if e.UserID.Valid && e.UserID.UUID == userID && !e.Default {
			delete(r.emails, id)
			deleted++
		}
	}

	if deleted > 0 {
		if err := r.save(); err != nil {
			return 0, fmt.Errorf("failed to save: %w", err)
		}
	}
	return deleted, nil
}

// DeleteExpiredUnverified bulk-deletes stale unverified emails, then removes
// owning accounts left with zero emails that were never activated
func (r *FileEmailIdentityRepository) DeleteExpiredUnverified(ctx context.Context, cutoff time.Time) (SweepResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var result SweepResult
	affected := make(map[uuid.UUID]bool)
	for id, e := range r.emails {
		if !e.Verified && !e.KeyCreatedAt.After(cutoff) {
			if e.UserID.Valid {
				affected[e.UserID.UUID] = true
			}
			delete(r.emails, id)
			result.Emails++
		}
	}

	for userID := range affected {
		a, ok := r.accounts[userID]
		if !ok || a.Active {
			continue
		}
		remaining := false
		for _, e := range r.emails {
			if e.UserID.Valid && e.UserID.UUID == userID {
				remaining = true
				break
			}
		}
		if !remaining {
			delete(r.accounts, userID)
			result.Accounts++
		}
	}

	if result.Emails > 0 || result.Accounts > 0 {
		if err := r.save(); err != nil {
			return SweepResult{}, fmt.Errorf("failed to save: %w", err)
		}
	}
	return result, nil
}

// CreateAccount inserts a new account record
func (r *FileEmailIdentityRepository) CreateAccount(ctx context.Context, account Account) (Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	a := account
	r.accounts[a.ID] = &a

	if err := r.save(); err != nil {
		delete(r.accounts, a.ID)
		return Account{}, fmt.Errorf("failed to save: %w", err)
	}
	return a, nil
}

// GetAccountByID retrieves an account by ID
func (r *FileEmailIdentityRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

// GetAccountByUsername retrieves an account by username
func (r *FileEmailIdentityRepository) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, a := range r.accounts {
		if a.Username == username {
			return *a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

// ActivateAccount marks an account active
func (r *FileEmailIdentityRepository) ActivateAccount(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	prev := a.Active
	a.Active = true
	a.UpdatedAt = time.Now().UTC()

	if err := r.save(); err != nil {
		a.Active = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// SetPassword stores a new credential hash for an account
func (r *FileEmailIdentityRepository) SetPassword(ctx context.Context, id uuid.UUID, hash []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	prev := a.Password
	a.Password = hash
	a.UpdatedAt = time.Now().UTC()

	if err := r.save(); err != nil {
		a.Password = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// DeleteAccount removes an account record
func (r *FileEmailIdentityRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	delete(r.accounts, id)

	if err := r.save(); err != nil {
		r.accounts[id] = a
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// CountEmailsByUser counts how many email records a user owns
func (r *FileEmailIdentityRepository) CountEmailsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var count int64
	for _, e := range r.emails {
		if e.UserID.Valid && e.UserID.UUID == userID {
			count++
		}
	}
	return count, nil
}

// findByKey looks up a live (unconsumed) key. Caller must hold the lock.
func (r *FileEmailIdentityRepository) findByKey(key string) (*UserEmail, bool) {
	if key == VerifiedSentinel {
		return nil, false
	}
	for _, e := range r.emails {
		if e.VerificationKey == key {
			return e, true
		}
	}
	return nil, false
}

// load reads email identity data from file
func (r *FileEmailIdentityRepository) load() error {
	filePath := filepath.Join(r.dataDir, "email_identity.json")

	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No data file yet
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data emailIdentityData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	for _, e := range data.Emails {
		r.emails[e.ID] = e
	}
	for _, a := range data.Accounts {
		r.accounts[a.ID] = a
	}
	return nil
}

// save writes email identity data to file atomically
func (r *FileEmailIdentityRepository) save() error {
	// Convert maps to slices
	emails := make([]*UserEmail, 0, len(r.emails))
	for _, e := range r.emails {
		emails = append(emails, e)
	}

	accounts := make([]*Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		accounts = append(accounts, a)
	}

	data := emailIdentityData{
		Emails:   emails,
		Accounts: accounts,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, "email_identity.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, "email_identity.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
