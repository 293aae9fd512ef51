package login

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/simple-emailauth/pkg/emailidentity"
)

// BcryptCredentialStore stores bcrypt password hashes on account records. It
// implements emailidentity.CredentialStore.
type BcryptCredentialStore struct {
	repo emailidentity.EmailIdentityRepository
}

// NewBcryptCredentialStore creates a bcrypt-backed credential store
func NewBcryptCredentialStore(repo emailidentity.EmailIdentityRepository) *BcryptCredentialStore {
	return &BcryptCredentialStore{repo: repo}
}

// SetPassword hashes the password and stores it on the account
func (s *BcryptCredentialStore) SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, userID, hash)
}

// CheckPassword compares the password against the account's stored hash.
// Any mismatch or lookup failure reads as ErrInvalidCredentials.
func (s *BcryptCredentialStore) CheckPassword(ctx context.Context, userID uuid.UUID, password string) error {
	account, err := s.repo.GetAccountByID(ctx, userID)
	if err != nil {
		return ErrInvalidCredentials
	}

	match, err := CheckPasswordHash(password, account.Password)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}
