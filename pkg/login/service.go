package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-emailauth/pkg/emailidentity"
)

// LoginService authenticates accounts through their email addresses. A
// legacy username path covers accounts created before email records existed.
type LoginService struct {
	repo emailidentity.EmailIdentityRepository
}

// NewLoginService creates a new login service
func NewLoginService(repo emailidentity.EmailIdentityRepository) *LoginService {
	return &LoginService{repo: repo}
}

// Authenticate checks the identifier and password and returns the matching
// account. The identifier is an email address; a plain username is accepted
// only for accounts that own no email records at all. Every failure reads as
// ErrInvalidCredentials.
func (s *LoginService) Authenticate(ctx context.Context, identifier, password string) (emailidentity.Account, error) {
	account, err := s.resolveAccount(ctx, identifier)
	if err != nil {
		return emailidentity.Account{}, err
	}

	if !account.Active {
		slog.Warn("Login attempt on inactive account", "user_id", account.ID)
		return emailidentity.Account{}, ErrInvalidCredentials
	}

	match, err := CheckPasswordHash(password, account.Password)
	if err != nil {
		return emailidentity.Account{}, fmt.Errorf("failed to check password: %w", err)
	}
	if !match {
		return emailidentity.Account{}, ErrInvalidCredentials
	}

	slog.Info("Login succeeded", "user_id", account.ID)
	return account, nil
}

// resolveAccount finds the account behind an identifier. The email path only
// accepts verified addresses.
func (s *LoginService) resolveAccount(ctx context.Context, identifier string) (emailidentity.Account, error) {
	email, err := s.repo.GetByEmail(ctx, identifier)
	if err == nil {
		if !email.Verified || !email.UserID.Valid {
			return emailidentity.Account{}, ErrInvalidCredentials
		}
		account, err := s.repo.GetAccountByID(ctx, email.UserID.UUID)
		if err != nil {
			if errors.Is(err, emailidentity.ErrAccountNotFound) {
				return emailidentity.Account{}, ErrInvalidCredentials
			}
			return emailidentity.Account{}, fmt.Errorf("failed to load account: %w", err)
		}
		return account, nil
	}
	if !errors.Is(err, emailidentity.ErrUnknownEmail) {
		return emailidentity.Account{}, fmt.Errorf("failed to look up email: %w", err)
	}

	// Legacy fallback: a username works only while the account owns zero
	// email records. As soon as one exists, the email path is the only way
	// in.
	account, err := s.repo.GetAccountByUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, emailidentity.ErrAccountNotFound) {
			return emailidentity.Account{}, ErrInvalidCredentials
		}
		return emailidentity.Account{}, fmt.Errorf("failed to load account: %w", err)
	}

	count, err := s.repo.CountEmailsByUser(ctx, account.ID)
	if err != nil {
		return emailidentity.Account{}, fmt.Errorf("failed to count emails: %w", err)
	}
	if count > 0 {
		return emailidentity.Account{}, ErrInvalidCredentials
	}

	return account, nil
}
