package emailidentity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-emailauth/pkg/notification"
	"github.com/tendant/simple-emailauth/pkg/tokengenerator"
)

// CredentialStore manages account credentials. Implemented by pkg/login so
// the hashing scheme stays out of this package.
type CredentialStore interface {
	SetPassword(ctx context.Context, userID uuid.UUID, password string) error
	CheckPassword(ctx context.Context, userID uuid.UUID, password string) error
}

// EmailIdentityService drives the email lifecycle: registration, key
// verification, default selection, and password reset keys.
type EmailIdentityService struct {
	repo                EmailIdentityRepository
	generator           tokengenerator.Generator
	credentials         CredentialStore
	notificationManager *notification.NotificationManager
	window              time.Duration
	singleEmailMode     bool
	siteName            string
}

// EmailIdentityServiceOption defines configuration options
type EmailIdentityServiceOption func(*EmailIdentityService)

// WithVerificationWindow sets how long a verification key stays usable
func WithVerificationWindow(window time.Duration) EmailIdentityServiceOption {
	return func(s *EmailIdentityService) {
		s.window = window
	}
}

// WithSingleEmailMode switches the service into single-email mode: accounts
// carry exactly one address and ChangeEmail replaces it.
func WithSingleEmailMode(enabled bool) EmailIdentityServiceOption {
	return func(s *EmailIdentityService) {
		s.singleEmailMode = enabled
	}
}

// WithSiteName sets the site identity used in outbound notices
func WithSiteName(name string) EmailIdentityServiceOption {
	return func(s *EmailIdentityService) {
		s.siteName = name
	}
}

// NewEmailIdentityService creates a new email identity service
func NewEmailIdentityService(
	repo EmailIdentityRepository,
	generator tokengenerator.Generator,
	credentials CredentialStore,
	notificationManager *notification.NotificationManager,
	opts ...EmailIdentityServiceOption,
) *EmailIdentityService {
	service := &EmailIdentityService{
		repo:                repo,
		generator:           generator,
		credentials:         credentials,
		notificationManager: notificationManager,
		window:              3 * 24 * time.Hour, // Default 3 days
		siteName:            "this site",
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// cutoff returns the oldest key creation time still considered live
func (s *EmailIdentityService) cutoff() time.Time {
	return time.Now().UTC().Add(-s.window)
}

// RegisterParams carries the registration request
type RegisterParams struct {
	Email     string
	Password  string
	Username  string
	FirstName string
}

// RegisterResult reports a completed registration
type RegisterResult struct {
	Account Account
	Email   UserEmail
	Event   EmailCreatedEvent
}

// Register mints an unverified default email, creates the inactive account
// behind it, and sends the verification notice. The account stays inactive
// until the email is verified.
func (s *EmailIdentityService) Register(ctx context.Context, params RegisterParams) (RegisterResult, error) {
	key, err := s.generator.Generate(params.Email)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("failed to generate verification key: %w", err)
	}

	// Created without an owner, so the record starts as the default email.
	email, err := s.repo.CreateUnverified(ctx, params.Email, uuid.NullUUID{}, key)
	if err != nil {
		return RegisterResult{}, err
	}

	account, err := s.repo.CreateAccount(ctx, Account{
		Username:  params.Username,
		FirstName: params.FirstName,
		Email:     params.Email,
		Active:    false,
	})
	if err != nil {
		if delErr := s.repo.Delete(ctx, email.ID); delErr != nil {
			slog.Error("Failed to clean up email after account creation failure", "email_id", email.ID, "error", delErr)
		}
		return RegisterResult{}, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.repo.BindAccount(ctx, email.ID, account.ID); err != nil {
		return RegisterResult{}, fmt.Errorf("failed to bind email to account: %w", err)
	}
	email.UserID = uuid.NullUUID{UUID: account.ID, Valid: true}

	if err := s.credentials.SetPassword(ctx, account.ID, params.Password); err != nil {
		return RegisterResult{}, fmt.Errorf("failed to set credential: %w", err)
	}

	event := EmailCreatedEvent{
		EmailID:    email.ID,
		UserID:     email.UserID,
		Email:      email.Email,
		FirstEmail: true,
	}
	s.sendVerificationNotice(email, params.FirstName, true)

	slog.Info("Registered account", "user_id", account.ID, "email_id", email.ID)
	return RegisterResult{Account: account, Email: email, Event: event}, nil
}

// VerificationResult reports a successful key consumption
type VerificationResult struct {
	Email     UserEmail
	Activated bool
	Event     EmailVerifiedEvent
}

// Verify consumes a verification key. Exactly one of any number of concurrent
// calls with the same key succeeds; an absent, expired, or already consumed
// key always reads as ErrTokenNotFound. In single-email mode the verified
// address becomes the default and the user's other addresses are removed. The
// owning account is activated.
func (s *EmailIdentityService) Verify(ctx context.Context, key string) (VerificationResult, error) {
	email, err := s.repo.Verify(ctx, key, s.cutoff())
	if err != nil {
		return VerificationResult{}, err
	}

	result := VerificationResult{Email: email}

	// The key is consumed at this point. Follow-up steps are logged rather
	// than surfaced so a partial failure cannot make the caller retry a key
	// that no longer exists.
	if email.UserID.Valid {
		userID := email.UserID.UUID

		if s.singleEmailMode || email.Default {
			if err := s.repo.SetDefault(ctx, userID, email.ID); err != nil {
				slog.Error("Failed to set default after verification", "email_id", email.ID, "error", err)
			} else {
				result.Email.Default = true
			}
		}
		if s.singleEmailMode {
			if deleted, err := s.repo.DeleteOtherEmails(ctx, userID, email.ID); err != nil {
				slog.Error("Failed to remove replaced emails", "user_id", userID, "error", err)
			} else if deleted > 0 {
				slog.Info("Removed replaced emails", "user_id", userID, "count", deleted)
			}
		}

		if err := s.repo.ActivateAccount(ctx, userID); err != nil {
			slog.Error("Failed to activate account after verification", "user_id", userID, "error", err)
		} else {
			result.Activated = true
		}
	}

	result.Event = EmailVerifiedEvent{
		EmailID: email.ID,
		UserID:  email.UserID,
		Email:   email.Email,
		Default: result.Email.Default,
	}

	slog.Info("Email verified", "email_id", email.ID, "default", result.Email.Default)
	return result, nil
}

// AddEmail attaches a new unverified, non-default address to an account.
// Multi-email mode only.
func (s *EmailIdentityService) AddEmail(ctx context.Context, userID uuid.UUID, address, firstName string) (UserEmail, error) {
	if s.singleEmailMode {
		return UserEmail{}, ErrInvalidMode
	}

	key, err := s.generator.Generate(address)
	if err != nil {
		return UserEmail{}, fmt.Errorf("failed to generate verification key: %w", err)
	}

	email, err := s.repo.CreateUnverified(ctx, address, uuid.NullUUID{UUID: userID, Valid: true}, key)
	if err != nil {
		return UserEmail{}, err
	}

	s.sendVerificationNotice(email, firstName, false)

	slog.Info("Email added", "user_id", userID, "email_id", email.ID)
	return email, nil
}

// ChangeEmail replaces the account's address. Single-email mode only. Any
// previous pending replacement is dropped, a fresh unverified address is
// minted, and the current default survives until the new address verifies.
func (s *EmailIdentityService) ChangeEmail(ctx context.Context, userID uuid.UUID, address, firstName string) (UserEmail, error) {
	if !s.singleEmailMode {
		return UserEmail{}, ErrInvalidMode
	}

	if _, err := s.repo.DeleteNonDefault(ctx, userID); err != nil {
		return UserEmail{}, fmt.Errorf("failed to drop pending emails: %w", err)
	}

	key, err := s.generator.Generate(address)
	if err != nil {
		return UserEmail{}, fmt.Errorf("failed to generate verification key: %w", err)
	}

	email, err := s.repo.CreateUnverified(ctx, address, uuid.NullUUID{UUID: userID, Valid: true}, key)
	if err != nil {
		return UserEmail{}, err
	}

	s.sendVerificationNotice(email, firstName, false)

	slog.Info("Email change requested", "user_id", userID, "email_id", email.ID)
	return email, nil
}

// DeleteEmail removes a verified address from an account. Multi-email mode
// only. The account must keep at least one verified address.
func (s *EmailIdentityService) DeleteEmail(ctx context.Context, userID, emailID uuid.UUID) error {
	if s.singleEmailMode {
		return ErrInvalidMode
	}

	email, err := s.ownedEmail(ctx, userID, emailID)
	if err != nil {
		return err
	}
	if !email.Verified {
		return ErrNotVerified
	}

	verified, err := s.countVerified(ctx, userID)
	if err != nil {
		return err
	}
	if verified < 2 {
		return ErrLastVerifiedEmail
	}

	if err := s.repo.Delete(ctx, emailID); err != nil {
		return err
	}

	slog.Info("Email deleted", "user_id", userID, "email_id", emailID)
	return nil
}

// SetDefaultEmail makes a verified address the account's default. Multi-email
// mode only.
func (s *EmailIdentityService) SetDefaultEmail(ctx context.Context, userID, emailID uuid.UUID) error {
	if s.singleEmailMode {
		return ErrInvalidMode
	}

	email, err := s.ownedEmail(ctx, userID, emailID)
	if err != nil {
		return err
	}
	if !email.Verified {
		return ErrNotVerified
	}

	if err := s.repo.SetDefault(ctx, userID, emailID); err != nil {
		return err
	}

	slog.Info("Default email changed", "user_id", userID, "email_id", emailID)
	return nil
}

// ListEmails returns all addresses owned by an account
func (s *EmailIdentityService) ListEmails(ctx context.Context, userID uuid.UUID) ([]UserEmail, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ResendVerification mints a fresh key for an unverified address and resends
// the notice. The previous key dies when the new one is minted.
func (s *EmailIdentityService) ResendVerification(ctx context.Context, address, firstName string) error {
	email, err := s.repo.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if email.Verified {
		return ErrAlreadyVerified
	}

	key, err := s.generator.Generate(email.Email)
	if err != nil {
		return fmt.Errorf("failed to generate verification key: %w", err)
	}

	if err := s.repo.Rekey(ctx, email.ID, key, time.Now().UTC()); err != nil {
		return err
	}
	email.VerificationKey = key

	s.sendVerificationNotice(email, firstName, email.Default)

	slog.Info("Verification resent", "email_id", email.ID)
	return nil
}

// RequestPasswordReset mints a reset key for a known address and sends the
// reset notice. Minting replaces any outstanding key for the address.
func (s *EmailIdentityService) RequestPasswordReset(ctx context.Context, address string) error {
	email, err := s.repo.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if !email.UserID.Valid {
		return ErrUnknownEmail
	}

	key, err := s.generator.Generate(email.Email)
	if err != nil {
		return fmt.Errorf("failed to generate reset key: %w", err)
	}

	if err := s.repo.Rekey(ctx, email.ID, key, time.Now().UTC()); err != nil {
		return err
	}

	account, err := s.repo.GetAccountByID(ctx, email.UserID.UUID)
	if err != nil {
		return err
	}

	s.sendPasswordResetNotice(email, key, account.FirstName)

	slog.Info("Password reset requested", "email_id", email.ID)
	return nil
}

// ResetResult reports a completed password reset
type ResetResult struct {
	Event PasswordResetEvent
}

// ResetPassword consumes a reset key and stores the new credential. The key
// is invalidated first, so it is single-use even when the credential write
// fails afterwards.
func (s *EmailIdentityService) ResetPassword(ctx context.Context, key, newPassword string) (ResetResult, error) {
	email, err := s.repo.ConsumeKey(ctx, key, s.cutoff())
	if err != nil {
		return ResetResult{}, err
	}
	if !email.UserID.Valid {
		return ResetResult{}, ErrTokenNotFound
	}

	if err := s.credentials.SetPassword(ctx, email.UserID.UUID, newPassword); err != nil {
		return ResetResult{}, fmt.Errorf("failed to set credential: %w", err)
	}

	slog.Info("Password reset", "user_id", email.UserID.UUID, "email_id", email.ID)
	return ResetResult{Event: PasswordResetEvent{
		EmailID: email.ID,
		UserID:  email.UserID.UUID,
		Email:   email.Email,
	}}, nil
}

// ownedEmail loads an email record and checks ownership. A record owned by
// someone else reads the same as a missing one.
func (s *EmailIdentityService) ownedEmail(ctx context.Context, userID, emailID uuid.UUID) (UserEmail, error) {
	email, err := s.repo.GetByID(ctx, emailID)
	if err != nil {
		return UserEmail{}, err
	}
	if !email.UserID.Valid || email.UserID.UUID != userID {
		return UserEmail{}, ErrEmailNotFound
	}
	return email, nil
}

func (s *EmailIdentityService) countVerified(ctx context.Context, userID uuid.UUID) (int, error) {
	emails, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range emails {
		if e.Verified {
			count++
		}
	}
	return count, nil
}

// sendVerificationNotice delivers the verification email. Failures are
// logged, never returned: the key already exists and the caller can ask for
// a resend.
func (s *EmailIdentityService) sendVerificationNotice(email UserEmail, firstName string, firstEmail bool) {
	if s.notificationManager == nil {
		return
	}

	expirationDays := int(s.window / (24 * time.Hour))
	err := s.notificationManager.Send(notification.EmailVerificationNotice, notification.NotificationData{
		To: email.Email,
		Data: map[string]string{
			"FirstName":       firstName,
			"FirstEmail":      strconv.FormatBool(firstEmail),
			"SiteName":        s.siteName,
			"ExpirationDays":  strconv.Itoa(expirationDays),
			"BaseURL":         s.notificationManager.BaseURL(),
			"VerificationKey": email.VerificationKey,
		},
	})
	if err != nil {
		slog.Error("Failed to send verification notice", "email_id", email.ID, "error", err)
	}
}

// sendPasswordResetNotice delivers the reset email. Failures are logged for
// the same reason as verification notices.
func (s *EmailIdentityService) sendPasswordResetNotice(email UserEmail, key, firstName string) {
	if s.notificationManager == nil {
		return
	}

	expirationDays := int(s.window / (24 * time.Hour))
	err := s.notificationManager.Send(notification.PasswordResetNotice, notification.NotificationData{
		To: email.Email,
		Data: map[string]string{
			"FirstName":      firstName,
			"SiteName":       s.siteName,
			"ExpirationDays": strconv.Itoa(expirationDays),
			"BaseURL":        s.notificationManager.BaseURL(),
			"ResetCode":      key,
		},
	})
	if err != nil {
		slog.Error("Failed to send password reset notice", "email_id", email.ID, "error", err)
	}
}
