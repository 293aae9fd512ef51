package login

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-emailauth/pkg/emailidentity"
)

func setupLoginTest(t *testing.T) (*LoginService, *BcryptCredentialStore, *emailidentity.FileEmailIdentityRepository) {
	tempDir := filepath.Join(os.TempDir(), "login-test-"+uuid.New().String())
	require.NoError(t, os.MkdirAll(tempDir, 0755))
	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	repo, err := emailidentity.NewFileEmailIdentityRepository(tempDir)
	require.NoError(t, err)

	return NewLoginService(repo), NewBcryptCredentialStore(repo), repo
}

// createAccountWithEmail builds an active account owning one email record.
func createAccountWithEmail(t *testing.T, repo *emailidentity.FileEmailIdentityRepository, creds *BcryptCredentialStore, address, password string, verified bool) emailidentity.Account {
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, emailidentity.Account{
		Username: "user-" + uuid.New().String(),
		Active:   true,
	})
	require.NoError(t, err)
	require.NoError(t, creds.SetPassword(ctx, account.ID, password))

	email, err := repo.CreateUnverified(ctx, address, uuid.NullUUID{UUID: account.ID, Valid: true}, "key-"+uuid.New().String())
	require.NoError(t, err)
	if verified {
		_, err = repo.Verify(ctx, email.VerificationKey, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
	}

	return account
}

func TestLoginService_Authenticate(t *testing.T) {
	service, creds, repo := setupLoginTest(t)
	ctx := context.Background()

	account := createAccountWithEmail(t, repo, creds, "alice@example.com", "correct-password", true)

	t.Run("VerifiedEmail", func(t *testing.T) {
		got, err := service.Authenticate(ctx, "alice@example.com", "correct-password")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("CaseInsensitiveIdentifier", func(t *testing.T) {
		got, err := service.Authenticate(ctx, "ALICE@Example.com", "correct-password")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "alice@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownIdentifier", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "nobody@example.com", "correct-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnverifiedEmailRejected", func(t *testing.T) {
		createAccountWithEmail(t, repo, creds, "pending@example.com", "correct-password", false)
		_, err := service.Authenticate(ctx, "pending@example.com", "correct-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("InactiveAccountRejected", func(t *testing.T) {
		inactive, err := repo.CreateAccount(ctx, emailidentity.Account{Username: "inactiveuser"})
		require.NoError(t, err)
		require.NoError(t, creds.SetPassword(ctx, inactive.ID, "correct-password"))
		email, err := repo.CreateUnverified(ctx, "inactive@example.com", uuid.NullUUID{UUID: inactive.ID, Valid: true}, "inactive-key")
		require.NoError(t, err)
		_, err = repo.Verify(ctx, email.VerificationKey, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)

		_, err = service.Authenticate(ctx, "inactive@example.com", "correct-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLoginService_LegacyUsernameFallback(t *testing.T) {
	service, creds, repo := setupLoginTest(t)
	ctx := context.Background()

	// Legacy account: username and password, no email records at all.
	legacy, err := repo.CreateAccount(ctx, emailidentity.Account{
		Username: "legacyuser",
		Active:   true,
	})
	require.NoError(t, err)
	require.NoError(t, creds.SetPassword(ctx, legacy.ID, "legacy-password"))

	t.Run("UsernameWorksWithZeroEmails", func(t *testing.T) {
		got, err := service.Authenticate(ctx, "legacyuser", "legacy-password")
		require.NoError(t, err)
		assert.Equal(t, legacy.ID, got.ID)
	})

	t.Run("UsernameDiesOnceAnEmailExists", func(t *testing.T) {
		_, err := repo.CreateUnverified(ctx, "legacy@example.com", uuid.NullUUID{UUID: legacy.ID, Valid: true}, "legacy-key")
		require.NoError(t, err)

		_, err = service.Authenticate(ctx, "legacyuser", "legacy-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("some-password")
	require.NoError(t, err)
	assert.NotEqual(t, "some-password", string(hash))

	match, err := CheckPasswordHash("some-password", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CheckPasswordHash("other-password", hash)
	require.NoError(t, err)
	assert.False(t, match)

	t.Run("EmptyPassword", func(t *testing.T) {
		_, err := HashPassword("")
		assert.Error(t, err)

		match, err := CheckPasswordHash("", hash)
		require.NoError(t, err)
		assert.False(t, match)
	})
}

func TestTokenService(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	userID := uuid.New()

	token, err := tokens.IssueToken(userID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, time.Hour, tokens.Expiry())
}
