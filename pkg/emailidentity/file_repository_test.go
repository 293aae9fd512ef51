package emailidentity

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary directory and repository for testing
func setupTestRepo(t *testing.T) *FileEmailIdentityRepository {
	tempDir := filepath.Join(os.TempDir(), "emailidentity-test-"+uuid.New().String())
	err := os.MkdirAll(tempDir, 0755)
	require.NoError(t, err)

	repo, err := NewFileEmailIdentityRepository(tempDir)
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	return repo
}

func createTestAccount(t *testing.T, repo *FileEmailIdentityRepository, active bool) Account {
	account, err := repo.CreateAccount(context.Background(), Account{
		Username: "user-" + uuid.New().String(),
		Active:   active,
	})
	require.NoError(t, err)
	return account
}

func bindEmail(t *testing.T, repo *FileEmailIdentityRepository, address, key string, userID uuid.UUID) UserEmail {
	ctx := context.Background()
	email, err := repo.CreateUnverified(ctx, address, uuid.NullUUID{}, key)
	require.NoError(t, err)
	require.NoError(t, repo.BindAccount(ctx, email.ID, userID))
	email, err = repo.GetByID(ctx, email.ID)
	require.NoError(t, err)
	return email
}

func TestFileEmailIdentityRepository_CreateUnverified(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		email, err := repo.CreateUnverified(ctx, "alice@example.com", uuid.NullUUID{}, "key-1")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, email.ID)
		assert.Equal(t, "alice@example.com", email.Email)
		assert.False(t, email.Verified)
		assert.True(t, email.Default, "first email without an owner starts as default")
		assert.Equal(t, "key-1", email.VerificationKey)
	})

	t.Run("DuplicateAddress", func(t *testing.T) {
		_, err := repo.CreateUnverified(ctx, "alice@example.com", uuid.NullUUID{}, "key-2")
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("DuplicateAddressDifferentCase", func(t *testing.T) {
		_, err := repo.CreateUnverified(ctx, "ALICE@Example.COM", uuid.NullUUID{}, "key-3")
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("OwnedEmailIsNotDefault", func(t *testing.T) {
		account := createTestAccount(t, repo, true)
		email, err := repo.CreateUnverified(ctx, "alice2@example.com", uuid.NullUUID{UUID: account.ID, Valid: true}, "key-4")
		require.NoError(t, err)
		assert.False(t, email.Default)
	})
}

func TestFileEmailIdentityRepository_GetByEmail(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateUnverified(ctx, "Bob@Example.com", uuid.NullUUID{}, "key-1")
	require.NoError(t, err)

	t.Run("CaseInsensitiveLookup", func(t *testing.T) {
		email, err := repo.GetByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, email.ID)
		// Stored case is preserved.
		assert.Equal(t, "Bob@Example.com", email.Email)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUnknownEmail)
	})
}

func TestFileEmailIdentityRepository_Verify(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-72 * time.Hour)

	t.Run("Success", func(t *testing.T) {
		_, err := repo.CreateUnverified(ctx, "v1@example.com", uuid.NullUUID{}, "verify-key-1")
		require.NoError(t, err)

		email, err := repo.Verify(ctx, "verify-key-1", cutoff)
		require.NoError(t, err)
		assert.True(t, email.Verified)
		assert.Equal(t, VerifiedSentinel, email.VerificationKey)
	})

	t.Run("ConsumedKeyFails", func(t *testing.T) {
		_, err := repo.Verify(ctx, "verify-key-1", cutoff)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("SentinelIsNeverAKey", func(t *testing.T) {
		_, err := repo.Verify(ctx, VerifiedSentinel, cutoff)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		_, err := repo.Verify(ctx, "no-such-key", cutoff)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("ExpiredKey", func(t *testing.T) {
		email, err := repo.CreateUnverified(ctx, "v2@example.com", uuid.NullUUID{}, "verify-key-2")
		require.NoError(t, err)

		// A cutoff in the future makes every existing key stale.
		_, err = repo.Verify(ctx, "verify-key-2", time.Now().UTC().Add(time.Hour))
		assert.ErrorIs(t, err, ErrTokenNotFound)

		// Failure must not mutate the record.
		unchanged, err := repo.GetByID(ctx, email.ID)
		require.NoError(t, err)
		assert.False(t, unchanged.Verified)
		assert.Equal(t, "verify-key-2", unchanged.VerificationKey)
	})
}

func TestFileEmailIdentityRepository_ConcurrentVerify(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-72 * time.Hour)

	_, err := repo.CreateUnverified(ctx, "race@example.com", uuid.NullUUID{}, "race-key")
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Verify(ctx, "race-key", cutoff)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrTokenNotFound)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent verify must win")
}

func TestFileEmailIdentityRepository_ConsumeKeyAndRekey(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-72 * time.Hour)

	created, err := repo.CreateUnverified(ctx, "reset@example.com", uuid.NullUUID{}, "first-key")
	require.NoError(t, err)

	// Rekey kills the previous key.
	require.NoError(t, repo.Rekey(ctx, created.ID, "second-key", time.Now().UTC()))
	_, err = repo.ConsumeKey(ctx, "first-key", cutoff)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// The fresh key is single-use and does not flip verified.
	email, err := repo.ConsumeKey(ctx, "second-key", cutoff)
	require.NoError(t, err)
	assert.False(t, email.Verified)
	assert.Equal(t, VerifiedSentinel, email.VerificationKey)

	_, err = repo.ConsumeKey(ctx, "second-key", cutoff)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFileEmailIdentityRepository_SetDefault(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-72 * time.Hour)

	account := createTestAccount(t, repo, true)
	first := bindEmail(t, repo, "one@example.com", "key-one", account.ID)
	second := bindEmail(t, repo, "two@example.com", "key-two", account.ID)

	_, err := repo.Verify(ctx, "key-one", cutoff)
	require.NoError(t, err)
	_, err = repo.Verify(ctx, "key-two", cutoff)
	require.NoError(t, err)

	require.NoError(t, repo.SetDefault(ctx, account.ID, first.ID))
	require.NoError(t, repo.SetDefault(ctx, account.ID, second.ID))

	emails, err := repo.ListByUser(ctx, account.ID)
	require.NoError(t, err)
	defaults := 0
	for _, e := range emails {
		if e.Default {
			defaults++
			assert.Equal(t, second.ID, e.ID)
		}
	}
	assert.Equal(t, 1, defaults, "exactly one default per user")

	// The account record mirrors the default address.
	updated, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "two@example.com", updated.Email)

	t.Run("ForeignEmailRejected", func(t *testing.T) {
		other := createTestAccount(t, repo, true)
		err := repo.SetDefault(ctx, other.ID, first.ID)
		assert.ErrorIs(t, err, ErrEmailNotFound)
	})
}

func TestFileEmailIdentityRepository_DeleteExpiredUnverified(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// Never-activated account with one stale unverified email: both go.
	staleAccount := createTestAccount(t, repo, false)
	bindEmail(t, repo, "stale@example.com", "stale-key", staleAccount.ID)

	// Activated account with a stale unverified extra email: only the email goes.
	liveAccount := createTestAccount(t, repo, true)
	bindEmail(t, repo, "live-extra@example.com", "live-extra-key", liveAccount.ID)

	// Fresh unverified email survives any past cutoff.
	fresh, err := repo.CreateUnverified(ctx, "fresh@example.com", uuid.NullUUID{}, "fresh-key")
	require.NoError(t, err)

	// Everything except records minted after this instant is stale.
	cutoff := time.Now().UTC().Add(time.Minute)
	freshCutoff := time.Now().UTC().Add(-time.Minute)

	// Make the fresh record genuinely fresh relative to the sweep cutoff.
	require.NoError(t, repo.Rekey(ctx, fresh.ID, "fresh-key", time.Now().UTC().Add(2*time.Minute)))

	result, err := repo.DeleteExpiredUnverified(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Emails)
	assert.Equal(t, int64(1), result.Accounts)

	_, err = repo.GetAccountByID(ctx, staleAccount.ID)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = repo.GetAccountByID(ctx, liveAccount.ID)
	assert.NoError(t, err, "activated accounts are never cascaded")

	_, err = repo.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)

	// A second sweep with nothing stale removes nothing.
	result, err = repo.DeleteExpiredUnverified(ctx, freshCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Emails)
	assert.Equal(t, int64(0), result.Accounts)
}

func TestFileEmailIdentityRepository_Persistence(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "emailidentity-test-persist-"+uuid.New().String())
	defer os.RemoveAll(tempDir)

	ctx := context.Background()

	repo, err := NewFileEmailIdentityRepository(tempDir)
	require.NoError(t, err)

	created, err := repo.CreateUnverified(ctx, "persist@example.com", uuid.NullUUID{}, "persist-key")
	require.NoError(t, err)

	// A new repository instance sees the saved data.
	reopened, err := NewFileEmailIdentityRepository(tempDir)
	require.NoError(t, err)

	email, err := reopened.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist@example.com", email.Email)
	assert.Equal(t, "persist-key", email.VerificationKey)
}
