// Package emailidentity manages email addresses as identities for simple-emailauth.
//
// Every address is a UserEmail record bound to an account. Records start
// unverified with a single-use verification key; consuming the key marks the
// address verified and activates the owning account. Each account has exactly
// one default address, mirrored onto the account record.
//
// # Overview
//
// The emailidentity package provides:
//   - Registration with an unverified default email
//   - Single-use, time-limited verification keys
//   - Adding, replacing, and removing addresses
//   - Default address selection with a one-default invariant
//   - Password reset keys sharing the verification key machinery
//   - Repository pattern for PostgreSQL and file storage
//
// # Basic Usage
//
//	import "github.com/tendant/simple-emailauth/pkg/emailidentity"
//
//	// Create service
//	repo := emailidentity.NewPostgresEmailIdentityRepository(pool)
//	service := emailidentity.NewEmailIdentityService(
//		repo,
//		tokengenerator.NewRandomGenerator(),
//		credentialStore,
//		notificationManager,
//		emailidentity.WithVerificationWindow(3*24*time.Hour),
//	)
//
//	// Register: inactive account + unverified default email
//	result, err := service.Register(ctx, emailidentity.RegisterParams{
//		Email:    "user@example.com",
//		Password: "secret",
//	})
//
//	// User clicks the emailed link
//	verified, err := service.Verify(ctx, key)
//
// # Email Modes
//
// In multi-email mode (the default) accounts collect addresses with AddEmail,
// prune them with DeleteEmail, and pick one with SetDefaultEmail. In
// single-email mode (WithSingleEmailMode) accounts hold exactly one address
// and ChangeEmail replaces it: the old address keeps working until the new
// one verifies, at which point the replacement wins and the rest are removed.
//
// # Key Semantics
//
// A key is live until it is consumed or its creation time falls outside the
// verification window. Consumption is atomic: of any number of concurrent
// Verify calls with the same key, exactly one succeeds. An absent, expired,
// and consumed key are indistinguishable to callers (ErrTokenNotFound).
package emailidentity
