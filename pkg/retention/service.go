// Package retention removes expired unverified email records and the
// never-activated accounts left behind by them.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-emailauth/pkg/emailidentity"
)

// Sweeper runs retention sweeps against the email identity store.
type Sweeper struct {
	repo   emailidentity.EmailIdentityRepository
	window time.Duration
}

// NewSweeper creates a sweeper using the given verification window. Records
// whose key is older than the window are eligible for removal.
func NewSweeper(repo emailidentity.EmailIdentityRepository, window time.Duration) *Sweeper {
	return &Sweeper{
		repo:   repo,
		window: window,
	}
}

// Sweep removes expired unverified emails and cascades to accounts that were
// never activated and hold no remaining emails. One cutoff covers the whole
// sweep. Idempotent and safe to run alongside live traffic.
func (s *Sweeper) Sweep(ctx context.Context) (emailidentity.SweepResult, error) {
	cutoff := time.Now().UTC().Add(-s.window)

	result, err := s.repo.DeleteExpiredUnverified(ctx, cutoff)
	if err != nil {
		return emailidentity.SweepResult{}, fmt.Errorf("failed to sweep expired emails: %w", err)
	}

	if result.Emails > 0 || result.Accounts > 0 {
		slog.Info("Retention sweep completed", "emails", result.Emails, "accounts", result.Accounts)
	}
	return result, nil
}

// Run sweeps on a fixed interval until the context is cancelled. Sweep
// failures are logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Retention sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Retention sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("Retention sweep failed", "error", err)
			}
		}
	}
}
