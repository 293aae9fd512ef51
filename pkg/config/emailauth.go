package config

import "time"

// EmailAuthConfig holds the email identity policy knobs
type EmailAuthConfig struct {
	// VerificationWindowDays is how many days a verification or reset key
	// stays usable. Must be positive.
	VerificationWindowDays int `env:"EMAILAUTH_VERIFICATION_WINDOW_DAYS" env-default:"3"`

	// SingleEmailMode restricts accounts to exactly one address
	SingleEmailMode bool `env:"EMAILAUTH_SINGLE_EMAIL_MODE" env-default:"false"`

	// AutoMaintenanceEnabled turns on the in-process retention sweeper
	AutoMaintenanceEnabled bool `env:"EMAILAUTH_AUTO_MAINTENANCE" env-default:"false"`

	// SweepInterval is how often the in-process sweeper runs
	SweepInterval time.Duration `env:"EMAILAUTH_SWEEP_INTERVAL" env-default:"1h"`

	SiteName string `env:"EMAILAUTH_SITE_NAME" env-default:"simple-emailauth"`
	BaseURL  string `env:"EMAILAUTH_BASE_URL" env-default:"http://localhost:4000"`
}

// VerificationWindow returns the key lifetime as a duration, falling back to
// the three-day default when the configured value is not positive.
func (c EmailAuthConfig) VerificationWindow() time.Duration {
	days := c.VerificationWindowDays
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}

// NewEmailAuthConfigFromEnv creates an EmailAuthConfig from environment variables
func NewEmailAuthConfigFromEnv() EmailAuthConfig {
	return EmailAuthConfig{
		VerificationWindowDays: GetEnvInt("EMAILAUTH_VERIFICATION_WINDOW_DAYS", 3),
		SingleEmailMode:        GetEnvBool("EMAILAUTH_SINGLE_EMAIL_MODE", false),
		AutoMaintenanceEnabled: GetEnvBool("EMAILAUTH_AUTO_MAINTENANCE", false),
		SweepInterval:          GetEnvDuration("EMAILAUTH_SWEEP_INTERVAL", time.Hour),
		SiteName:               GetEnvOrDefault("EMAILAUTH_SITE_NAME", "simple-emailauth"),
		BaseURL:                GetEnvOrDefault("EMAILAUTH_BASE_URL", "http://localhost:4000"),
	}
}
