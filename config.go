package gatekit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dealgrid/gatekit/redirect"
)

// Config carries every tunable of the engine. Zero values are filled from
// DefaultConfig by the builder, so callers only set what they change.
type Config struct {
	Session  SessionConfig
	Password PasswordConfig
	Cookie   CookieConfig
	Redirect redirect.DefaultsConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

// SessionConfig controls session lifetime and the sliding refresh window.
type SessionConfig struct {
	// TTL is the absolute lifetime granted to a new or refreshed session.
	TTL time.Duration

	// RefreshThreshold is the remaining-lifetime floor below which the
	// gate slides the session forward. Must be shorter than TTL.
	RefreshThreshold time.Duration
}

// PasswordConfig controls the key derivation performed on stored passwords.
type PasswordConfig struct {
	// Cost is the log2 of the iteration count. 12 to 24.
	Cost int

	// SaltLength is the per-password salt size in bytes. Minimum 16.
	SaltLength int
}

// CookieConfig controls the session cookie written by SetSessionCookie.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int

	// DropIfFull drops events when the buffer is saturated instead of
	// blocking the caller.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig carries flags that change transport-level behavior.
type SecurityConfig struct {
	// ProductionMode marks session cookies Secure.
	ProductionMode bool

	// RedirectHistorySize bounds the ring of retained redirect decisions.
	RedirectHistorySize int
}

// DefaultConfig returns the configuration used when the builder is given
// nothing else. Sessions last one week and slide when under a day remains.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:              168 * time.Hour,
			RefreshThreshold: 24 * time.Hour,
		},
		Password: PasswordConfig{
			Cost:       17,
			SaltLength: 16,
		},
		Cookie: CookieConfig{
			Name: "gatekit_session",
			Path: "/",
		},
		Redirect: redirect.DefaultsConfigDefault(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			RedirectHistorySize: redirect.DefaultHistorySize,
		},
	}
}

type configEnv struct {
	SessionTTL       time.Duration `env:"GATEKIT_SESSION_TTL"`
	RefreshThreshold time.Duration `env:"GATEKIT_REFRESH_THRESHOLD"`
	PasswordCost     int           `env:"GATEKIT_PASSWORD_COST"`
	CookieName       string        `env:"GATEKIT_COOKIE_NAME"`
	CookieDomain     string        `env:"GATEKIT_COOKIE_DOMAIN"`
	Production       bool          `env:"GATEKIT_PRODUCTION"`
}

// ConfigFromEnv returns DefaultConfig overlaid with any GATEKIT_* variables
// present in the environment.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var e configEnv
	if err := env.Parse(&e); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if e.SessionTTL > 0 {
		cfg.Session.TTL = e.SessionTTL
	}
	if e.RefreshThreshold > 0 {
		cfg.Session.RefreshThreshold = e.RefreshThreshold
	}
	if e.PasswordCost > 0 {
		cfg.Password.Cost = e.PasswordCost
	}
	if e.CookieName != "" {
		cfg.Cookie.Name = e.CookieName
	}
	if e.CookieDomain != "" {
		cfg.Cookie.Domain = e.CookieDomain
	}
	cfg.Security.ProductionMode = e.Production
	return cfg, nil
}

// Validate reports the first inconsistency found, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Session.TTL <= 0 {
		return fmt.Errorf("%w: session TTL must be positive", ErrInvalidConfig)
	}
	if c.Session.RefreshThreshold < 0 {
		return fmt.Errorf("%w: refresh threshold must be non-negative", ErrInvalidConfig)
	}
	if c.Session.RefreshThreshold >= c.Session.TTL {
		return fmt.Errorf("%w: refresh threshold must be shorter than session TTL", ErrInvalidConfig)
	}
	if c.Password.Cost < 12 || c.Password.Cost > 24 {
		return fmt.Errorf("%w: password cost must be between 12 and 24", ErrInvalidConfig)
	}
	if c.Password.SaltLength < 16 {
		return fmt.Errorf("%w: password salt must be at least 16 bytes", ErrInvalidConfig)
	}
	if c.Cookie.Name == "" {
		return fmt.Errorf("%w: cookie name must be set", ErrInvalidConfig)
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: audit buffer size must be positive", ErrInvalidConfig)
	}
	if c.Security.RedirectHistorySize <= 0 {
		return fmt.Errorf("%w: redirect history size must be positive", ErrInvalidConfig)
	}
	return nil
}

// fillDefaults replaces zero-valued fields with their defaults so partially
// populated configs behave predictably.
func (c Config) fillDefaults() Config {
	def := DefaultConfig()
	if c.Session.TTL == 0 {
		c.Session.TTL = def.Session.TTL
	}
	if c.Session.RefreshThreshold == 0 {
		c.Session.RefreshThreshold = def.Session.RefreshThreshold
	}
	if c.Password.Cost == 0 {
		c.Password.Cost = def.Password.Cost
	}
	if c.Password.SaltLength == 0 {
		c.Password.SaltLength = def.Password.SaltLength
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = def.Cookie.Name
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = def.Cookie.Path
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
	if c.Security.RedirectHistorySize == 0 {
		c.Security.RedirectHistorySize = def.Security.RedirectHistorySize
	}
	return c
}
