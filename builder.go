package gatekit

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dealgrid/gatekit/identity"
	"github.com/dealgrid/gatekit/kv"
	"github.com/dealgrid/gatekit/password"
	"github.com/dealgrid/gatekit/redirect"
	"github.com/dealgrid/gatekit/session"
)

// Builder assembles an Auth. A Builder is single use; Build returns an
// error on reuse.
type Builder struct {
	config    Config
	kvStore   *kv.Store
	auditSink AuditSink
	logger    *slog.Logger
	rules     []redirect.Rule
	noDefault bool

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg.fillDefaults()
	return b
}

// WithRedis backs the engine with an existing Redis client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.kvStore = kv.New(client)
	return b
}

// WithKV backs the engine with a prepared adapter, typically from
// kv.NewFromEnv. An unconfigured adapter is accepted; auth operations then
// fail closed with ErrUnconfigured.
func (b *Builder) WithKV(store *kv.Store) *Builder {
	b.kvStore = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRules registers extra redirect rules on top of the canonical set.
func (b *Builder) WithRules(rules ...redirect.Rule) *Builder {
	b.rules = append(b.rules, rules...)
	return b
}

// WithoutDefaultRules skips the canonical rule set. Only rules given via
// WithRules are registered.
func (b *Builder) WithoutDefaultRules() *Builder {
	b.noDefault = true
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the stores, the rule engine,
// the audit dispatcher and the metrics into an Auth.
func (b *Builder) Build() (*Auth, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := b.config.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kvStore := b.kvStore
	if kvStore == nil {
		var err error
		kvStore, err = kv.NewFromEnv()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	hasher, err := password.NewHasher(password.Config{
		Cost:       cfg.Password.Cost,
		SaltLength: cfg.Password.SaltLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := redirect.NewEngine(cfg.Security.RedirectHistorySize)
	if !b.noDefault {
		for _, rule := range redirect.DefaultRules(cfg.Redirect) {
			if err := engine.AddRule(rule); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	}
	for _, rule := range b.rules {
		if err := engine.AddRule(rule); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return &Auth{
		config:   cfg,
		kv:       kvStore,
		hasher:   hasher,
		users:    identity.NewStore(kvStore, hasher, logger),
		sessions: session.NewStore(kvStore, ""),
		engine:   engine,
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
	}, nil
}
