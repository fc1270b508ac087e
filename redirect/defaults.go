package redirect

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dealgrid/gatekit/identity"
)

// Canonical rule priorities, highest first. The gaps leave room for
// site-specific rules without renumbering.
const (
	PriorityMaintenance       = 120
	PriorityAuthRequired      = 100
	PriorityRoleRestricted    = 80
	PriorityAuthPage          = 60
	PriorityProfileIncomplete = 50
	PriorityOnboarding        = 40
	PriorityFeatureFlag       = 30
)

// Machine-readable reason codes recorded on decisions and embedded in
// unauthorized destinations.
const (
	ReasonMaintenance       = "maintenance"
	ReasonAuthRequired      = "auth_required"
	ReasonProfileIncomplete = "profile_incomplete"
	ReasonOnboarding        = "onboarding"
	ReasonFeatureDisabled   = "feature_disabled"
	ReasonAlreadyAuthed     = "already_authenticated"
)

// DefaultsConfig shapes the compiled default rule set. Zero-value fields
// fall back to the marketplace defaults below.
type DefaultsConfig struct {
	MaintenancePath string
	// MaintenanceEnabled registers the site-wide maintenance rule enabled.
	// Normally false; flipped at runtime via EnableRule.
	MaintenanceEnabled bool

	LoginPath        string
	UnauthorizedPath string

	// ProtectedPrefixes require authentication.
	ProtectedPrefixes []string
	// RolePrefixes restrict a subtree to one role.
	RolePrefixes map[string]identity.Role
	// AuthPaths are the auth-only pages authenticated users are bounced from.
	AuthPaths []string

	HomeByRole            map[identity.Role]string
	ProfileCompletionPath string

	// OnboardingWindow is the rolling window after account creation during
	// which first-time users are steered onto onboarding.
	OnboardingWindow     time.Duration
	OnboardingPathByRole map[identity.Role]string

	// DisabledFeatures maps a path prefix to its feature-unavailable rule.
	DisabledFeatures       []string
	FeatureUnavailablePath string
}

// DefaultsConfigDefault returns the marketplace defaults.
func DefaultsConfigDefault() DefaultsConfig {
	return DefaultsConfig{
		MaintenancePath:  "/maintenance",
		LoginPath:        "/auth/login",
		UnauthorizedPath: "/unauthorized",
		ProtectedPrefixes: []string{
			"/admin", "/dealer", "/profile", "/bookings",
		},
		RolePrefixes: map[string]identity.Role{
			"/admin":  identity.RoleAdmin,
			"/dealer": identity.RoleDealer,
		},
		AuthPaths: []string{"/auth/login", "/auth/signup"},
		HomeByRole: map[identity.Role]string{
			identity.RoleCustomer: "/profile/customer",
			identity.RoleDealer:   "/profile/dealer",
			identity.RoleAdmin:    "/admin",
		},
		ProfileCompletionPath: "/profile/complete",
		OnboardingWindow:      7 * 24 * time.Hour,
		OnboardingPathByRole: map[identity.Role]string{
			identity.RoleCustomer: "/onboarding/customer",
			identity.RoleDealer:   "/onboarding/dealer",
		},
		FeatureUnavailablePath: "/feature-unavailable",
	}
}

// DefaultRules compiles cfg into the canonical rule set. Register the
// result on a fresh engine at process start; runtime mutation happens
// through the engine, never by rebuilding this set.
func DefaultRules(cfg DefaultsConfig) []Rule {
	base := DefaultsConfigDefault()
	if cfg.MaintenancePath == "" {
		cfg.MaintenancePath = base.MaintenancePath
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = base.LoginPath
	}
	if cfg.UnauthorizedPath == "" {
		cfg.UnauthorizedPath = base.UnauthorizedPath
	}
	if cfg.ProtectedPrefixes == nil {
		cfg.ProtectedPrefixes = base.ProtectedPrefixes
	}
	if cfg.RolePrefixes == nil {
		cfg.RolePrefixes = base.RolePrefixes
	}
	if cfg.AuthPaths == nil {
		cfg.AuthPaths = base.AuthPaths
	}
	if cfg.HomeByRole == nil {
		cfg.HomeByRole = base.HomeByRole
	}
	if cfg.ProfileCompletionPath == "" {
		cfg.ProfileCompletionPath = base.ProfileCompletionPath
	}
	if cfg.OnboardingWindow <= 0 {
		cfg.OnboardingWindow = base.OnboardingWindow
	}
	if cfg.OnboardingPathByRole == nil {
		cfg.OnboardingPathByRole = base.OnboardingPathByRole
	}
	if cfg.FeatureUnavailablePath == "" {
		cfg.FeatureUnavailablePath = base.FeatureUnavailablePath
	}

	rules := []Rule{
		maintenanceRule(cfg),
		authRequiredRule(cfg),
		authPageRule(cfg),
		profileIncompleteRule(cfg),
		onboardingRule(cfg),
	}
	rules = append(rules, roleRules(cfg)...)
	rules = append(rules, featureFlagRules(cfg)...)
	return rules
}

func maintenanceRule(cfg DefaultsConfig) Rule {
	return Rule{
		ID:       "maintenance",
		Name:     "maintenance-mode",
		Priority: PriorityMaintenance,
		Enabled:  cfg.MaintenanceEnabled,
		Reason:   ReasonMaintenance,
		Condition: func(ctx Context) bool {
			// The maintenance page itself must stay reachable.
			return ctx.Pathname != cfg.MaintenancePath
		},
		Destination: Literal(cfg.MaintenancePath),
	}
}

func authRequiredRule(cfg DefaultsConfig) Rule {
	return Rule{
		ID:       "auth-required",
		Name:     "auth-required",
		Priority: PriorityAuthRequired,
		Enabled:  true,
		Reason:   ReasonAuthRequired,
		Condition: func(ctx Context) bool {
			return ctx.User == nil && hasAnyPrefix(ctx.Pathname, cfg.ProtectedPrefixes)
		},
		// Carry the original path so login can return the user there.
		Destination: Derived(func(ctx Context) string {
			return cfg.LoginPath + "?redirect=" + url.QueryEscape(ctx.Pathname)
		}),
	}
}

func roleRules(cfg DefaultsConfig) []Rule {
	prefixes := make([]string, 0, len(cfg.RolePrefixes))
	for prefix := range cfg.RolePrefixes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	rules := make([]Rule, 0, len(prefixes))
	for _, prefix := range prefixes {
		required := cfg.RolePrefixes[prefix]
		reason := fmt.Sprintf("%s_required", required)
		subtree := prefix

		rules = append(rules, Rule{
			ID:       "role-" + strings.TrimPrefix(subtree, "/"),
			Name:     "role-restricted-" + string(required),
			Priority: PriorityRoleRestricted,
			Enabled:  true,
			Reason:   reason,
			Condition: func(ctx Context) bool {
				// Vacuously false for anonymous users: the auth-required
				// rule outranks this one and owns that case.
				return ctx.User != nil &&
					hasPrefix(ctx.Pathname, subtree) &&
					ctx.User.Role != required
			},
			Destination: Derived(func(ctx Context) string {
				return cfg.UnauthorizedPath + "?reason=" + url.QueryEscape(reason)
			}),
		})
	}
	return rules
}

func authPageRule(cfg DefaultsConfig) Rule {
	return Rule{
		ID:       "auth-page",
		Name:     "authenticated-on-auth-page",
		Priority: PriorityAuthPage,
		Enabled:  true,
		Reason:   ReasonAlreadyAuthed,
		Condition: func(ctx Context) bool {
			if ctx.User == nil {
				return false
			}
			for _, p := range cfg.AuthPaths {
				if ctx.Pathname == p {
					return true
				}
			}
			return false
		},
		Destination: Derived(func(ctx Context) string {
			if home, ok := cfg.HomeByRole[ctx.User.Role]; ok {
				return home
			}
			return "/"
		}),
	}
}

func profileIncompleteRule(cfg DefaultsConfig) Rule {
	return Rule{
		ID:       "profile-incomplete",
		Name:     "profile-completion-required",
		Priority: PriorityProfileIncomplete,
		Enabled:  true,
		Reason:   ReasonProfileIncomplete,
		Condition: func(ctx Context) bool {
			// Never fires on its own destination, so the forced redirect
			// cannot loop.
			return ctx.User != nil &&
				!ctx.User.ProfileComplete() &&
				!hasPrefix(ctx.Pathname, cfg.ProfileCompletionPath) &&
				hasAnyPrefix(ctx.Pathname, cfg.ProtectedPrefixes)
		},
		Destination: Literal(cfg.ProfileCompletionPath),
	}
}

func onboardingRule(cfg DefaultsConfig) Rule {
	return Rule{
		ID:       "onboarding",
		Name:     "onboarding-window",
		Priority: PriorityOnboarding,
		Enabled:  true,
		Reason:   ReasonOnboarding,
		Condition: func(ctx Context) bool {
			if ctx.User == nil {
				return false
			}
			target, ok := cfg.OnboardingPathByRole[ctx.User.Role]
			if !ok || hasPrefix(ctx.Pathname, target) {
				return false
			}
			return ctx.Timestamp.Sub(ctx.User.CreatedAt) <= cfg.OnboardingWindow &&
				hasAnyPrefix(ctx.Pathname, cfg.ProtectedPrefixes)
		},
		Destination: Derived(func(ctx Context) string {
			return cfg.OnboardingPathByRole[ctx.User.Role]
		}),
	}
}

func featureFlagRules(cfg DefaultsConfig) []Rule {
	rules := make([]Rule, 0, len(cfg.DisabledFeatures))
	for _, prefix := range cfg.DisabledFeatures {
		subtree := prefix
		rules = append(rules, Rule{
			ID:       "feature-" + strings.TrimPrefix(subtree, "/"),
			Name:     "feature-flag-" + strings.TrimPrefix(subtree, "/"),
			Priority: PriorityFeatureFlag,
			// Enabled rule means disabled feature: re-enabling the feature
			// is DisableRule on this id.
			Enabled: true,
			Reason:  ReasonFeatureDisabled,
			Condition: func(ctx Context) bool {
				return hasPrefix(ctx.Pathname, subtree)
			},
			Destination: Derived(func(ctx Context) string {
				return cfg.FeatureUnavailablePath + "?path=" + url.QueryEscape(ctx.Pathname)
			}),
		})
	}
	return rules
}

// hasPrefix matches whole path segments: "/admin" covers "/admin" and
// "/admin/users" but not "/administrator".
func hasPrefix(pathname, prefix string) bool {
	if !strings.HasPrefix(pathname, prefix) {
		return false
	}
	return len(pathname) == len(prefix) || pathname[len(prefix)] == '/'
}

func hasAnyPrefix(pathname string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if hasPrefix(pathname, prefix) {
			return true
		}
	}
	return false
}
