package redirect

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrRuleExists reports an AddRule against an id already registered.
	ErrRuleExists = errors.New("redirect rule already registered")
	// ErrRuleNotFound reports a mutation against an unknown rule id.
	ErrRuleNotFound = errors.New("redirect rule not found")
	// ErrRuleInvalid reports a rejected rule definition.
	ErrRuleInvalid = errors.New("invalid redirect rule")
)

// Decision is the outcome of a matched rule: redirect the request to To.
// A nil *Decision from Evaluate means pass-through.
type Decision struct {
	From      string
	To        string
	RuleID    string
	RuleName  string
	Reason    string
	UserID    string
	Timestamp time.Time
}

// Engine owns one rule registry plus its history and stats. Construct a
// fresh Engine per process (or per test) rather than sharing package-level
// state.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	// snapshot is a copy-on-write view rebuilt on every mutation, so
	// Evaluate never reads a rule another goroutine is writing. A request
	// racing a toggle sees either the old or the new rule set, whole.
	snapshot []Rule

	history *history
	stats   *stats
}

// NewEngine creates an empty engine with a history ring of historySize
// entries (DefaultHistorySize when <= 0). Seed it with [DefaultRules] or
// AddRule calls.
func NewEngine(historySize int) *Engine {
	return &Engine{
		rules:   map[string]*Rule{},
		history: newHistory(historySize),
		stats:   newStats(),
	}
}

// AddRule registers a rule. The id must be unique and the condition and
// destination must be set.
func (e *Engine) AddRule(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: id required", ErrRuleInvalid)
	}
	if rule.Condition == nil {
		return fmt.Errorf("%w: condition required", ErrRuleInvalid)
	}
	if rule.Destination.IsZero() {
		return fmt.Errorf("%w: destination required", ErrRuleInvalid)
	}
	if rule.Name == "" {
		rule.Name = rule.ID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[rule.ID]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}

	r := rule
	e.rules[rule.ID] = &r
	e.resort()
	return nil
}

// RemoveRule unregisters a rule. Removing an unknown id is an error so
// operational tooling notices typos.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(e.rules, id)
	e.resort()
	return nil
}

// EnableRule marks a rule evaluable.
func (e *Engine) EnableRule(id string) error {
	return e.setEnabled(id, true)
}

// DisableRule excludes a rule from evaluation without unregistering it.
func (e *Engine) DisableRule(id string) error {
	return e.setEnabled(id, false)
}

func (e *Engine) setEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, exists := e.rules[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.Enabled = enabled
	e.resort()
	return nil
}

// UpdateRule applies a partial patch to a registered rule.
func (e *Engine) UpdateRule(id string, patch Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, exists := e.rules[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Condition != nil {
		rule.Condition = patch.Condition
	}
	if patch.Destination != nil {
		if patch.Destination.IsZero() {
			return fmt.Errorf("%w: destination required", ErrRuleInvalid)
		}
		rule.Destination = *patch.Destination
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.Reason != nil {
		rule.Reason = *patch.Reason
	}
	e.resort()
	return nil
}

// Rules returns a copy of the registered rules in evaluation order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, len(e.snapshot))
	copy(out, e.snapshot)
	return out
}

// Evaluate runs the enabled rules in descending priority against ctx and
// returns the decision of the first matching rule, or nil for pass-through.
// Same context plus same enabled-rule set always yields the same decision.
func (e *Engine) Evaluate(ctx Context) *Decision {
	e.mu.RLock()
	snapshot := e.snapshot
	e.mu.RUnlock()

	for _, rule := range snapshot {
		if !rule.Enabled {
			continue
		}
		if !rule.Condition(ctx) {
			continue
		}

		decision := &Decision{
			From:      ctx.Pathname,
			To:        rule.Destination.Resolve(ctx),
			RuleID:    rule.ID,
			RuleName:  rule.Name,
			Reason:    rule.Reason,
			Timestamp: ctx.Timestamp,
		}
		if ctx.User != nil {
			decision.UserID = ctx.User.ID
		}

		e.stats.recordRedirect(rule.ID)
		e.history.append(Entry{
			From:      decision.From,
			To:        decision.To,
			RuleID:    decision.RuleID,
			RuleName:  decision.RuleName,
			Reason:    decision.Reason,
			UserID:    decision.UserID,
			Timestamp: decision.Timestamp,
		})
		return decision
	}

	e.stats.recordPass()
	return nil
}

// History returns the recorded redirect entries, oldest first.
func (e *Engine) History() []Entry {
	return e.history.snapshot()
}

// Stats returns a point-in-time copy of the evaluation counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// resort rebuilds the copy-on-write evaluation snapshot: priority
// descending, then name ascending so equal priorities stay deterministic
// regardless of registration order. Callers hold the write lock.
func (e *Engine) resort() {
	snapshot := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		snapshot = append(snapshot, *r)
	}
	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].Priority != snapshot[j].Priority {
			return snapshot[i].Priority > snapshot[j].Priority
		}
		return snapshot[i].Name < snapshot[j].Name
	})
	e.snapshot = snapshot
}
