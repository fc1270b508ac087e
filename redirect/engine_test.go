package redirect

import (
	"errors"
	"testing"
	"time"
)

func staticRule(id string, priority int, to string) Rule {
	return Rule{
		ID:          id,
		Name:        id,
		Priority:    priority,
		Enabled:     true,
		Condition:   func(Context) bool { return true },
		Destination: Literal(to),
	}
}

func testContext(path string) Context {
	return Context{Pathname: path, Timestamp: time.Now()}
}

func TestEvaluatePicksHighestPriority(t *testing.T) {
	e := NewEngine(0)

	// Registration order deliberately inverts priority order.
	if err := e.AddRule(staticRule("low", 10, "/low")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := e.AddRule(staticRule("high", 90, "/high")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := e.AddRule(staticRule("mid", 50, "/mid")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		decision := e.Evaluate(testContext("/x"))
		if decision == nil || decision.To != "/high" {
			t.Fatalf("iteration %d: expected /high, got %+v", i, decision)
		}
	}
}

func TestEvaluateTieBreaksOnName(t *testing.T) {
	e := NewEngine(0)

	if err := e.AddRule(staticRule("zeta", 50, "/zeta")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := e.AddRule(staticRule("alpha", 50, "/alpha")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	decision := e.Evaluate(testContext("/x"))
	if decision == nil || decision.To != "/alpha" {
		t.Fatalf("expected name tie-break to /alpha, got %+v", decision)
	}
}

func TestEvaluateSkipsDisabledAndNonMatching(t *testing.T) {
	e := NewEngine(0)

	high := staticRule("high", 90, "/high")
	high.Enabled = false
	if err := e.AddRule(high); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	never := staticRule("never", 70, "/never")
	never.Condition = func(Context) bool { return false }
	if err := e.AddRule(never); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	if err := e.AddRule(staticRule("low", 10, "/low")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	decision := e.Evaluate(testContext("/x"))
	if decision == nil || decision.To != "/low" {
		t.Fatalf("expected /low, got %+v", decision)
	}
}

func TestEvaluateNoMatchPasses(t *testing.T) {
	e := NewEngine(0)

	never := staticRule("never", 50, "/never")
	never.Condition = func(Context) bool { return false }
	if err := e.AddRule(never); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	if decision := e.Evaluate(testContext("/x")); decision != nil {
		t.Fatalf("expected pass, got %+v", decision)
	}

	stats := e.Stats()
	if stats.Evaluated != 1 || stats.Passed != 1 || stats.Redirected != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRuleMutation(t *testing.T) {
	e := NewEngine(0)

	if err := e.AddRule(staticRule("r", 50, "/old")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := e.AddRule(staticRule("r", 60, "/dup")); !errors.Is(err, ErrRuleExists) {
		t.Fatalf("expected ErrRuleExists, got %v", err)
	}

	if err := e.DisableRule("r"); err != nil {
		t.Fatalf("DisableRule failed: %v", err)
	}
	if decision := e.Evaluate(testContext("/x")); decision != nil {
		t.Fatalf("disabled rule matched: %+v", decision)
	}

	if err := e.EnableRule("r"); err != nil {
		t.Fatalf("EnableRule failed: %v", err)
	}
	dest := Literal("/new")
	if err := e.UpdateRule("r", Patch{Destination: &dest}); err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	if decision := e.Evaluate(testContext("/x")); decision == nil || decision.To != "/new" {
		t.Fatalf("expected updated destination, got %+v", decision)
	}

	if err := e.RemoveRule("r"); err != nil {
		t.Fatalf("RemoveRule failed: %v", err)
	}
	if err := e.RemoveRule("r"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := e.EnableRule("ghost"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestAddRuleValidation(t *testing.T) {
	e := NewEngine(0)

	bad := staticRule("", 10, "/x")
	if err := e.AddRule(bad); !errors.Is(err, ErrRuleInvalid) {
		t.Fatalf("expected ErrRuleInvalid for missing id, got %v", err)
	}

	bad = staticRule("r", 10, "/x")
	bad.Condition = nil
	if err := e.AddRule(bad); !errors.Is(err, ErrRuleInvalid) {
		t.Fatalf("expected ErrRuleInvalid for missing condition, got %v", err)
	}

	bad = staticRule("r", 10, "")
	if err := e.AddRule(bad); !errors.Is(err, ErrRuleInvalid) {
		t.Fatalf("expected ErrRuleInvalid for missing destination, got %v", err)
	}
}

func TestHistoryRingBounded(t *testing.T) {
	e := NewEngine(3)

	if err := e.AddRule(staticRule("r", 50, "/dest")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	paths := []string{"/a", "/b", "/c", "/d", "/e"}
	for _, p := range paths {
		if decision := e.Evaluate(testContext(p)); decision == nil {
			t.Fatalf("expected match for %s", p)
		}
	}

	entries := e.History()
	if len(entries) != 3 {
		t.Fatalf("expected bounded history of 3, got %d", len(entries))
	}
	// Oldest entries were overwritten; the rest arrive oldest-first.
	want := []string{"/c", "/d", "/e"}
	for i, entry := range entries {
		if entry.From != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], entry.From)
		}
	}

	stats := e.Stats()
	if stats.Redirected != 5 || stats.ByRule["r"] != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestEvaluateRecordsDecisionMetadata(t *testing.T) {
	e := NewEngine(0)

	rule := staticRule("r", 50, "/dest")
	rule.Reason = "test_reason"
	if err := e.AddRule(rule); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	decision := e.Evaluate(testContext("/from"))
	if decision == nil {
		t.Fatal("expected match")
	}
	if decision.From != "/from" || decision.RuleID != "r" || decision.Reason != "test_reason" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	entries := e.History()
	if len(entries) != 1 || entries[0].Reason != "test_reason" || entries[0].To != "/dest" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestConcurrentEvaluateAndToggle(t *testing.T) {
	e := NewEngine(0)

	if err := e.AddRule(staticRule("r", 50, "/dest")); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = e.DisableRule("r")
			_ = e.EnableRule("r")
		}
	}()

	for i := 0; i < 200; i++ {
		// Either outcome is legal mid-toggle; the engine just must not
		// race or corrupt its snapshot.
		_ = e.Evaluate(testContext("/x"))
	}
	<-done
}
