package redirect

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds the redirect history ring when the engine is
// built without an explicit size.
const DefaultHistorySize = 256

// Entry is one recorded redirect decision. Append-only, observability only.
type Entry struct {
	From      string
	To        string
	RuleID    string
	RuleName  string
	Reason    string
	UserID    string
	Timestamp time.Time
}

// history is a bounded ring buffer. Once full, the oldest entry is
// overwritten.
type history struct {
	mu   sync.Mutex
	buf  []Entry
	next int
	full bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &history{buf: make([]Entry, size)}
}

func (h *history) append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = e
	h.next++
	if h.next == len(h.buf) {
		h.next = 0
		h.full = true
	}
}

// snapshot returns the recorded entries oldest-first.
func (h *history) snapshot() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]Entry, h.next)
		copy(out, h.buf[:h.next])
		return out
	}

	out := make([]Entry, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	out = append(out, h.buf[:h.next]...)
	return out
}

// Stats is a point-in-time snapshot of evaluation counters.
type Stats struct {
	Evaluated  uint64
	Redirected uint64
	Passed     uint64
	ByRule     map[string]uint64
}

type stats struct {
	mu         sync.Mutex
	evaluated  uint64
	redirected uint64
	passed     uint64
	byRule     map[string]uint64
}

func newStats() *stats {
	return &stats{byRule: map[string]uint64{}}
}

func (s *stats) recordPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluated++
	s.passed++
}

func (s *stats) recordRedirect(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluated++
	s.redirected++
	s.byRule[ruleID]++
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRule := make(map[string]uint64, len(s.byRule))
	for k, v := range s.byRule {
		byRule[k] = v
	}
	return Stats{
		Evaluated:  s.evaluated,
		Redirected: s.redirected,
		Passed:     s.passed,
		ByRule:     byRule,
	}
}
