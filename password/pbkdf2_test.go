package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(Config{Cost: minCost, SaltLength: 16})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !strings.HasPrefix(encoded, "$pbkdf2-sha256$c=") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	if !h.Verify("correct-horse-battery", encoded) {
		t.Fatal("expected verify to succeed for matching password")
	}
	if h.Verify("wrong-password-entirely", encoded) {
		t.Fatal("expected verify to fail for non-matching password")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("same-password-twice")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := h.Hash("same-password-twice")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if first == second {
		t.Fatal("two hashes of one password must differ (random salt)")
	}
	if !h.Verify("same-password-twice", first) || !h.Verify("same-password-twice", second) {
		t.Fatal("both salted hashes must verify")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := testHasher(t)

	malformed := []string{
		"",
		"plaintext",
		"$pbkdf2-sha256$c=12$salt",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$pbkdf2-sha256$c=3$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$pbkdf2-sha256$c=12$!!!$aGFzaA",
		"$pbkdf2-sha256$c=12$c2FsdHNhbHRzYWx0c2FsdA$!!!",
	}

	for _, encoded := range malformed {
		if h.Verify("anything", encoded) {
			t.Fatalf("malformed hash verified true: %q", encoded)
		}
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	h := testHasher(t)

	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected error hashing empty password")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	low := testHasher(t)

	encoded, err := low.Hash("upgrade-candidate")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	high, err := NewHasher(Config{Cost: minCost + 1, SaltLength: 16})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	if low.NeedsUpgrade(encoded) {
		t.Fatal("hash at configured cost must not need upgrade")
	}
	if !high.NeedsUpgrade(encoded) {
		t.Fatal("hash below configured cost must need upgrade")
	}
	if !high.Verify("upgrade-candidate", encoded) {
		t.Fatal("old-cost hash must still verify (cost embedded in encoding)")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []Config{
		{Cost: minCost - 1, SaltLength: 16},
		{Cost: maxCost + 1, SaltLength: 16},
		{Cost: minCost, SaltLength: 8},
	}

	for _, cfg := range cases {
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("expected config rejection for %+v", cfg)
		}
	}
}
