package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	minCost       = 12
	maxCost       = 24
	minSaltLength = 16
	keyLength     = 32
	algorithmID   = "pbkdf2-sha256"
)

// Config holds the tunable hashing parameters. Cost is the base-2 exponent
// of the PBKDF2 iteration count; SaltLength is in bytes.
type Config struct {
	Cost       int
	SaltLength int
}

// Hasher performs one-way password hashing and verification.
type Hasher struct {
	config Config
}

type parsedPHC struct {
	cost int
	salt []byte
	key  []byte
}

// NewHasher validates cfg and returns a ready Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives a 256-bit key from password with a fresh random salt and
// returns the encoded salt+key as one opaque string.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, 1<<h.config.Cost, keyLength, sha256.New)

	return fmt.Sprintf(
		"$%s$c=%d$%s$%s",
		algorithmID,
		h.config.Cost,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives the key using the salt and cost embedded in encodedHash
// and compares in constant time over the full key length. A malformed
// stored hash verifies false; Verify never panics and never reports why.
func (h *Hasher) Verify(password, encodedHash string) bool {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}

	computed := pbkdf2.Key([]byte(password), parsed.salt, 1<<parsed.cost, len(parsed.key), sha256.New)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost
// than currently configured. Malformed hashes report true.
func (h *Hasher) NeedsUpgrade(encodedHash string) bool {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return true
	}
	return parsed.cost < h.config.Cost
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	costPart := parts[2]
	if !strings.HasPrefix(costPart, "c=") {
		return nil, errors.New("missing cost parameter")
	}
	cost, err := strconv.Atoi(strings.TrimPrefix(costPart, "c="))
	if err != nil || cost < minCost || cost > maxCost {
		return nil, errors.New("invalid cost parameter")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < minSaltLength {
		return nil, errors.New("invalid salt length")
	}

	key, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid key encoding")
	}
	if len(key) == 0 {
		return nil, errors.New("invalid key length")
	}

	return &parsedPHC{cost: cost, salt: salt, key: key}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Cost < minCost {
		return fmt.Errorf("password cost must be >= %d", minCost)
	}
	if cfg.Cost > maxCost {
		return fmt.Errorf("password cost must be <= %d", maxCost)
	}
	if cfg.SaltLength < minSaltLength {
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	}

	return nil
}
