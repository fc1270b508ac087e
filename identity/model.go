package identity

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the business role attached to a user account.
type Role string

const (
	// RoleCustomer is the default role for self-service sign-ups.
	RoleCustomer Role = "customer"
	// RoleDealer marks accounts operating a dealer workspace.
	RoleDealer Role = "dealer"
	// RoleAdmin marks back-office accounts.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDealer, RoleAdmin:
		return true
	}
	return false
}

// User is the stored profile record. The password hash lives in a separate
// credential record and is never part of User.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileComplete reports whether the mandatory profile fields are filled.
// The redirect engine forces incomplete profiles onto the completion page.
func (u *User) ProfileComplete() bool {
	if u == nil {
		return false
	}
	return u.FirstName != "" && u.LastName != "" && u.PhoneNumber != ""
}

// CreateInput is the profile portion of a sign-up. Email is normalized to
// lowercase before it touches the index.
type CreateInput struct {
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Role        Role
}

// Patch is a partial profile update. Nil fields are left untouched.
// Email changes are excluded: they would require re-keying the uniqueness
// index atomically, which the store cannot do.
type Patch struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encodeUser(u *User) ([]byte, error) {
	return json.Marshal(u)
}

func decodeUser(data []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
