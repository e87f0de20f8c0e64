package address

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
)

// ValidationError reports a single invalid or missing address field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid address: " + e.Field + " " + e.Reason
}

// Address is a shipping destination. The same shape is used inside a
// checkout draft and as a saved customer address.
type Address struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default,omitempty"`
}

// Validate checks the required-field rules: non-empty name/email/phone/
// address/city, a 6-digit postal code, and a phone of at least 10 digits.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(a.Email) == "" || !strings.Contains(a.Email, "@") {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if digitCount(a.Phone) < 10 {
		return &ValidationError{Field: "phone", Reason: "must have at least 10 digits"}
	}
	if strings.TrimSpace(a.Line1) == "" {
		return &ValidationError{Field: "address", Reason: "is required"}
	}
	if strings.TrimSpace(a.City) == "" {
		return &ValidationError{Field: "city", Reason: "is required"}
	}
	if !isPostalCode(a.PostalCode) {
		return &ValidationError{Field: "postal_code", Reason: "must be 6 digits"}
	}
	return nil
}

// Fingerprint returns a stable identity for the address derived from its
// name, phone, street, city and postal code, normalized for case and
// whitespace. Re-saving an equivalent address updates rather than
// duplicates it.
func (a Address) Fingerprint() string {
	parts := []string{a.Name, a.Phone, a.Line1, a.City, a.PostalCode}
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func isPostalCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Repository defines persistence for saved customer addresses.
type Repository interface {
	// Upsert inserts or updates the row identified by fingerprint.
	Upsert(ctx context.Context, customerID, fingerprint string, addr Address) error
	// SetDefault marks one fingerprint as default and clears all others.
	SetDefault(ctx context.Context, customerID, fingerprint string) error
	List(ctx context.Context, customerID string) ([]Address, error)
}

// Store offers saved-address operations on top of a Repository.
type Store struct {
	repo Repository
}

// NewStore creates a Store backed by repo.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Save validates and upserts the address for the customer. When makeDefault
// is set, the address becomes the customer's single default.
func (s *Store) Save(ctx context.Context, customerID string, addr Address, makeDefault bool) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	fp := addr.Fingerprint()
	if err := s.repo.Upsert(ctx, customerID, fp, addr); err != nil {
		return errors.Wrap(err, "upsert address")
	}
	if makeDefault {
		if err := s.repo.SetDefault(ctx, customerID, fp); err != nil {
			return errors.Wrap(err, "set default address")
		}
	}
	return nil
}

// List returns the customer's saved addresses.
func (s *Store) List(ctx context.Context, customerID string) ([]Address, error) {
	return s.repo.List(ctx, customerID)
}
