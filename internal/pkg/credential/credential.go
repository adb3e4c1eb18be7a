package credential

import "errors"

var ErrNotFound = errors.New("no secret stored for this account")

// Store abstracts where a portal secret lives. The core treats secrets
// as opaque strings and never persists them itself; callers substitute
// an in-memory store in tests.
type Store interface {
	// Get returns the secret for an account, or ErrNotFound.
	Get(account string) (string, error)

	// Set stores or replaces the secret for an account.
	Set(account, secret string) error

	// Delete removes the secret for an account. Deleting a missing
	// account is not an error.
	Delete(account string) error
}
