// Package id provides unique identifier generation for compression requests.
package id

import "github.com/google/uuid"

// Prefix is prepended to every generated request ID.
const Prefix = "req-"

// Generate creates a new unique request ID.
// Format: req-<uuid>
// Example: req-9b2f7c1e-4a0d-4d51-8f63-1c2b3a4d5e6f
func Generate() string {
	return Prefix + uuid.NewString()
}
