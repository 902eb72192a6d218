// Package idgen mints opaque identifiers for pools and VMs.
//
// The Controller and Host daemon depend on the Generator interface, not on
// any particular scheme, so tests can inject a deterministic fake.
package idgen

import "github.com/google/uuid"

// Generator mints a fresh opaque identifier.
type Generator interface {
	New() string
}

// UUID is the default Generator, backed by github.com/google/uuid.
type UUID struct{}

// New returns a fresh random UUID string.
func (UUID) New() string {
	return uuid.NewString()
}
