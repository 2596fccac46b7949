// Package models defines core data structures for tenants, documents, queries, and responses.
package models

// TenantID identifies one isolated tenant. A TenantID maps 1:1 to a corpus
// partition directory under the storage root; it must never contain path
// separators or parent-directory sequences. Validation lives at the storage
// boundary (corpus package), not here.
type TenantID string

func (t TenantID) String() string {
	return string(t)
}
