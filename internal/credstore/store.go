// Package credstore loads the credential table that maps API credentials to
// tenants. Backends are read-only sources: the table is loaded into memory at
// startup (and on explicit reload) and never consulted per request.
package credstore

import (
	"context"
	"fmt"

	"github.com/hyperjump/shikiri/internal/models"
)

// Entry is one credential table row.
type Entry struct {
	Credential string          `yaml:"credential"`
	Tenant     models.TenantID `yaml:"tenant"`
}

// Store is a read-only source of credential entries.
type Store interface {
	// Load returns every entry. Implementations must fail on a duplicate
	// credential: a credential maps to at most one tenant.
	Load(ctx context.Context) ([]Entry, error)
	Close() error
}

// New returns the Store for the configured backend ("yaml" or "sqlite").
func New(backend, path string) (Store, error) {
	switch backend {
	case "yaml", "":
		return NewYAMLStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown credential backend %q", backend)
	}
}

// checkDuplicates returns an error if any credential appears twice. The error
// names the position, not the credential value, so logs never carry secrets.
func checkDuplicates(entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Credential == "" {
			return fmt.Errorf("entry %d: empty credential", i)
		}
		if e.Tenant == "" {
			return fmt.Errorf("entry %d: empty tenant", i)
		}
		if _, ok := seen[e.Credential]; ok {
			return fmt.Errorf("entry %d: duplicate credential", i)
		}
		seen[e.Credential] = struct{}{}
	}
	return nil
}
