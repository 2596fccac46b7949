// Package auth resolves request credentials to tenant identities. Identity is
// exclusively a function of the credential value; nothing here ever looks at
// a request body.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/credstore"
	"github.com/hyperjump/shikiri/internal/models"
)

// Resolver maps credentials to tenants against an in-memory table snapshot.
// Reads are lock-shared and never block each other; Reload is the single
// writer that swaps the snapshot.
type Resolver struct {
	store  credstore.Store
	logger *zap.Logger

	mu      sync.RWMutex
	entries []credstore.Entry
}

// NewResolver loads the initial table snapshot from store.
func NewResolver(ctx context.Context, store credstore.Store, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{store: store, logger: logger}
	if err := r.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial credential load: %w", err)
	}
	return r, nil
}

// Resolve returns the tenant owning credential. A missing or unknown
// credential fails with the same apperr code and without naming any tenant,
// so responses cannot be used to probe which credentials exist.
//
// The lookup scans every entry with a constant-time comparison rather than
// indexing a map, so a rejected credential does comparable work to an
// accepted one regardless of where (or whether) it appears in the table.
func (r *Resolver) Resolve(credential string) (models.TenantID, error) {
	if credential == "" {
		return "", apperr.New(apperr.EUnauthorized, "missing API key")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found  int
		tenant models.TenantID
	)
	for _, e := range r.entries {
		if len(e.Credential) == len(credential) &&
			subtle.ConstantTimeCompare([]byte(e.Credential), []byte(credential)) == 1 {
			found = 1
			tenant = e.Tenant
		}
	}
	if found == 0 {
		return "", apperr.New(apperr.EUnauthorized, "invalid API key")
	}
	return tenant, nil
}

// Reload re-reads the table from the backing store and atomically swaps the
// snapshot. On error the previous snapshot stays in effect.
func (r *Resolver) Reload(ctx context.Context) error {
	entries, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload credentials: %w", err)
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.logger.Info("credential table loaded", zap.Int("entries", len(entries)))
	return nil
}

// Size returns the number of entries in the current snapshot.
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
