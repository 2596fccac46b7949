// Package corpus loads tenant document partitions from disk. The loader is
// the storage boundary: it re-validates tenant identifiers and enforces
// root containment even though identifiers come from the resolver-controlled
// credential table.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/extract"
	"github.com/hyperjump/shikiri/internal/models"
)

// tenantIDPattern is the allow-list for tenant identifiers. Anything outside
// letters, digits, underscore, and hyphen is rejected before storage is
// touched.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTenantID rejects identifiers that could select anything other than
// a direct child directory of the corpus root. The explicit traversal checks
// are redundant with the allow-list pattern; they stay so that loosening the
// pattern later cannot silently re-open traversal.
func ValidateTenantID(id models.TenantID) error {
	s := string(id)
	switch {
	case s == "":
		return apperr.New(apperr.EForbiddenTenant, "empty tenant identifier")
	case strings.Contains(s, ".."):
		return apperr.New(apperr.EForbiddenTenant, "tenant identifier contains parent-directory sequence")
	case strings.ContainsAny(s, `/\`):
		return apperr.New(apperr.EForbiddenTenant, "tenant identifier contains path separator")
	case strings.ContainsRune(s, 0):
		return apperr.New(apperr.EForbiddenTenant, "tenant identifier contains NUL byte")
	case !tenantIDPattern.MatchString(s):
		return apperr.New(apperr.EForbiddenTenant, "tenant identifier contains invalid characters")
	}
	return nil
}

// Loader reads a tenant's documents from <root>/<tenantID>/.
type Loader struct {
	root         string
	extensions   map[string]struct{}
	maxFileBytes int64
	extractor    *extract.Extractor
	cache        *cache
	logger       *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache enables the per-tenant document cache.
func WithCache() LoaderOption {
	return func(l *Loader) { l.cache = newCache() }
}

// WithMaxFileBytes caps the size of a single corpus file; larger files are
// skipped with a warning.
func WithMaxFileBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxFileBytes = n
		}
	}
}

// WithLogger sets a logger for skip warnings and debug output.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

const defaultMaxFileBytes = 10 << 20

// NewLoader creates a loader rooted at root. The root is canonicalized once
// here; every per-request containment check compares against this resolved
// path. extensions lists eligible file suffixes (with leading dot).
func NewLoader(root string, extensions []string, opts ...LoaderOption) (*Loader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	l := &Loader{
		root:         abs,
		extensions:   make(map[string]struct{}, len(extensions)),
		maxFileBytes: defaultMaxFileBytes,
		extractor:    extract.NewExtractor(),
		logger:       zap.NewNop(),
	}
	for _, ext := range extensions {
		l.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Root returns the canonicalized corpus root.
func (l *Loader) Root() string {
	return l.root
}

// Load returns every eligible document in the tenant's partition, ordered
// lexicographically by source name. An empty partition yields an empty
// (non-nil) slice. A missing or unreadable partition fails with a generic
// unavailable error that does not distinguish "does not exist" from
// "cannot be read".
func (l *Loader) Load(ctx context.Context, tenantID models.TenantID) ([]models.Document, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	if l.cache != nil {
		if docs, ok := l.cache.get(tenantID); ok {
			return docs, nil
		}
	}

	dir := filepath.Join(l.root, string(tenantID))
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.EUnavailable, "tenant corpus unavailable", err)
	}
	rel, err := filepath.Rel(l.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, apperr.New(apperr.EForbiddenTenant, "tenant partition escapes corpus root")
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, apperr.Wrap(apperr.EUnavailable, "tenant corpus unavailable", err)
	}

	// os.ReadDir returns entries sorted by filename, which fixes document
	// order for the match engine's tie-break contract.
	docs := make([]models.Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := l.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			l.logger.Warn("skipping unreadable corpus file", zap.String("source", name), zap.Error(err))
			continue
		}
		if info.Size() > l.maxFileBytes {
			l.logger.Warn("skipping oversized corpus file",
				zap.String("source", name), zap.Int64("size", info.Size()))
			continue
		}
		content, err := os.ReadFile(filepath.Join(resolved, name))
		if err != nil {
			l.logger.Warn("skipping unreadable corpus file", zap.String("source", name), zap.Error(err))
			continue
		}
		text, err := l.extractor.ExtractName(content, name)
		if err != nil {
			l.logger.Warn("skipping unextractable corpus file", zap.String("source", name), zap.Error(err))
			continue
		}
		docs = append(docs, models.Document{Source: name, Content: text})
	}

	if l.cache != nil {
		l.cache.set(tenantID, docs)
	}
	return docs, nil
}

// Invalidate drops the cached documents for one tenant. No-op when caching
// is disabled.
func (l *Loader) Invalidate(tenantID models.TenantID) {
	if l.cache != nil {
		l.cache.invalidate(tenantID)
	}
}

// InvalidateAll drops every cached partition.
func (l *Loader) InvalidateAll() {
	if l.cache != nil {
		l.cache.invalidateAll()
	}
}

// TenantForPath maps a filesystem path under the corpus root to the tenant
// partition it belongs to. Used by the watcher to invalidate the right cache
// entry on file events. Returns false for paths outside the root.
func (l *Loader) TenantForPath(path string) (models.TenantID, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	id := models.TenantID(parts[0])
	if ValidateTenantID(id) != nil {
		return "", false
	}
	return id, true
}
