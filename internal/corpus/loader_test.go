package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/models"
)

// writeCorpus builds a corpus root with the given tenant partitions.
func writeCorpus(t *testing.T, tenants map[string]map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for tenant, files := range tenants {
		dir := filepath.Join(root, tenant)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func newTestLoader(t *testing.T, root string, opts ...LoaderOption) *Loader {
	t.Helper()
	l, err := NewLoader(root, []string{".txt", ".md"}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestValidateTenantID(t *testing.T) {
	valid := []string{"tenantA", "tenant-b", "tenant_1", "T", "42"}
	for _, id := range valid {
		if err := ValidateTenantID(models.TenantID(id)); err != nil {
			t.Errorf("ValidateTenantID(%q): unexpected error %v", id, err)
		}
	}

	invalid := []string{
		"",
		"..",
		"../tenantB",
		"tenantA/../tenantB",
		"/etc",
		`tenant\b`,
		"tenant b",
		"tenant.b",
		"tenantA\x00",
		"tenanté", // no normalization aliasing: non-ASCII rejected outright
	}
	for _, id := range invalid {
		err := ValidateTenantID(models.TenantID(id))
		if apperr.ErrorCode(err) != apperr.EForbiddenTenant {
			t.Errorf("ValidateTenantID(%q): got code %q, want forbidden tenant", id, apperr.ErrorCode(err))
		}
	}
}

func TestLoad(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{
		"tenantA": {
			"docA2_sinistres.txt": "Un sinistre doit etre declare sous 5 jours.",
			"docA1_contrat.txt":   "La RC Pro couvre les dommages.",
			"notes.log":           "ignored extension",
		},
	})
	l := newTestLoader(t, root)

	docs, err := l.Load(context.Background(), "tenantA")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents: got %d, want 2", len(docs))
	}
	// Lexicographic by source name.
	if docs[0].Source != "docA1_contrat.txt" || docs[1].Source != "docA2_sinistres.txt" {
		t.Errorf("order: got [%s, %s]", docs[0].Source, docs[1].Source)
	}
	if docs[0].Content != "La RC Pro couvre les dommages." {
		t.Errorf("content: got %q", docs[0].Content)
	}
}

func TestLoad_emptyPartition(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{"tenantA": {}})
	l := newTestLoader(t, root)
	docs, err := l.Load(context.Background(), "tenantA")
	if err != nil {
		t.Fatal(err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("empty partition should yield empty non-nil slice, got %v", docs)
	}
}

func TestLoad_missingPartitionIsGenericUnavailable(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{"tenantA": {}})
	l := newTestLoader(t, root)
	_, err := l.Load(context.Background(), "tenantZ")
	if apperr.ErrorCode(err) != apperr.EUnavailable {
		t.Fatalf("missing partition: got code %q, want unavailable", apperr.ErrorCode(err))
	}
	// Operator message stays generic: no "not found" asymmetry to probe.
	if msg := apperr.ErrorMessage(err); msg != "tenant corpus unavailable" {
		t.Errorf("message should be generic, got %q", msg)
	}
}

func TestLoad_traversalRejectedBeforeStorage(t *testing.T) {
	secret := t.TempDir()
	if err := os.WriteFile(filepath.Join(secret, "secret.txt"), []byte("top secret"), 0600); err != nil {
		t.Fatal(err)
	}
	root := writeCorpus(t, map[string]map[string]string{"tenantA": {}})
	l := newTestLoader(t, root)

	for _, id := range []string{"../" + filepath.Base(secret), "..", secret, "tenantA/../tenantA"} {
		_, err := l.Load(context.Background(), models.TenantID(id))
		if apperr.ErrorCode(err) != apperr.EForbiddenTenant {
			t.Errorf("Load(%q): got code %q, want forbidden tenant", id, apperr.ErrorCode(err))
		}
	}
}

func TestLoad_symlinkEscapeRejected(t *testing.T) {
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "other.txt"), []byte("other tenant data"), 0600); err != nil {
		t.Fatal(err)
	}
	root := writeCorpus(t, map[string]map[string]string{"tenantA": {}})
	if err := os.Symlink(outside, filepath.Join(root, "sneaky")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	l := newTestLoader(t, root)

	_, err := l.Load(context.Background(), "sneaky")
	if apperr.ErrorCode(err) != apperr.EForbiddenTenant {
		t.Errorf("symlinked partition escaping root: got code %q, want forbidden tenant", apperr.ErrorCode(err))
	}
}

func TestLoad_oversizedFileSkipped(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{
		"tenantA": {
			"big.txt":   strings.Repeat("x", 100),
			"small.txt": "ok",
		},
	})
	l := newTestLoader(t, root, WithMaxFileBytes(10))
	docs, err := l.Load(context.Background(), "tenantA")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Source != "small.txt" {
		t.Errorf("oversized file should be skipped, got %v", docs)
	}
}

func TestLoad_cancelledContext(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{
		"tenantA": {"doc.txt": "content"},
	})
	l := newTestLoader(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, "tenantA"); err == nil {
		t.Error("cancelled context should abort the load")
	}
}

func TestLoad_cacheInvalidation(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{
		"tenantA": {"doc.txt": "version one"},
	})
	l := newTestLoader(t, root, WithCache())
	ctx := context.Background()

	docs, err := l.Load(ctx, "tenantA")
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Content != "version one" {
		t.Fatalf("got %q", docs[0].Content)
	}

	if err := os.WriteFile(filepath.Join(root, "tenantA", "doc.txt"), []byte("version two"), 0600); err != nil {
		t.Fatal(err)
	}

	// Cached until invalidated.
	docs, _ = l.Load(ctx, "tenantA")
	if docs[0].Content != "version one" {
		t.Errorf("cache should serve the old snapshot, got %q", docs[0].Content)
	}
	l.Invalidate("tenantA")
	docs, _ = l.Load(ctx, "tenantA")
	if docs[0].Content != "version two" {
		t.Errorf("invalidation should force a re-read, got %q", docs[0].Content)
	}
}

func TestTenantForPath(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{"tenantA": {}})
	l := newTestLoader(t, root)

	id, ok := l.TenantForPath(filepath.Join(root, "tenantA", "doc.txt"))
	if !ok || id != "tenantA" {
		t.Errorf("got (%q, %v)", id, ok)
	}
	if _, ok := l.TenantForPath("/elsewhere/doc.txt"); ok {
		t.Error("path outside root should not map to a tenant")
	}
	if _, ok := l.TenantForPath(l.Root()); ok {
		t.Error("the root itself should not map to a tenant")
	}
}

func TestDiskStats(t *testing.T) {
	root := writeCorpus(t, map[string]map[string]string{
		"tenantA": {"a.txt": "aaaa"},
		"tenantB": {"b1.txt": "bb", "b2.txt": "bb"},
	})
	l := newTestLoader(t, root)
	stats, err := l.DiskStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tenants != 2 {
		t.Errorf("tenants: got %d", stats.Tenants)
	}
	if stats.Documents != 3 {
		t.Errorf("documents: got %d", stats.Documents)
	}
	if stats.DiskBytes != 8 {
		t.Errorf("bytes: got %d", stats.DiskBytes)
	}
}
