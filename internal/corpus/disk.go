package corpus

import (
	"os"
	"path/filepath"

	"github.com/hyperjump/shikiri/internal/models"
)

// Stats summarizes the corpus root for the status endpoint.
type Stats struct {
	Tenants   int   `json:"tenants"`
	Documents int   `json:"documents"`
	DiskBytes int64 `json:"disk_usage_bytes"`
}

// DiskStats walks the corpus root and counts tenant partitions, files, and
// total bytes. Tenant names that fail validation are skipped so stray
// directories never count as tenants. A missing root yields zero stats.
func (l *Loader) DiskStats() (Stats, error) {
	var stats Stats
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ValidateTenantID(models.TenantID(entry.Name())) != nil {
			continue
		}
		stats.Tenants++
		n, bytes, err := partitionSize(filepath.Join(l.root, entry.Name()))
		if err != nil {
			return stats, err
		}
		stats.Documents += n
		stats.DiskBytes += bytes
	}
	return stats, nil
}

func partitionSize(dir string) (files int, bytes int64, err error) {
	err = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			files++
			bytes += info.Size()
		}
		return nil
	})
	return files, bytes, err
}
