package credstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shikiri/internal/models"
)

// SQLiteStore reads credential entries from a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath and initializes the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize credentials schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		credential TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_credentials_tenant ON credentials(tenant);
	`
	_, err := db.Exec(schema)
	return err
}

// Load returns every credential row, ordered for determinism. The PRIMARY KEY
// on credential enforces the one-tenant-per-credential invariant at the
// schema level; checkDuplicates still runs as a cross-backend guarantee.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT credential, tenant FROM credentials ORDER BY credential`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var credential, tenant string
		if err := rows.Scan(&credential, &tenant); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		entries = append(entries, Entry{Credential: credential, Tenant: models.TenantID(tenant)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := checkDuplicates(entries); err != nil {
		return nil, fmt.Errorf("invalid credentials table: %w", err)
	}
	return entries, nil
}

// Put inserts or replaces one entry. Used by provisioning tooling and tests;
// request handling never writes.
func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO credentials (credential, tenant) VALUES (?, ?)`,
		e.Credential, string(e.Tenant))
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
