package snapshot

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CacheIndex maps (model path, prompt-prefix hash) -> snapshot file path, so
// a caller can look up an existing cached KV state without re-scanning the
// snapshot directory. It supplements the §4.6 framing; it is not a new
// snapshot format. Grounded on the teacher's internal/context/memory.Store:
// same database/sql + modernc.org/sqlite + prepared-statement + WAL-mode
// shape, repurposed from conversation-history rows to a cache index.
type CacheIndex struct {
	db         *sql.DB
	upsertStmt *sql.Stmt
	lookupStmt *sql.Stmt
	mu         sync.RWMutex
}

// OpenCacheIndex opens (and initializes) the SQLite-backed prompt-cache
// index at path.
func OpenCacheIndex(path string) (*CacheIndex, error) {
	if path == "" {
		path = "wizgo_snapshots.db"
	}
	if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure snapshot cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache index: %w", err)
	}

	if err := bootstrapCache(db); err != nil {
		db.Close()
		return nil, err
	}

	upsert, err := db.Prepare(`INSERT INTO prompt_cache (model_path, prefix_hash, snapshot_path, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(model_path, prefix_hash) DO UPDATE SET snapshot_path=excluded.snapshot_path, created_at=excluded.created_at`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	lookup, err := db.Prepare(`SELECT snapshot_path FROM prompt_cache WHERE model_path = ? AND prefix_hash = ?`)
	if err != nil {
		upsert.Close()
		db.Close()
		return nil, fmt.Errorf("failed to prepare lookup statement: %w", err)
	}

	return &CacheIndex{db: db, upsertStmt: upsert, lookupStmt: lookup}, nil
}

func bootstrapCache(db *sql.DB) error {
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return fmt.Errorf("failed to configure snapshot cache database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS prompt_cache (
			model_path    TEXT NOT NULL,
			prefix_hash   TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			PRIMARY KEY (model_path, prefix_hash)
		);
	`); err != nil {
		return fmt.Errorf("failed to create prompt_cache table: %w", err)
	}
	return nil
}

// PrefixHash hashes a prompt prefix for use as the cache key.
func PrefixHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Put records that snapshotPath holds the cached KV state for modelPath's
// prompt prefix identified by prefixHash.
func (c *CacheIndex) Put(modelPath, prefixHash, snapshotPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.upsertStmt.Exec(modelPath, prefixHash, snapshotPath, time.Now().Unix())
	return err
}

// Lookup returns the snapshot path cached for (modelPath, prefixHash), if any.
func (c *CacheIndex) Lookup(modelPath, prefixHash string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var path string
	err := c.lookupStmt.QueryRow(modelPath, prefixHash).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// Close releases the underlying database handle.
func (c *CacheIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookupStmt.Close()
	c.upsertStmt.Close()
	return c.db.Close()
}
