package backend

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache stores tool output keyed by a digest of the command and its inputs
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache database at path
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cached_output (
		key TEXT PRIMARY KEY,
		output BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the output stored under key
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var output []byte
	err := c.db.QueryRow(`SELECT output FROM cached_output WHERE key = ?`, key).Scan(&output)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached output: %w", err)
	}
	return output, true, nil
}

// Put stores output under key, replacing any previous value
func (c *Cache) Put(key string, output []byte) error {
	if output == nil {
		output = []byte{}
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO cached_output (key, output, created_at) VALUES (?, ?, ?)`,
		key, output, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cached output: %w", err)
	}
	return nil
}

// Close releases the database
func (c *Cache) Close() error {
	return c.db.Close()
}
