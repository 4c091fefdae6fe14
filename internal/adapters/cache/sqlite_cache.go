package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

// SQLiteCache is a SQLite implementation of the ClassificationCache interface.
// Entries survive process restarts so re-scans of large mailboxes do not pay
// for the same attachment twice.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, ttl, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classification_cache (
			content_key TEXT PRIMARY KEY,
			result TEXT,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on expires_at for faster cleanup
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_expires_at ON classification_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
		db:          db,
		logger:      logger,
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached classification by content key
func (c *SQLiteCache) Get(ctx context.Context, key string) (*core.ClassificationResult, bool) {
	var raw string

	err := c.db.QueryRowContext(ctx, `
		SELECT result
		FROM classification_cache
		WHERE content_key = ? AND expires_at > datetime('now')
	`, key).Scan(&raw)

	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("key", key))
		}
		return nil, false
	}

	var result core.ClassificationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Error("Failed to decode cached classification", zap.Error(err), zap.String("key", key))
		return nil, false
	}
	return &result, true
}

// Set stores a classification under its content key
func (c *SQLiteCache) Set(ctx context.Context, key string, result *core.ClassificationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}

	expiresAt := time.Now().Add(c.ttl)
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO classification_cache (content_key, result, expires_at)
		VALUES (?, ?, ?)
	`, key, string(raw), expiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM classification_cache
		WHERE expires_at <= datetime('now')
	`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *SQLiteCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the background cleanup task and closes the database connection
func (c *SQLiteCache) Close() error {
	close(c.stopCh)
	return c.db.Close()
}
