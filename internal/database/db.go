package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "triage.db")

	// WAL keeps evidence writes from blocking watchlist reads
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		// Evidence audit log. sha256 is unique because the timestamp is
		// part of the hashed payload.
		`CREATE TABLE IF NOT EXISTS evidence_records (
			id TEXT PRIMARY KEY,
			record_key TEXT NOT NULL UNIQUE,
			sha256 TEXT NOT NULL UNIQUE,
			decision TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Per-client watchlists; topics and accounts are JSON arrays
		`CREATE TABLE IF NOT EXISTS watchlists (
			client TEXT PRIMARY KEY,
			topics TEXT NOT NULL,
			accounts TEXT NOT NULL,
			roi_threshold REAL NOT NULL DEFAULT 1.0,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS harm_weights (
			topic TEXT PRIMARY KEY,
			weight REAL NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Admin mutations (watchlist/harm-weight writes) for audit
		`CREATE TABLE IF NOT EXISTS admin_audit_logs (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			operation TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_evidence_sha256 ON evidence_records(sha256)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_decision ON evidence_records(decision)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_created ON evidence_records(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON admin_audit_logs(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_evidence": `INSERT INTO evidence_records (id, record_key, sha256, decision, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(sha256) DO NOTHING`,

		"get_evidence_by_hash": `SELECT record_key, sha256, decision, payload, created_at
			FROM evidence_records WHERE sha256 = ?`,

		"list_evidence_keys": `SELECT record_key FROM evidence_records ORDER BY created_at ASC`,

		"upsert_watchlist": `INSERT INTO watchlists (client, topics, accounts, roi_threshold, updated_at)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT(client) DO UPDATE SET
			topics = excluded.topics,
			accounts = excluded.accounts,
			roi_threshold = excluded.roi_threshold,
			updated_at = excluded.updated_at`,

		"get_watchlist": `SELECT client, topics, accounts, roi_threshold FROM watchlists WHERE client = ?`,

		"list_watchlists": `SELECT client, topics, accounts, roi_threshold FROM watchlists`,

		"upsert_harm_weight": `INSERT INTO harm_weights (topic, weight, updated_at)
			VALUES (?, ?, ?) ON CONFLICT(topic) DO UPDATE SET
			weight = excluded.weight,
			updated_at = excluded.updated_at`,

		"list_harm_weights": `SELECT topic, weight FROM harm_weights`,

		"insert_audit_log": `INSERT INTO admin_audit_logs (id, subject, operation, ip_address, created_at)
			VALUES (?, ?, ?, ?, ?)`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
