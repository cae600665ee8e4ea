package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveEvidence inserts an evidence record. Duplicate hashes are a no-op;
// re-archiving identical payloads is harmless.
func (r *Repository) SaveEvidence(ctx context.Context, row EvidenceRow) error {
	stmt, err := r.db.GetPreparedStatement("insert_evidence")
	if err != nil {
		return err
	}

	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	if _, err := stmt.ExecContext(ctx, row.ID, row.RecordKey, row.SHA256, row.Decision, row.Payload, row.CreatedAt); err != nil {
		return fmt.Errorf("failed to save evidence record: %w", err)
	}
	return nil
}

// GetEvidenceByHash looks an evidence record up by its full SHA-256.
func (r *Repository) GetEvidenceByHash(ctx context.Context, hash string) (*EvidenceRow, error) {
	stmt, err := r.db.GetPreparedStatement("get_evidence_by_hash")
	if err != nil {
		return nil, err
	}

	var row EvidenceRow
	err = stmt.QueryRowContext(ctx, hash).Scan(&row.RecordKey, &row.SHA256, &row.Decision, &row.Payload, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence record: %w", err)
	}
	return &row, nil
}

// ListEvidenceKeys returns all record keys in insertion order.
func (r *Repository) ListEvidenceKeys(ctx context.Context) ([]string, error) {
	stmt, err := r.db.GetPreparedStatement("list_evidence_keys")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan evidence key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpsertWatchlist replaces a client's stored watchlist.
func (r *Repository) UpsertWatchlist(ctx context.Context, row WatchlistRow) error {
	stmt, err := r.db.GetPreparedStatement("upsert_watchlist")
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, row.Client, row.Topics, row.Accounts, row.ROIThreshold, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert watchlist for %s: %w", row.Client, err)
	}
	return nil
}

// GetWatchlist fetches one client's stored watchlist.
func (r *Repository) GetWatchlist(ctx context.Context, client string) (*WatchlistRow, error) {
	stmt, err := r.db.GetPreparedStatement("get_watchlist")
	if err != nil {
		return nil, err
	}

	var row WatchlistRow
	err = stmt.QueryRowContext(ctx, client).Scan(&row.Client, &row.Topics, &row.Accounts, &row.ROIThreshold)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	return &row, nil
}

// ListWatchlists returns every stored watchlist.
func (r *Repository) ListWatchlists(ctx context.Context) ([]WatchlistRow, error) {
	stmt, err := r.db.GetPreparedStatement("list_watchlists")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	defer rows.Close()

	var out []WatchlistRow
	for rows.Next() {
		var row WatchlistRow
		if err := rows.Scan(&row.Client, &row.Topics, &row.Accounts, &row.ROIThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertHarmWeight stores a topic weight.
func (r *Repository) UpsertHarmWeight(ctx context.Context, topic string, weight float64) error {
	stmt, err := r.db.GetPreparedStatement("upsert_harm_weight")
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, topic, weight, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert harm weight for %s: %w", topic, err)
	}
	return nil
}

// ListHarmWeights returns every stored topic weight.
func (r *Repository) ListHarmWeights(ctx context.Context) ([]HarmWeightRow, error) {
	stmt, err := r.db.GetPreparedStatement("list_harm_weights")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list harm weights: %w", err)
	}
	defer rows.Close()

	var out []HarmWeightRow
	for rows.Next() {
		var row HarmWeightRow
		if err := rows.Scan(&row.Topic, &row.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan harm weight: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LogAdminMutation records an admin write for audit.
func (r *Repository) LogAdminMutation(ctx context.Context, subject, operation, ipAddress string) error {
	stmt, err := r.db.GetPreparedStatement("insert_audit_log")
	if err != nil {
		return err
	}

	entry := NewAuditLog(subject, operation, ipAddress)
	if _, err := stmt.ExecContext(ctx, entry.ID, entry.Subject, entry.Operation, entry.IPAddress, entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to log admin mutation: %w", err)
	}
	return nil
}
