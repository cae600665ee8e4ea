package database

import (
	"context"
	"fmt"
	"time"

	"github.com/truthshield/triage/internal/encoding"
	"github.com/truthshield/triage/internal/evidence"
	"github.com/truthshield/triage/internal/triage"
	"github.com/truthshield/triage/internal/watchlist"
)

// EvidenceStore implements evidence.Store on sqlite.
type EvidenceStore struct {
	repo *Repository
}

// NewEvidenceStore creates a durable evidence store.
func NewEvidenceStore(repo *Repository) *EvidenceStore {
	return &EvidenceStore{repo: repo}
}

func (s *EvidenceStore) Put(ctx context.Context, record evidence.Record) error {
	payload, err := encoding.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode evidence record: %w", err)
	}

	return s.repo.SaveEvidence(ctx, EvidenceRow{
		RecordKey: record.Key,
		SHA256:    record.SHA256,
		Decision:  record.Payload.Decision,
		Payload:   string(payload),
		CreatedAt: time.Now(),
	})
}

func (s *EvidenceStore) Get(ctx context.Context, hash string) (evidence.Record, bool, error) {
	row, err := s.repo.GetEvidenceByHash(ctx, hash)
	if err != nil {
		return evidence.Record{}, false, err
	}
	if row == nil {
		return evidence.Record{}, false, nil
	}

	var record evidence.Record
	if err := encoding.Unmarshal([]byte(row.Payload), &record); err != nil {
		return evidence.Record{}, false, fmt.Errorf("failed to decode evidence record: %w", err)
	}
	return record, true, nil
}

func (s *EvidenceStore) Keys(ctx context.Context) ([]string, error) {
	return s.repo.ListEvidenceKeys(ctx)
}

// WatchlistStore is a durable watchlist.Store: an in-memory store serves
// every read, writes go through to sqlite. Reads never touch the database
// on the scoring path.
type WatchlistStore struct {
	mem  *watchlist.MemoryStore
	repo *Repository
}

// NewWatchlistStore loads all stored watchlists into memory.
func NewWatchlistStore(ctx context.Context, repo *Repository) (*WatchlistStore, error) {
	store := &WatchlistStore{mem: watchlist.NewMemoryStore(), repo: repo}

	rows, err := repo.ListWatchlists(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		fields, err := rowToFields(row)
		if err != nil {
			return nil, fmt.Errorf("corrupt watchlist row for %s: %w", row.Client, err)
		}
		if _, err := store.mem.Upsert(row.Client, fields); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *WatchlistStore) Get(client string) (watchlist.Entry, bool) {
	return s.mem.Get(client)
}

func (s *WatchlistStore) Upsert(client string, fields watchlist.Fields) (watchlist.Entry, error) {
	entry, err := s.mem.Upsert(client, fields)
	if err != nil {
		return entry, err
	}

	row, err := entryToRow(client, entry)
	if err != nil {
		return entry, err
	}
	if err := s.repo.UpsertWatchlist(context.Background(), row); err != nil {
		return entry, err
	}
	return entry, nil
}

func (s *WatchlistStore) List() (map[string]watchlist.Entry, error) {
	return s.mem.List()
}

func rowToFields(row WatchlistRow) (watchlist.Fields, error) {
	var topics, accounts []string
	if err := encoding.Unmarshal([]byte(row.Topics), &topics); err != nil {
		return watchlist.Fields{}, err
	}
	if err := encoding.Unmarshal([]byte(row.Accounts), &accounts); err != nil {
		return watchlist.Fields{}, err
	}

	roi := row.ROIThreshold
	return watchlist.Fields{Topics: &topics, Accounts: &accounts, ROIThreshold: &roi}, nil
}

func entryToRow(client string, entry watchlist.Entry) (WatchlistRow, error) {
	topics, err := encoding.Marshal(entry.Topics)
	if err != nil {
		return WatchlistRow{}, err
	}
	accounts, err := encoding.Marshal(entry.Accounts)
	if err != nil {
		return WatchlistRow{}, err
	}

	return WatchlistRow{
		Client:       client,
		Topics:       string(topics),
		Accounts:     string(accounts),
		ROIThreshold: entry.ROIThreshold,
	}, nil
}

// LoadHarmWeights applies stored topic weights over the table's defaults.
func LoadHarmWeights(ctx context.Context, repo *Repository, table *triage.HarmWeightTable) error {
	rows, err := repo.ListHarmWeights(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		table.Set(row.Topic, row.Weight)
	}
	return nil
}
