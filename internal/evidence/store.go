package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/truthshield/triage/internal/encoding"
)

// Store persists evidence records. Get looks records up by their full
// SHA-256 hash.
type Store interface {
	Put(ctx context.Context, record Record) error
	Get(ctx context.Context, hash string) (Record, bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStore keeps records in process. Used in tests and as a read-through
// layer in front of durable backends.
type MemoryStore struct {
	mu      sync.RWMutex
	byHash  map[string]Record
	ordered []string
}

// NewMemoryStore creates an empty in-memory evidence store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[record.SHA256]; !exists {
		s.ordered = append(s.ordered, record.Key)
	}
	s.byHash[record.SHA256] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, hash string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byHash[hash]
	return record, ok, nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.ordered...), nil
}

// FileStore writes one JSON file per record under a base directory. Writes
// go through a temp file and rename, so a crash mid-write never leaves a
// truncated record behind.
type FileStore struct {
	baseDir string

	mu     sync.RWMutex
	byHash map[string]string // hash -> key
}

// NewFileStore creates the base directory if needed and indexes any
// records already present.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}

	store := &FileStore{baseDir: baseDir, byHash: make(map[string]string)}
	if err := store.reindex(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *FileStore) reindex() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("scan evidence dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		var record Record
		if err := encoding.Unmarshal(data, &record); err != nil || record.SHA256 == "" {
			continue
		}
		s.byHash[record.SHA256] = record.Key
	}
	return nil
}

func (s *FileStore) Put(_ context.Context, record Record) error {
	data, err := encoding.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal evidence record: %w", err)
	}

	final := filepath.Join(s.baseDir, record.Key+".json")
	tmp, err := os.CreateTemp(s.baseDir, record.Key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create evidence temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write evidence record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close evidence temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish evidence record: %w", err)
	}

	s.mu.Lock()
	s.byHash[record.SHA256] = record.Key
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Get(_ context.Context, hash string) (Record, bool, error) {
	s.mu.RLock()
	key, ok := s.byHash[hash]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read evidence record: %w", err)
	}

	var record Record
	if err := encoding.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode evidence record: %w", err)
	}
	return record, true, nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.byHash))
	for _, key := range s.byHash {
		keys = append(keys, key)
	}
	return keys, nil
}
