package watchlist

import (
	"strings"
	"sync"

	"github.com/truthshield/triage/internal/types"
)

// Entry is one client's watchlist: tracked topics and accounts plus the ROI
// multiplier applied to the base virality threshold during pre-filtering.
type Entry struct {
	Topics       []string `json:"topics"`
	Accounts     []string `json:"accounts"`
	ROIThreshold float64  `json:"roi_threshold"`
}

// Fields carries the recognized upsert fields. Nil means "leave unchanged";
// anything else a caller sends is ignored at the boundary, not merged.
type Fields struct {
	Topics       *[]string `json:"topics,omitempty"`
	Accounts     *[]string `json:"accounts,omitempty"`
	ROIThreshold *float64  `json:"roi_threshold,omitempty"`
}

// Store is the watchlist contract the pre-filter and transport depend on.
// Implementations must give concurrent readers a consistent snapshot and
// replace entries atomically on write.
type Store interface {
	Get(client string) (Entry, bool)
	Upsert(client string, fields Fields) (Entry, error)
	List() (map[string]Entry, error)
}

// MemoryStore is the in-process Store. Entries are copied in and out, so
// readers never observe a writer's partial state.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory watchlist store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func normalizeClient(client string) string {
	return strings.ToLower(strings.TrimSpace(client))
}

// Get returns a copy of the client's entry.
func (s *MemoryStore) Get(client string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[normalizeClient(client)]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(entry), true
}

// Upsert merges the recognized fields into the client's entry, creating it
// with defaults (empty lists, ROI multiplier 1.0) if absent.
func (s *MemoryStore) Upsert(client string, fields Fields) (Entry, error) {
	key := normalizeClient(client)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = Entry{Topics: []string{}, Accounts: []string{}, ROIThreshold: 1.0}
	}

	if fields.Topics != nil {
		entry.Topics = append([]string{}, (*fields.Topics)...)
	}
	if fields.Accounts != nil {
		entry.Accounts = append([]string{}, (*fields.Accounts)...)
	}
	if fields.ROIThreshold != nil {
		entry.ROIThreshold = *fields.ROIThreshold
	}

	s.entries[key] = entry
	return copyEntry(entry), nil
}

// List returns a snapshot of all entries.
func (s *MemoryStore) List() (map[string]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.entries))
	for client, entry := range s.entries {
		out[client] = copyEntry(entry)
	}
	return out, nil
}

func copyEntry(entry Entry) Entry {
	return Entry{
		Topics:       append([]string{}, entry.Topics...),
		Accounts:     append([]string{}, entry.Accounts...),
		ROIThreshold: entry.ROIThreshold,
	}
}

// Match reports whether an item touches any watchlist entry, returning the
// matched entry. An item matches when its author is a tracked account or
// its harm topic / text mentions a tracked topic. The item's own client
// field, when set, scopes the lookup to that client's entry.
func Match(store Store, item types.ContentItem) (Entry, bool) {
	if item.Client != "" {
		entry, ok := store.Get(item.Client)
		if ok && entryMatches(entry, item) {
			return entry, true
		}
		return Entry{}, false
	}

	entries, err := store.List()
	if err != nil {
		return Entry{}, false
	}
	for _, entry := range entries {
		if entryMatches(entry, item) {
			return entry, true
		}
	}
	return Entry{}, false
}

func entryMatches(entry Entry, item types.ContentItem) bool {
	author := strings.ToLower(item.Author)
	for _, account := range entry.Accounts {
		if author != "" && strings.ToLower(account) == author {
			return true
		}
	}

	topic := strings.ToLower(item.HarmTopic)
	text := strings.ToLower(item.Text)
	for _, tracked := range entry.Topics {
		t := strings.ToLower(tracked)
		if t == "" {
			continue
		}
		if t == topic || (text != "" && strings.Contains(text, t)) {
			return true
		}
	}
	return false
}
