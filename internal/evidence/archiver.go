package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/truthshield/triage/internal/encoding"
	"github.com/truthshield/triage/internal/errors"
)

const hashPrefixLen = 12

// Payload is the hashed unit of an evidence record: a snapshot of the routed
// item, the decision label it received, and optional provenance metadata.
// The timestamp is part of the payload, so logically identical items
// archived at different times produce distinct records. Archival is an
// audit log, not a dedup store.
type Payload struct {
	Timestamp  string                 `json:"timestamp"`
	Decision   string                 `json:"decision"`
	Item       json.RawMessage        `json:"item"`
	Provenance map[string]interface{} `json:"provenance"`
}

// Record is a persisted payload plus its own SHA-256, keyed by
// {timestamp}_{hash prefix}.
type Record struct {
	Key     string  `json:"key"`
	SHA256  string  `json:"sha256"`
	Payload Payload `json:"payload"`
}

// Archiver snapshots routed items into a Store with a content hash for
// audit. The clock is injectable so tests get stable keys.
type Archiver struct {
	store Store
	now   func() time.Time
}

// NewArchiver creates an archiver writing to the given store.
func NewArchiver(store Store) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// NewArchiverWithClock creates an archiver with a fixed clock for tests.
func NewArchiverWithClock(store Store, now func() time.Time) *Archiver {
	return &Archiver{store: store, now: now}
}

// Archive serializes (timestamp, decision, item, provenance) canonically,
// hashes the bytes with SHA-256 and persists the record. Storage failures
// come back as storage-category errors; an unarchived escalation is an
// audit gap the caller must see.
func (a *Archiver) Archive(ctx context.Context, item interface{}, decision string, provenance map[string]interface{}) (Record, error) {
	itemJSON, err := encoding.Canonical(item)
	if err != nil {
		return Record{}, errors.NewValidationError("item is not JSON-serializable", err.Error())
	}
	if provenance == nil {
		provenance = map[string]interface{}{}
	}

	timestamp := a.now().UTC().Format(time.RFC3339Nano)
	payload := Payload{
		Timestamp:  timestamp,
		Decision:   decision,
		Item:       itemJSON,
		Provenance: provenance,
	}

	hash, err := HashPayload(payload)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		Key:     recordKey(timestamp, hash),
		SHA256:  hash,
		Payload: payload,
	}

	if err := a.store.Put(ctx, record); err != nil {
		return Record{}, errors.NewStorageError("evidence write failed", err)
	}
	return record, nil
}

// Get retrieves a previously archived record by its full SHA-256 hash.
func (a *Archiver) Get(ctx context.Context, hash string) (Record, bool, error) {
	return a.store.Get(ctx, hash)
}

// HashPayload computes the SHA-256 of a payload's canonical JSON bytes.
func HashPayload(payload Payload) (string, error) {
	raw, err := encoding.Canonical(payload)
	if err != nil {
		return "", errors.NewInternalError("payload canonicalization failed", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the payload hash and checks it against the stored one.
func Verify(record Record) (bool, error) {
	hash, err := HashPayload(record.Payload)
	if err != nil {
		return false, err
	}
	return hash == record.SHA256, nil
}

func recordKey(timestamp, hash string) string {
	// Keys must be safe as file names, so the timestamp's separators are
	// flattened the same way regardless of the backing store.
	flat := strings.NewReplacer(":", "-", ".", "-").Replace(timestamp)
	return flat + "_" + hash[:hashPrefixLen]
}
