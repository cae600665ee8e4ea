package database

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceRow is one persisted evidence record.
type EvidenceRow struct {
	ID        string    `json:"id" db:"id"`
	RecordKey string    `json:"record_key" db:"record_key"`
	SHA256    string    `json:"sha256" db:"sha256"`
	Decision  string    `json:"decision" db:"decision"`
	Payload   string    `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WatchlistRow is one client's stored watchlist; topics and accounts are
// JSON-encoded arrays.
type WatchlistRow struct {
	Client       string  `json:"client" db:"client"`
	Topics       string  `json:"topics" db:"topics"`
	Accounts     string  `json:"accounts" db:"accounts"`
	ROIThreshold float64 `json:"roi_threshold" db:"roi_threshold"`
}

// HarmWeightRow is one stored topic weight.
type HarmWeightRow struct {
	Topic  string  `json:"topic" db:"topic"`
	Weight float64 `json:"weight" db:"weight"`
}

// AuditLog records an admin mutation for traceability.
type AuditLog struct {
	ID        string    `json:"id" db:"id"`
	Subject   string    `json:"subject" db:"subject"`
	Operation string    `json:"operation" db:"operation"`
	IPAddress string    `json:"-" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewAuditLog creates an audit entry with a generated ID.
func NewAuditLog(subject, operation, ipAddress string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New().String(),
		Subject:   subject,
		Operation: operation,
		IPAddress: ipAddress,
		CreatedAt: time.Now(),
	}
}
