package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/truthshield/triage/internal/database"
)

// PrivacyService handles pseudonymization of author identities and
// retention cleanup of archived evidence. Evidence snapshots contain
// third-party account handles, so clients can require hashing before
// records leave the pipeline.
type PrivacyService struct {
	db *database.DB
}

// NewService creates a new privacy service
func NewService(db *database.DB) *PrivacyService {
	return &PrivacyService{db: db}
}

// PseudonymizeAuthor hashes an account handle for storage in exported
// evidence. The same handle always maps to the same pseudonym, so
// coordination analysis across records still works.
func (ps *PrivacyService) PseudonymizeAuthor(handle string) string {
	hash := sha256.Sum256([]byte(handle))
	return hex.EncodeToString(hash[:])
}

// CleanupExpiredEvidence deletes evidence records older than the retention
// window. Escalated records (ALERT_HITL, SEMI_HITL) are kept regardless;
// only routine ARCHIVE and QA_SAMPLE snapshots age out.
func (ps *PrivacyService) CleanupExpiredEvidence(retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	result, err := ps.db.Exec(
		`DELETE FROM evidence_records WHERE created_at < ? AND decision IN ('ARCHIVE', 'QA_SAMPLE')`,
		cutoffDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired evidence: %w", err)
	}

	deleted, _ := result.RowsAffected()
	slog.Info("Evidence retention cleanup completed",
		"cutoff_date", cutoffDate,
		"records_deleted", deleted)
	return deleted, nil
}

// GetDataRetentionInfo provides information about data retention policies
func (ps *PrivacyService) GetDataRetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"evidence_retention_days":  365,
		"escalated_records":        "retained indefinitely for audit",
		"qa_sample_retention_days": 90,
		"anonymization_method":     "SHA-256",
		"deletion_response_time":   "24 hours",
	}
}
