package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"provision/internal/core/id"
	"provision/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used for a row.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Compile-time check that AuditStore implements the domain recorder.
var _ audit.Recorder = (*AuditStore)(nil)

// auditRow is the persisted shape of an audit entry.
type auditRow struct {
	ID                id.ID           `db:"id"`
	Action            string          `db:"action"`
	Entity            string          `db:"entity"`
	EntityID          id.ID           `db:"entity_id"`
	UserID            string          `db:"user_id"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditStore persists audit entries. Entries are written inside the
// caller's transaction, so a rolled-back posting leaves no trail.
// Large payloads are zstd-compressed.
type AuditStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditStore creates a new audit store.
func NewAuditStore(txManager *TxManager) (*AuditStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record implements audit.Recorder.
func (s *AuditStore) Record(ctx context.Context, entry audit.Entry) error {
	row := auditRow{
		ID:              entry.ID,
		Action:          string(entry.Action),
		Entity:          entry.Entity,
		EntityID:        entry.EntityID,
		UserID:          entry.UserID,
		CompressionAlgo: CompressionNone,
		CreatedAt:       entry.At,
	}
	if id.IsNil(row.ID) {
		row.ID = id.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if entry.Payload != nil {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		if len(payload) > s.compressThreshold {
			row.PayloadCompressed = s.encoder.EncodeAll(payload, nil)
			row.CompressionAlgo = CompressionZstd
		} else {
			row.Payload = payload
		}
	}

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, `
		INSERT INTO sys_audit (
			id, action, entity, entity_id, user_id,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		row.ID, row.Action, row.Entity, row.EntityID, row.UserID,
		row.Payload, row.PayloadCompressed, row.CompressionAlgo, row.CreatedAt,
	)
	return err
}

// EntityHistory retrieves the audit trail of one entity, newest first.
func (s *AuditStore) EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, action, entity, entity_id, user_id,
		       payload, payload_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var r auditRow
		err := rows.Scan(
			&r.ID, &r.Action, &r.Entity, &r.EntityID, &r.UserID,
			&r.Payload, &r.PayloadCompressed, &r.CompressionAlgo, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}

		payload := r.Payload
		if r.CompressionAlgo == CompressionZstd && len(r.PayloadCompressed) > 0 {
			payload, err = s.decoder.DecodeAll(r.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit payload: %w", err)
			}
		}

		entry := audit.Entry{
			ID:       r.ID,
			Action:   audit.Action(r.Action),
			Entity:   r.Entity,
			EntityID: r.EntityID,
			UserID:   r.UserID,
			At:       r.CreatedAt,
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal audit payload: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
