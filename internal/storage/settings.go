package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contabile/internal/core"
)

// configRecordID keys the singleton business config in the outbox.
const configRecordID = "default"

// GetBusinessConfig loads the singleton business record.
// ErrNotInitialized until the first save.
func (s *Store) GetBusinessConfig(ctx context.Context) (core.BusinessConfig, error) {
	var (
		bc  core.BusinessConfig
		typ string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, type, currency, locale, created_at, updated_at, version
		FROM business_config WHERE id = 1`).
		Scan(&bc.Name, &typ, &bc.Currency, &bc.Locale, &bc.CreatedAt, &bc.UpdatedAt, &bc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BusinessConfig{}, ErrNotInitialized
	}
	if err != nil {
		return core.BusinessConfig{}, fmt.Errorf("get business config: %w", err)
	}
	bc.Type = core.BusinessType(typ)
	return bc, nil
}

// SaveBusinessConfig creates or overwrites the singleton record, bumping
// the version and enqueuing a sync either way.
func (s *Store) SaveBusinessConfig(ctx context.Context, bc *core.BusinessConfig) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current   int64
			createdAt time.Time
		)
		err := tx.QueryRowContext(ctx, `SELECT version, created_at FROM business_config WHERE id = 1`).
			Scan(&current, &createdAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			bc.CreatedAt = now
			bc.Version = 1
		case err != nil:
			return fmt.Errorf("read business config version: %w", err)
		default:
			bc.CreatedAt = createdAt
			bc.Version = current + 1
		}
		bc.UpdatedAt = now

		payloadEnc, err := s.sealCatalogPayload(businessConfigPayload(*bc))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO business_config (id, name, type, currency, locale, created_at, updated_at, version)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, type = excluded.type, currency = excluded.currency,
				locale = excluded.locale, updated_at = excluded.updated_at, version = excluded.version`,
			bc.Name, string(bc.Type), bc.Currency, bc.Locale, bc.CreatedAt, bc.UpdatedAt, bc.Version)
		if err != nil {
			return fmt.Errorf("save business config: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityBusinessConfig, configRecordID, OpUpsert, bc.Version, payloadEnc, now)
	})
}
