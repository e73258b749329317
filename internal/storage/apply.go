package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ApplyRemote writes a pulled sync envelope into the local tables. Last
// write wins on version: an envelope at or below the local version is
// skipped. Applied rows never re-enter the outbox, so a pull cannot echo
// records back to the remote. Reports whether the local database changed.
func (s *Store) ApplyRemote(ctx context.Context, entity, recordID, operation string, version int64, payloadEnc string) (bool, error) {
	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, exists, err := currentVersion(ctx, tx, entity, recordID)
		if err != nil {
			return err
		}
		if exists && version <= current {
			return nil
		}

		if operation == OpDelete {
			if !exists {
				return nil
			}
			if err := deleteLocal(ctx, tx, entity, recordID); err != nil {
				return err
			}
			applied = true
			return nil
		}

		raw, err := s.OpenPayload(payloadEnc)
		if err != nil {
			return fmt.Errorf("open envelope payload: %w", err)
		}
		if raw == nil {
			return fmt.Errorf("upsert envelope for %s %s has no payload", entity, recordID)
		}

		switch entity {
		case EntityTransaction:
			err = s.applyTransaction(ctx, tx, raw)
		case EntityDocument:
			err = s.applyDocument(ctx, tx, raw)
		case EntityProduct:
			err = s.applyProduct(ctx, tx, raw)
		case EntityService:
			err = s.applyService(ctx, tx, raw)
		case EntityBusinessConfig:
			err = s.applyBusinessConfig(ctx, tx, raw)
		default:
			return fmt.Errorf("unknown entity %q", entity)
		}
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func currentVersion(ctx context.Context, tx *sql.Tx, entity, recordID string) (int64, bool, error) {
	var query string
	args := []any{recordID}
	switch entity {
	case EntityTransaction:
		query = `SELECT version FROM transactions WHERE id = ?`
	case EntityDocument:
		query = `SELECT version FROM documents WHERE id = ?`
	case EntityProduct:
		query = `SELECT version FROM products WHERE id = ?`
	case EntityService:
		query = `SELECT version FROM services WHERE id = ?`
	case EntityBusinessConfig:
		query, args = `SELECT version FROM business_config WHERE id = 1`, nil
	default:
		return 0, false, fmt.Errorf("unknown entity %q", entity)
	}

	var v int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read %s version: %w", entity, err)
	}
	return v, true, nil
}

func deleteLocal(ctx context.Context, tx *sql.Tx, entity, recordID string) error {
	var query string
	args := []any{recordID}
	switch entity {
	case EntityTransaction:
		query = `DELETE FROM transactions WHERE id = ?`
	case EntityDocument:
		query = `DELETE FROM documents WHERE id = ?`
	case EntityProduct:
		query = `DELETE FROM products WHERE id = ?`
	case EntityService:
		query = `DELETE FROM services WHERE id = ?`
	case EntityBusinessConfig:
		query, args = `DELETE FROM business_config WHERE id = 1`, nil
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	return nil
}

func (s *Store) applyTransaction(ctx context.Context, tx *sql.Tx, raw []byte) error {
	t, err := decodeTransactionPayload(raw)
	if err != nil {
		return err
	}
	row, err := s.sealTransaction(t)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO transactions (
			id, type, amount_enc, description_enc, category, tx_date,
			customer_enc, vendor_enc, account, attachments_enc, tags_enc,
			notes_enc, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), row.amountEnc, row.descriptionEnc, t.Category,
		formatDate(t.Date), row.customerEnc, row.vendorEnc, t.Account,
		row.attachmentsEnc, row.tagsEnc, row.notesEnc, t.CreatedAt, t.UpdatedAt, t.Version)
	if err != nil {
		return fmt.Errorf("apply transaction: %w", err)
	}
	return nil
}

func (s *Store) applyDocument(ctx context.Context, tx *sql.Tx, raw []byte) error {
	d, err := decodeDocumentPayload(raw)
	if err != nil {
		return err
	}
	row, err := s.sealDocument(d)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (
			id, kind, number, party_enc, party_email_enc, status, issue_date,
			due_date, body_enc, notes_enc, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.Kind), d.Number, row.partyEnc, row.partyEmailEnc,
		string(d.Status), formatDate(d.IssueDate), formatDate(d.DueDate),
		row.bodyEnc, row.notesEnc, d.CreatedAt, d.UpdatedAt, d.Version)
	if err != nil {
		return fmt.Errorf("apply document: %w", err)
	}
	return nil
}

func (s *Store) applyProduct(ctx context.Context, tx *sql.Tx, raw []byte) error {
	p, err := decodeProductPayload(raw)
	if err != nil {
		return err
	}
	priceEnc, err := s.sealAmount(p.Price)
	if err != nil {
		return fmt.Errorf("seal price: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO products (
			id, name, description, price_enc, category, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, priceEnc, p.Category, p.CreatedAt, p.UpdatedAt, p.Version)
	if err != nil {
		return fmt.Errorf("apply product: %w", err)
	}
	return nil
}

func (s *Store) applyService(ctx context.Context, tx *sql.Tx, raw []byte) error {
	sv, err := decodeServicePayload(raw)
	if err != nil {
		return err
	}
	rateEnc, err := s.sealAmount(sv.HourlyRate)
	if err != nil {
		return fmt.Errorf("seal hourly rate: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO services (
			id, name, description, hourly_rate_enc, category, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Name, sv.Description, rateEnc, sv.Category, sv.CreatedAt, sv.UpdatedAt, sv.Version)
	if err != nil {
		return fmt.Errorf("apply service: %w", err)
	}
	return nil
}

func (s *Store) applyBusinessConfig(ctx context.Context, tx *sql.Tx, raw []byte) error {
	bc, err := decodeBusinessConfigPayload(raw)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO business_config (
			id, name, type, currency, locale, created_at, updated_at, version
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		bc.Name, string(bc.Type), bc.Currency, bc.Locale, bc.CreatedAt, bc.UpdatedAt, bc.Version)
	if err != nil {
		return fmt.Errorf("apply business config: %w", err)
	}
	return nil
}
