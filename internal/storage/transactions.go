package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contabile/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Type     core.TransactionType
	Category string
	From     time.Time
	To       time.Time
}

type txRow struct {
	amountEnc      string
	descriptionEnc string
	customerEnc    string
	vendorEnc      string
	attachmentsEnc string
	tagsEnc        string
	notesEnc       string
}

func (s *Store) sealTransaction(t core.Transaction) (txRow, error) {
	var (
		row txRow
		err error
	)
	if row.amountEnc, err = s.sealAmount(t.Amount); err != nil {
		return row, fmt.Errorf("seal amount: %w", err)
	}
	if row.descriptionEnc, err = s.sealRequired(t.Description); err != nil {
		return row, fmt.Errorf("seal description: %w", err)
	}
	if row.customerEnc, err = s.sealOptional(t.Customer); err != nil {
		return row, fmt.Errorf("seal customer: %w", err)
	}
	if row.vendorEnc, err = s.sealOptional(t.Vendor); err != nil {
		return row, fmt.Errorf("seal vendor: %w", err)
	}
	if row.attachmentsEnc, err = s.sealStrings(t.Attachments); err != nil {
		return row, fmt.Errorf("seal attachments: %w", err)
	}
	if row.tagsEnc, err = s.sealStrings(t.Tags); err != nil {
		return row, fmt.Errorf("seal tags: %w", err)
	}
	if row.notesEnc, err = s.sealOptional(t.Notes); err != nil {
		return row, fmt.Errorf("seal notes: %w", err)
	}
	return row, nil
}

// CreateTransaction persists a new transaction and enqueues its sync in the
// same SQLite transaction. The caller provides the ID; version starts at 1.
func (s *Store) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	row, err := s.sealTransaction(*t)
	if err != nil {
		return err
	}
	payload, err := transactionPayload(*t)
	if err != nil {
		return fmt.Errorf("encode sync payload: %w", err)
	}
	payloadEnc, err := s.vault.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("seal sync payload: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (
				id, type, amount_enc, description_enc, category, tx_date,
				customer_enc, vendor_enc, account, attachments_enc, tags_enc,
				notes_enc, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, string(t.Type), row.amountEnc, row.descriptionEnc, t.Category,
			formatDate(t.Date), row.customerEnc, row.vendorEnc, t.Account,
			row.attachmentsEnc, row.tagsEnc, row.notesEnc, t.CreatedAt, t.UpdatedAt, t.Version)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityTransaction, t.ID, OpUpsert, t.Version, payloadEnc, now)
	})
}

// UpdateTransaction overwrites the stored record. Last write wins: the
// version is bumped past whatever is on disk, no conflict is reported.
func (s *Store) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM transactions WHERE id = ?`, t.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read transaction version: %w", err)
		}
		t.Version = current + 1
		t.UpdatedAt = now

		row, err := s.sealTransaction(*t)
		if err != nil {
			return err
		}
		payload, err := transactionPayload(*t)
		if err != nil {
			return fmt.Errorf("encode sync payload: %w", err)
		}
		payloadEnc, err := s.vault.Encrypt(payload)
		if err != nil {
			return fmt.Errorf("seal sync payload: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET
				type = ?, amount_enc = ?, description_enc = ?, category = ?,
				tx_date = ?, customer_enc = ?, vendor_enc = ?, account = ?,
				attachments_enc = ?, tags_enc = ?, notes_enc = ?,
				updated_at = ?, version = ?
			WHERE id = ?`,
			string(t.Type), row.amountEnc, row.descriptionEnc, t.Category,
			formatDate(t.Date), row.customerEnc, row.vendorEnc, t.Account,
			row.attachmentsEnc, row.tagsEnc, row.notesEnc,
			t.UpdatedAt, t.Version, t.ID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityTransaction, t.ID, OpUpsert, t.Version, payloadEnc, now)
	})
}

// DeleteTransaction removes the record for good and enqueues a delete
// tombstone one version past the deleted record.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM transactions WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read transaction version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityTransaction, id, OpDelete, current+1, "", now)
	})
}

const txColumns = `id, type, amount_enc, description_enc, category, tx_date,
	customer_enc, vendor_enc, account, attachments_enc, tags_enc, notes_enc,
	created_at, updated_at, version`

func (s *Store) scanTransaction(scan func(...any) error) (core.Transaction, error) {
	var (
		t       core.Transaction
		row     txRow
		typ     string
		dateStr string
	)
	err := scan(&t.ID, &typ, &row.amountEnc, &row.descriptionEnc, &t.Category,
		&dateStr, &row.customerEnc, &row.vendorEnc, &t.Account,
		&row.attachmentsEnc, &row.tagsEnc, &row.notesEnc,
		&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if err != nil {
		return t, err
	}
	t.Type = core.TransactionType(typ)
	if t.Date, err = parseDate(dateStr); err != nil {
		return t, fmt.Errorf("parse transaction date: %w", err)
	}
	if t.Amount, err = s.openAmount(row.amountEnc); err != nil {
		return t, fmt.Errorf("open amount: %w", err)
	}
	if t.Description, err = s.vault.DecryptString(row.descriptionEnc); err != nil {
		return t, fmt.Errorf("open description: %w", err)
	}
	if t.Customer, err = s.openOptional(row.customerEnc); err != nil {
		return t, fmt.Errorf("open customer: %w", err)
	}
	if t.Vendor, err = s.openOptional(row.vendorEnc); err != nil {
		return t, fmt.Errorf("open vendor: %w", err)
	}
	if t.Attachments, err = s.openStrings(row.attachmentsEnc); err != nil {
		return t, fmt.Errorf("open attachments: %w", err)
	}
	if t.Tags, err = s.openStrings(row.tagsEnc); err != nil {
		return t, fmt.Errorf("open tags: %w", err)
	}
	if t.Notes, err = s.openOptional(row.notesEnc); err != nil {
		return t, fmt.Errorf("open notes: %w", err)
	}
	return t, nil
}

// GetTransaction loads and decrypts one record. ErrNotFound when missing.
func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := s.scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions loads and decrypts every record matching the filter,
// newest first. Date bounds are inclusive.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE 1=1`
	args := make([]any, 0, 4)
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		query += ` AND tx_date >= ?`
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND tx_date <= ?`
		args = append(args, formatDate(f.To))
	}
	query += ` ORDER BY tx_date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := s.scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// ListCategories returns the distinct plaintext categories in use, for
// filter dropdowns. Empty categories are skipped.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM transactions WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
