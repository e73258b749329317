package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contabile/internal/core"
)

// DocumentFilter narrows ListDocuments. Zero values mean "no filter".
type DocumentFilter struct {
	Kind   core.DocumentKind
	Status core.DocumentStatus
}

type docRow struct {
	partyEnc      string
	partyEmailEnc string
	bodyEnc       string
	notesEnc      string
}

func (s *Store) sealDocument(d core.Document) (docRow, error) {
	var (
		row docRow
		err error
	)
	if row.partyEnc, err = s.sealRequired(d.Party); err != nil {
		return row, fmt.Errorf("seal party: %w", err)
	}
	if row.partyEmailEnc, err = s.sealOptional(d.PartyEmail); err != nil {
		return row, fmt.Errorf("seal party email: %w", err)
	}
	if row.bodyEnc, err = s.sealDocBody(d); err != nil {
		return row, fmt.Errorf("seal document body: %w", err)
	}
	if row.notesEnc, err = s.sealOptional(d.Notes); err != nil {
		return row, fmt.Errorf("seal notes: %w", err)
	}
	return row, nil
}

// CreateDocument persists a new invoice or bill with its line items sealed
// as one unit, and enqueues its sync in the same SQLite transaction.
func (s *Store) CreateDocument(ctx context.Context, d *core.Document) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Version = 1

	row, err := s.sealDocument(*d)
	if err != nil {
		return err
	}
	payload, err := documentPayload(*d)
	if err != nil {
		return fmt.Errorf("encode sync payload: %w", err)
	}
	payloadEnc, err := s.vault.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("seal sync payload: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (
				id, kind, number, party_enc, party_email_enc, status, issue_date,
				due_date, body_enc, notes_enc, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, string(d.Kind), d.Number, row.partyEnc, row.partyEmailEnc,
			string(d.Status), formatDate(d.IssueDate), formatDate(d.DueDate),
			row.bodyEnc, row.notesEnc, d.CreatedAt, d.UpdatedAt, d.Version)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityDocument, d.ID, OpUpsert, d.Version, payloadEnc, now)
	})
}

// UpdateDocument overwrites the stored record, last write wins.
func (s *Store) UpdateDocument(ctx context.Context, d *core.Document) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM documents WHERE id = ?`, d.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read document version: %w", err)
		}
		d.Version = current + 1
		d.UpdatedAt = now

		row, err := s.sealDocument(*d)
		if err != nil {
			return err
		}
		payload, err := documentPayload(*d)
		if err != nil {
			return fmt.Errorf("encode sync payload: %w", err)
		}
		payloadEnc, err := s.vault.Encrypt(payload)
		if err != nil {
			return fmt.Errorf("seal sync payload: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET
				kind = ?, number = ?, party_enc = ?, party_email_enc = ?,
				status = ?, issue_date = ?, due_date = ?, body_enc = ?,
				notes_enc = ?, updated_at = ?, version = ?
			WHERE id = ?`,
			string(d.Kind), d.Number, row.partyEnc, row.partyEmailEnc,
			string(d.Status), formatDate(d.IssueDate), formatDate(d.DueDate),
			row.bodyEnc, row.notesEnc, d.UpdatedAt, d.Version, d.ID)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityDocument, d.ID, OpUpsert, d.Version, payloadEnc, now)
	})
}

// DeleteDocument removes the record for good and enqueues a delete
// tombstone.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM documents WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read document version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityDocument, id, OpDelete, current+1, "", now)
	})
}

const docColumns = `id, kind, number, party_enc, party_email_enc, status,
	issue_date, due_date, body_enc, notes_enc, created_at, updated_at, version`

func (s *Store) scanDocument(scan func(...any) error) (core.Document, error) {
	var (
		d         core.Document
		row       docRow
		kind      string
		status    string
		issueDate string
		dueDate   string
	)
	err := scan(&d.ID, &kind, &d.Number, &row.partyEnc, &row.partyEmailEnc,
		&status, &issueDate, &dueDate, &row.bodyEnc, &row.notesEnc,
		&d.CreatedAt, &d.UpdatedAt, &d.Version)
	if err != nil {
		return d, err
	}
	d.Kind = core.DocumentKind(kind)
	d.Status = core.DocumentStatus(status)
	if d.IssueDate, err = parseDate(issueDate); err != nil {
		return d, fmt.Errorf("parse issue date: %w", err)
	}
	if d.DueDate, err = parseDate(dueDate); err != nil {
		return d, fmt.Errorf("parse due date: %w", err)
	}
	if d.Party, err = s.vault.DecryptString(row.partyEnc); err != nil {
		return d, fmt.Errorf("open party: %w", err)
	}
	if d.PartyEmail, err = s.openOptional(row.partyEmailEnc); err != nil {
		return d, fmt.Errorf("open party email: %w", err)
	}
	if err = s.openDocBody(row.bodyEnc, &d); err != nil {
		return d, fmt.Errorf("open document body: %w", err)
	}
	if d.Notes, err = s.openOptional(row.notesEnc); err != nil {
		return d, fmt.Errorf("open notes: %w", err)
	}
	return d, nil
}

// GetDocument loads and decrypts one record. ErrNotFound when missing.
func (s *Store) GetDocument(ctx context.Context, id string) (core.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM documents WHERE id = ?`, id)
	d, err := s.scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, ErrNotFound
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListDocuments loads and decrypts every record matching the filter, newest
// issue date first.
func (s *Store) ListDocuments(ctx context.Context, f DocumentFilter) ([]core.Document, error) {
	query := `SELECT ` + docColumns + ` FROM documents WHERE 1=1`
	args := make([]any, 0, 2)
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY issue_date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []core.Document
	for rows.Next() {
		d, err := s.scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// CountDocumentsByNumber reports how many documents other than excludeID
// already use a number, for duplicate warnings in the UI. Pass an empty
// excludeID when creating.
func (s *Store) CountDocumentsByNumber(ctx context.Context, kind core.DocumentKind, number, excludeID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE kind = ? AND number = ? AND id != ?`,
		string(kind), number, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents by number: %w", err)
	}
	return n, nil
}
