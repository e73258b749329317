package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contabile/internal/core"
)

// Recurring templates are local scheduling state and are not pushed to the
// remote; the transactions they materialize sync like any other write.

func (s *Store) CreateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	now := time.Now().UTC()
	rt.CreatedAt = now
	rt.UpdatedAt = now

	row, err := s.sealRecurring(*rt)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions (
			id, type, amount_enc, description_enc, category, customer_enc,
			vendor_enc, account, every, start_date, end_date, last_execution,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, string(rt.Type), row.amountEnc, row.descriptionEnc, rt.Category,
		row.customerEnc, row.vendorEnc, rt.Account, string(rt.Every),
		formatDate(rt.StartDate), formatDate(rt.EndDate), formatDate(rt.LastExecution),
		rt.CreatedAt, rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	rt.UpdatedAt = time.Now().UTC()
	row, err := s.sealRecurring(*rt)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET
			type = ?, amount_enc = ?, description_enc = ?, category = ?,
			customer_enc = ?, vendor_enc = ?, account = ?, every = ?,
			start_date = ?, end_date = ?, last_execution = ?, updated_at = ?
		WHERE id = ?`,
		string(rt.Type), row.amountEnc, row.descriptionEnc, rt.Category,
		row.customerEnc, row.vendorEnc, rt.Account, string(rt.Every),
		formatDate(rt.StartDate), formatDate(rt.EndDate), formatDate(rt.LastExecution),
		rt.UpdatedAt, rt.ID)
	if err != nil {
		return fmt.Errorf("update recurring transaction: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) DeleteRecurring(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	return requireRowAffected(res)
}

// MarkRecurringExecuted records the date a template last materialized, so
// the next sweep resumes after it.
func (s *Store) MarkRecurringExecuted(ctx context.Context, id string, ranOn time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET last_execution = ?, updated_at = ? WHERE id = ?`,
		formatDate(ranOn), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark recurring executed: %w", err)
	}
	return requireRowAffected(res)
}

const recurringColumns = `id, type, amount_enc, description_enc, category,
	customer_enc, vendor_enc, account, every, start_date, end_date,
	last_execution, created_at, updated_at`

func (s *Store) GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ?`, id)
	rt, err := s.scanRecurring(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTransaction{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("get recurring transaction: %w", err)
	}
	return rt, nil
}

func (s *Store) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		rt, err := s.scanRecurring(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// ListActiveRecurring returns templates whose start/end window contains
// asOf. Dates compare as ISO strings; a blank end date means no end.
func (s *Store) ListActiveRecurring(ctx context.Context, asOf time.Time) ([]core.RecurringTransaction, error) {
	day := formatDate(asOf)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_transactions
		WHERE start_date <= ? AND (end_date = '' OR end_date >= ?)
		ORDER BY start_date`, day, day)
	if err != nil {
		return nil, fmt.Errorf("list active recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		rt, err := s.scanRecurring(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

type recurringRow struct {
	amountEnc      string
	descriptionEnc string
	customerEnc    string
	vendorEnc      string
}

func (s *Store) sealRecurring(rt core.RecurringTransaction) (recurringRow, error) {
	var (
		row recurringRow
		err error
	)
	if row.amountEnc, err = s.sealAmount(rt.Amount); err != nil {
		return row, fmt.Errorf("seal amount: %w", err)
	}
	if row.descriptionEnc, err = s.sealRequired(rt.Description); err != nil {
		return row, fmt.Errorf("seal description: %w", err)
	}
	if row.customerEnc, err = s.sealOptional(rt.Customer); err != nil {
		return row, fmt.Errorf("seal customer: %w", err)
	}
	if row.vendorEnc, err = s.sealOptional(rt.Vendor); err != nil {
		return row, fmt.Errorf("seal vendor: %w", err)
	}
	return row, nil
}

func (s *Store) scanRecurring(scan func(...any) error) (core.RecurringTransaction, error) {
	var (
		rt        core.RecurringTransaction
		row       recurringRow
		typ       string
		every     string
		startDate string
		endDate   string
		lastRun   string
	)
	err := scan(&rt.ID, &typ, &row.amountEnc, &row.descriptionEnc, &rt.Category,
		&row.customerEnc, &row.vendorEnc, &rt.Account, &every,
		&startDate, &endDate, &lastRun, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return rt, err
	}
	rt.Type = core.TransactionType(typ)
	rt.Every = core.RepetitionType(every)
	if rt.StartDate, err = parseDate(startDate); err != nil {
		return rt, fmt.Errorf("parse start date: %w", err)
	}
	if rt.EndDate, err = parseDate(endDate); err != nil {
		return rt, fmt.Errorf("parse end date: %w", err)
	}
	if rt.LastExecution, err = parseDate(lastRun); err != nil {
		return rt, fmt.Errorf("parse last execution: %w", err)
	}
	if rt.Amount, err = s.openAmount(row.amountEnc); err != nil {
		return rt, fmt.Errorf("open amount: %w", err)
	}
	if rt.Description, err = s.vault.DecryptString(row.descriptionEnc); err != nil {
		return rt, fmt.Errorf("open description: %w", err)
	}
	if rt.Customer, err = s.openOptional(row.customerEnc); err != nil {
		return rt, fmt.Errorf("open customer: %w", err)
	}
	if rt.Vendor, err = s.openOptional(row.vendorEnc); err != nil {
		return rt, fmt.Errorf("open vendor: %w", err)
	}
	return rt, nil
}

// requireRowAffected maps "nothing matched" updates and deletes to
// ErrNotFound.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
