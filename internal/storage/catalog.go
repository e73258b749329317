package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contabile/internal/core"
)

// Catalog persistence. Names and categories stay plaintext so the catalog
// can be searched in SQL; only the money columns are sealed.

func (s *Store) CreateProduct(ctx context.Context, p *core.Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	priceEnc, err := s.sealAmount(p.Price)
	if err != nil {
		return fmt.Errorf("seal price: %w", err)
	}
	payloadEnc, err := s.sealCatalogPayload(productPayload(*p))
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, description, price_enc, category, created_at, updated_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, priceEnc, p.Category, p.CreatedAt, p.UpdatedAt, p.Version)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityProduct, p.ID, OpUpsert, p.Version, payloadEnc, now)
	})
}

func (s *Store) UpdateProduct(ctx context.Context, p *core.Product) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM products WHERE id = ?`, p.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read product version: %w", err)
		}
		p.Version = current + 1
		p.UpdatedAt = now

		priceEnc, err := s.sealAmount(p.Price)
		if err != nil {
			return fmt.Errorf("seal price: %w", err)
		}
		payloadEnc, err := s.sealCatalogPayload(productPayload(*p))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET name = ?, description = ?, price_enc = ?, category = ?, updated_at = ?, version = ?
			WHERE id = ?`,
			p.Name, p.Description, priceEnc, p.Category, p.UpdatedAt, p.Version, p.ID)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityProduct, p.ID, OpUpsert, p.Version, payloadEnc, now)
	})
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteCatalogRow(ctx, "products", EntityProduct, id)
}

func (s *Store) GetProduct(ctx context.Context, id string) (core.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_enc, category, created_at, updated_at, version
		FROM products WHERE id = ?`, id)
	p, err := s.scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, ErrNotFound
	}
	if err != nil {
		return core.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price_enc, category, created_at, updated_at, version
		FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := s.scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) scanProduct(scan func(...any) error) (core.Product, error) {
	var (
		p        core.Product
		priceEnc string
	)
	err := scan(&p.ID, &p.Name, &p.Description, &priceEnc, &p.Category,
		&p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return p, err
	}
	if p.Price, err = s.openAmount(priceEnc); err != nil {
		return p, fmt.Errorf("open price: %w", err)
	}
	return p, nil
}

func (s *Store) CreateService(ctx context.Context, sv *core.Service) error {
	now := time.Now().UTC()
	sv.CreatedAt = now
	sv.UpdatedAt = now
	sv.Version = 1

	rateEnc, err := s.sealAmount(sv.HourlyRate)
	if err != nil {
		return fmt.Errorf("seal hourly rate: %w", err)
	}
	payloadEnc, err := s.sealCatalogPayload(servicePayload(*sv))
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, name, description, hourly_rate_enc, category, created_at, updated_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sv.ID, sv.Name, sv.Description, rateEnc, sv.Category, sv.CreatedAt, sv.UpdatedAt, sv.Version)
		if err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityService, sv.ID, OpUpsert, sv.Version, payloadEnc, now)
	})
}

func (s *Store) UpdateService(ctx context.Context, sv *core.Service) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM services WHERE id = ?`, sv.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read service version: %w", err)
		}
		sv.Version = current + 1
		sv.UpdatedAt = now

		rateEnc, err := s.sealAmount(sv.HourlyRate)
		if err != nil {
			return fmt.Errorf("seal hourly rate: %w", err)
		}
		payloadEnc, err := s.sealCatalogPayload(servicePayload(*sv))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE services SET name = ?, description = ?, hourly_rate_enc = ?, category = ?, updated_at = ?, version = ?
			WHERE id = ?`,
			sv.Name, sv.Description, rateEnc, sv.Category, sv.UpdatedAt, sv.Version, sv.ID)
		if err != nil {
			return fmt.Errorf("update service: %w", err)
		}
		return enqueueOutbox(ctx, tx, EntityService, sv.ID, OpUpsert, sv.Version, payloadEnc, now)
	})
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.deleteCatalogRow(ctx, "services", EntityService, id)
}

func (s *Store) GetService(ctx context.Context, id string) (core.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, hourly_rate_enc, category, created_at, updated_at, version
		FROM services WHERE id = ?`, id)
	sv, err := s.scanService(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Service{}, ErrNotFound
	}
	if err != nil {
		return core.Service{}, fmt.Errorf("get service: %w", err)
	}
	return sv, nil
}

func (s *Store) ListServices(ctx context.Context) ([]core.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, hourly_rate_enc, category, created_at, updated_at, version
		FROM services ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []core.Service
	for rows.Next() {
		sv, err := s.scanService(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Store) scanService(scan func(...any) error) (core.Service, error) {
	var (
		sv      core.Service
		rateEnc string
	)
	err := scan(&sv.ID, &sv.Name, &sv.Description, &rateEnc, &sv.Category,
		&sv.CreatedAt, &sv.UpdatedAt, &sv.Version)
	if err != nil {
		return sv, err
	}
	if sv.HourlyRate, err = s.openAmount(rateEnc); err != nil {
		return sv, fmt.Errorf("open hourly rate: %w", err)
	}
	return sv, nil
}

// sealCatalogPayload wraps payload encoding plus sealing, shared by both
// catalog types.
func (s *Store) sealCatalogPayload(payload []byte, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("encode sync payload: %w", err)
	}
	enc, err := s.vault.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("seal sync payload: %w", err)
	}
	return enc, nil
}

// deleteCatalogRow is the shared delete path: read version, hard delete,
// enqueue tombstone.
func (s *Store) deleteCatalogRow(ctx context.Context, table, entity, id string) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read %s version: %w", entity, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", entity, err)
		}
		return enqueueOutbox(ctx, tx, entity, id, OpDelete, current+1, "", now)
	})
}
