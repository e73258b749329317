// Package storage persists the ledger in a local SQLite database. Sensitive
// columns are sealed through the vault before they hit disk; structural
// columns stay plaintext so listings can filter and sort in SQL. Every write
// enqueues a sync outbox row inside the same transaction.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"contabile/internal/vault"

	_ "modernc.org/sqlite"
)

// dateLayout is the on-disk format of date-only columns. Lexicographic
// order equals chronological order, which the range filters rely on.
const dateLayout = "2006-01-02"

var (
	ErrNotFound        = errors.New("record not found")
	ErrWrongPassphrase = errors.New("wrong ledger passphrase")
	ErrNotInitialized  = errors.New("business config not initialized")
)

// Store is the single gateway to the ledger database. Safe for concurrent
// use; writes serialize on one connection because SQLite allows a single
// writer at a time.
type Store struct {
	db    *sql.DB
	vault *vault.Vault
	salt  []byte
}

// Open opens (or creates) the ledger at dbPath and unlocks the vault with
// the passphrase. A fresh database gets a new salt and verifier; an existing
// one checks the passphrase against the stored verifier and fails with
// ErrWrongPassphrase on mismatch.
func Open(dbPath, passphrase string) (*Store, error) {
	return OpenWithSalt(dbPath, passphrase, "")
}

// OpenWithSalt is Open with a pairing salt (hex). A fresh database adopts
// the given salt instead of generating one, so a second device with the
// same passphrase derives the same vault key and can decrypt records
// pulled from the remote. On an existing database the salt must match the
// stored one; a database's salt never changes.
func OpenWithSalt(dbPath, passphrase, saltHex string) (*Store, error) {
	var pairSalt []byte
	if saltHex != "" {
		var err error
		pairSalt, err = hex.DecodeString(saltHex)
		if err != nil {
			return nil, fmt.Errorf("decode vault salt: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL and a busy timeout keep the server and the workers from tripping
	// over each other when they share the file. _time_format=sqlite makes the
	// driver bind time.Time values in a format SQLite's datetime() can parse;
	// the driver default (time.Time.String) is opaque to datetime(), which
	// would break every retry/cleanup time comparison.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of the hot path.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	v, salt, err := unlockVault(db, passphrase, pairSalt)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, vault: v, salt: salt}, nil
}

func unlockVault(db *sql.DB, passphrase string, pairSalt []byte) (*vault.Vault, []byte, error) {
	var (
		salt     []byte
		verifier string
	)
	err := db.QueryRow(`SELECT salt, verifier FROM vault_meta WHERE id = 1`).Scan(&salt, &verifier)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		salt = pairSalt
		if len(salt) == 0 {
			salt, err = vault.NewSalt()
			if err != nil {
				return nil, nil, fmt.Errorf("generate salt: %w", err)
			}
		}
		v, err := vault.New(passphrase, salt)
		if err != nil {
			return nil, nil, fmt.Errorf("derive vault key: %w", err)
		}
		ver, err := v.Verifier()
		if err != nil {
			return nil, nil, fmt.Errorf("seal verifier: %w", err)
		}
		_, err = db.Exec(`INSERT INTO vault_meta (id, salt, verifier, created_at) VALUES (1, ?, ?, ?)`,
			salt, ver, time.Now().UTC())
		if err != nil {
			return nil, nil, fmt.Errorf("store vault meta: %w", err)
		}
		return v, salt, nil
	case err != nil:
		return nil, nil, fmt.Errorf("load vault meta: %w", err)
	}

	if len(pairSalt) > 0 && !bytes.Equal(pairSalt, salt) {
		return nil, nil, errors.New("configured vault salt does not match the database")
	}

	v, err := vault.New(passphrase, salt)
	if err != nil {
		return nil, nil, fmt.Errorf("derive vault key: %w", err)
	}
	if err := v.Check(verifier); err != nil {
		if errors.Is(err, vault.ErrDecryptFailed) {
			return nil, nil, ErrWrongPassphrase
		}
		return nil, nil, fmt.Errorf("check vault verifier: %w", err)
	}
	return v, salt, nil
}

// VaultSalt returns the database's pairing salt, hex encoded. A second
// device needs it alongside the passphrase to read synced records.
func (s *Store) VaultSalt() string {
	return hex.EncodeToString(s.salt)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// formatDate renders a date-only column value; zero times become ''.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// parseDate reads a date-only column value; '' becomes the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
