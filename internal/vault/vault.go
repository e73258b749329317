// Package vault encrypts field values before they reach SQLite. The ledger
// database lives on the user's machine, so sensitive columns (amounts,
// descriptions, counterparties, notes) are sealed with a key derived from
// the ledger passphrase and never stored in the clear.
//
// Envelope format: "v1:" + base64(nonce || ciphertext), AES-256-GCM with a
// random nonce per seal. The version prefix leaves room for key rotation.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	envelopePrefix = "v1:"
	saltSize       = 16
	keySize        = 32

	// scrypt cost parameters. Interactive-login strength: derivation runs
	// once per process, not per record.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// verifierPlain is the known plaintext sealed into the database when a vault
// is created. Decrypting it back proves the passphrase is the right one.
const verifierPlain = "contabile/vault/ok"

var (
	ErrEmptyPassphrase   = errors.New("empty passphrase")
	ErrBadSalt           = errors.New("salt must be 16 bytes")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrDecryptFailed     = errors.New("decryption failed")
)

// Vault seals and opens field values with a single derived key. Safe for
// concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New derives the vault key from the passphrase and salt.
func New(passphrase string, salt []byte) (*Vault, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) != saltSize {
		return nil, ErrBadSalt
	}
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// NewSalt returns a fresh random salt for a new ledger database.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Encrypt seals the plaintext into a v1 envelope.
func (v *Vault) Encrypt(plain []byte) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, plain, nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a v1 envelope. ErrMalformedEnvelope means the input was not
// produced by Encrypt; ErrDecryptFailed means the key is wrong or the data
// was tampered with.
func (v *Vault) Decrypt(envelope string) ([]byte, error) {
	raw, ok := strings.CutPrefix(envelope, envelopePrefix)
	if !ok {
		return nil, ErrMalformedEnvelope
	}
	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	ns := v.aead.NonceSize()
	if len(sealed) < ns {
		return nil, ErrMalformedEnvelope
	}
	plain, err := v.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}

// EncryptString seals a string value.
func (v *Vault) EncryptString(s string) (string, error) {
	return v.Encrypt([]byte(s))
}

// DecryptString opens an envelope back into a string.
func (v *Vault) DecryptString(envelope string) (string, error) {
	plain, err := v.Decrypt(envelope)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Verifier seals the check constant for storage alongside the salt.
func (v *Vault) Verifier() (string, error) {
	return v.EncryptString(verifierPlain)
}

// Check decrypts a stored verifier and confirms it matches the constant.
// Returns ErrDecryptFailed for a wrong passphrase.
func (v *Vault) Check(envelope string) error {
	plain, err := v.Decrypt(envelope)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(plain, []byte(verifierPlain)) != 1 {
		return ErrDecryptFailed
	}
	return nil
}
