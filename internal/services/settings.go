package services

import (
	"context"
	"errors"

	"contabile/internal/amqp"
	"contabile/internal/core"
	"contabile/internal/storage"
)

// settingsRecordID matches the outbox record ID the store uses for the
// business config singleton.
const settingsRecordID = "default"

// SettingsService owns the business config singleton.
type SettingsService struct {
	store *storage.Store
	amqp  *amqp.Client
}

func NewSettingsService(store *storage.Store, amqpClient *amqp.Client) *SettingsService {
	return &SettingsService{store: store, amqp: amqpClient}
}

// GetBusinessConfig returns the stored config, or sensible defaults when the
// business has not been set up yet.
func (s *SettingsService) GetBusinessConfig(ctx context.Context) (core.BusinessConfig, error) {
	bc, err := s.store.GetBusinessConfig(ctx)
	if errors.Is(err, storage.ErrNotInitialized) {
		return core.BusinessConfig{
			Type:     core.BusinessGeneral,
			Currency: "EUR",
			Locale:   "en",
		}, nil
	}
	return bc, err
}

func (s *SettingsService) SaveBusinessConfig(ctx context.Context, bc core.BusinessConfig) (core.BusinessConfig, error) {
	if err := bc.Validate(); err != nil {
		return core.BusinessConfig{}, err
	}
	if err := s.store.SaveBusinessConfig(ctx, &bc); err != nil {
		return core.BusinessConfig{}, err
	}
	nudgeSync(ctx, s.amqp, storage.EntityBusinessConfig, settingsRecordID, bc.Version)
	return bc, nil
}
