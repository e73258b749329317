package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"contabile/internal/amqp"
	"contabile/internal/core"
	"contabile/internal/storage"
)

// CatalogService owns the product and hourly-service catalogs.
type CatalogService struct {
	store *storage.Store
	amqp  *amqp.Client
}

func NewCatalogService(store *storage.Store, amqpClient *amqp.Client) *CatalogService {
	return &CatalogService{store: store, amqp: amqpClient}
}

func (s *CatalogService) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	if err := s.store.CreateProduct(ctx, &p); err != nil {
		return core.Product{}, fmt.Errorf("create product: %w", err)
	}
	nudgeSync(ctx, s.amqp, storage.EntityProduct, p.ID, p.Version)
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	if err := s.store.UpdateProduct(ctx, &p); err != nil {
		return core.Product{}, err
	}
	nudgeSync(ctx, s.amqp, storage.EntityProduct, p.ID, p.Version)
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	nudgeSync(ctx, s.amqp, storage.EntityProduct, id, 0)
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (core.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]core.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *CatalogService) CreateService(ctx context.Context, sv core.Service) (core.Service, error) {
	if sv.ID == "" {
		sv.ID = uuid.NewString()
	}
	if err := sv.Validate(); err != nil {
		return core.Service{}, err
	}
	if err := s.store.CreateService(ctx, &sv); err != nil {
		return core.Service{}, fmt.Errorf("create service: %w", err)
	}
	nudgeSync(ctx, s.amqp, storage.EntityService, sv.ID, sv.Version)
	return sv, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, sv core.Service) (core.Service, error) {
	if err := sv.Validate(); err != nil {
		return core.Service{}, err
	}
	if err := s.store.UpdateService(ctx, &sv); err != nil {
		return core.Service{}, err
	}
	nudgeSync(ctx, s.amqp, storage.EntityService, sv.ID, sv.Version)
	return sv, nil
}

func (s *CatalogService) DeleteService(ctx context.Context, id string) error {
	if err := s.store.DeleteService(ctx, id); err != nil {
		return err
	}
	nudgeSync(ctx, s.amqp, storage.EntityService, id, 0)
	return nil
}

func (s *CatalogService) GetService(ctx context.Context, id string) (core.Service, error) {
	return s.store.GetService(ctx, id)
}

func (s *CatalogService) ListServices(ctx context.Context) ([]core.Service, error) {
	return s.store.ListServices(ctx)
}
