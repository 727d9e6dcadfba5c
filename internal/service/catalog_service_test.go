package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

type mockCatalogRepo struct {
	services map[uuid.UUID]*models.Service
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{services: make(map[uuid.UUID]*models.Service)}
}

func (m *mockCatalogRepo) Create(ctx context.Context, service *models.Service) error {
	service.ID = uuid.New()
	m.services[service.ID] = service
	return nil
}

func (m *mockCatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	if svc, ok := m.services[id]; ok {
		return svc, nil
	}
	return nil, repository.ErrServiceNotFound
}

func (m *mockCatalogRepo) List(ctx context.Context, params repository.ServiceFilterParams) ([]models.Service, int, error) {
	var result []models.Service
	for _, svc := range m.services {
		if svc.IsActive {
			result = append(result, *svc)
		}
	}
	return result, len(result), nil
}

func (m *mockCatalogRepo) SetActive(ctx context.Context, id uuid.UUID, sellerID uuid.UUID, isActive bool) error {
	svc, ok := m.services[id]
	if !ok || svc.SellerID != sellerID {
		return repository.ErrServiceNotFound
	}
	svc.IsActive = isActive
	return nil
}

func TestCatalogService_CreateService(t *testing.T) {
	repo := newMockCatalogRepo()
	svc := NewCatalogService(repo)
	sellerID := uuid.New()

	created, err := svc.CreateService(context.Background(), sellerID, CreateServiceInput{
		Title: "  Вёрстка лендинга  ",
		Price: 15000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Вёрстка лендинга", created.Title)
	assert.True(t, created.IsActive)
	assert.Equal(t, sellerID, created.SellerID)
}

func TestCatalogService_CreateService_Validation(t *testing.T) {
	svc := NewCatalogService(newMockCatalogRepo())
	ctx := context.Background()

	_, err := svc.CreateService(ctx, uuid.New(), CreateServiceInput{Title: "ок", Price: 100})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateService(ctx, uuid.New(), CreateServiceInput{Title: "Нормальное название", Price: 0})
	assert.True(t, apperror.IsValidation(err))
}

func TestCatalogService_SetServiceActive_OwnerOnly(t *testing.T) {
	repo := newMockCatalogRepo()
	svc := NewCatalogService(repo)
	ctx := context.Background()
	sellerID := uuid.New()

	created, err := svc.CreateService(ctx, sellerID, CreateServiceInput{Title: "Дизайн баннера", Price: 5000})
	require.NoError(t, err)

	// Чужая услуга недоступна для управления.
	err = svc.SetServiceActive(ctx, created.ID, uuid.New(), false)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, svc.SetServiceActive(ctx, created.ID, sellerID, false))

	current, err := svc.GetService(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, current.IsActive)
}

func TestCatalogService_GetService_NotFound(t *testing.T) {
	svc := NewCatalogService(newMockCatalogRepo())

	_, err := svc.GetService(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
