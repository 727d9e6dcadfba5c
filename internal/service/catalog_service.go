package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// CatalogRepository описывает зависимости сервиса каталога от хранилища.
type CatalogRepository interface {
	Create(ctx context.Context, service *models.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	List(ctx context.Context, params repository.ServiceFilterParams) ([]models.Service, int, error)
	SetActive(ctx context.Context, id uuid.UUID, sellerID uuid.UUID, isActive bool) error
}

// CatalogService содержит бизнес-логику каталога услуг.
type CatalogService struct {
	repo CatalogRepository
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// CreateServiceInput содержит данные для публикации услуги.
type CreateServiceInput struct {
	Title       string
	Description string
	Price       float64
}

// CreateService публикует новую услугу продавца.
func (s *CatalogService) CreateService(ctx context.Context, sellerID uuid.UUID, in CreateServiceInput) (*models.Service, error) {
	title := strings.TrimSpace(in.Title)
	if err := validation.ValidateServiceTitle(title); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePrice(in.Price); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	service := &models.Service{
		SellerID:    sellerID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		IsActive:    true,
	}

	if err := s.repo.Create(ctx, service); err != nil {
		return nil, err
	}

	return service, nil
}

// GetService возвращает услугу по идентификатору.
func (s *CatalogService) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	service, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return nil, apperror.ErrServiceNotFound
		}
		return nil, err
	}
	return service, nil
}

// ListServices возвращает активные услуги каталога.
func (s *CatalogService) ListServices(ctx context.Context, params repository.ServiceFilterParams) ([]models.Service, int, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return s.repo.List(ctx, params)
}

// SetServiceActive включает или выключает услугу в каталоге.
// Управлять услугой может только её владелец.
func (s *CatalogService) SetServiceActive(ctx context.Context, id uuid.UUID, sellerID uuid.UUID, isActive bool) error {
	if err := s.repo.SetActive(ctx, id, sellerID, isActive); err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return apperror.ErrServiceNotFound
		}
		return err
	}
	return nil
}
