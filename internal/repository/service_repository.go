package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// ErrServiceNotFound возвращается, когда услуга не найдена.
var ErrServiceNotFound = errors.New("service not found")

// ServiceRepository отвечает за каталог услуг.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository создаёт новый экземпляр.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// Create сохраняет новую услугу.
func (r *ServiceRepository) Create(ctx context.Context, service *models.Service) error {
	query := `
		INSERT INTO services (seller_id, title, description, price, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		service.SellerID,
		service.Title,
		service.Description,
		service.Price,
		service.IsActive,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt); err != nil {
		return fmt.Errorf("service repository: create %w", err)
	}

	return nil
}

// GetByID возвращает услугу по идентификатору.
func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	if err := r.db.GetContext(ctx, &service, `SELECT * FROM services WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("service repository: get by id %w", err)
	}
	return &service, nil
}

// ServiceFilterParams содержит параметры фильтрации каталога.
type ServiceFilterParams struct {
	SellerID *uuid.UUID
	Search   string
	PriceMin *float64
	PriceMax *float64
	Limit    int
	Offset   int
}

// List возвращает активные услуги каталога с фильтрацией и пагинацией.
func (r *ServiceRepository) List(ctx context.Context, params ServiceFilterParams) ([]models.Service, int, error) {
	countQuery := `SELECT COUNT(*) FROM services WHERE is_active = TRUE`
	query := `SELECT * FROM services WHERE is_active = TRUE`

	args := []interface{}{}
	argIndex := 1

	if params.SellerID != nil {
		clause := fmt.Sprintf(" AND seller_id = $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, *params.SellerID)
		argIndex++
	}

	if params.Search != "" {
		clause := fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex)
		query += clause
		countQuery += clause
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	if params.PriceMin != nil {
		clause := fmt.Sprintf(" AND price >= $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, *params.PriceMin)
		argIndex++
	}

	if params.PriceMax != nil {
		clause := fmt.Sprintf(" AND price <= $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, *params.PriceMax)
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("service repository: count %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++
	query += fmt.Sprintf(" OFFSET $%d", argIndex)
	args = append(args, offset)

	var services []models.Service
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, 0, fmt.Errorf("service repository: list %w", err)
	}

	return services, total, nil
}

// SetActive включает или выключает услугу в каталоге.
func (r *ServiceRepository) SetActive(ctx context.Context, id uuid.UUID, sellerID uuid.UUID, isActive bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE services SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND seller_id = $2
	`, id, sellerID, isActive)
	if err != nil {
		return fmt.Errorf("service repository: set active %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("service repository: set active rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrServiceNotFound
	}

	return nil
}
