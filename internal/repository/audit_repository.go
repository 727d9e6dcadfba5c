package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// AuditRepository отвечает за append-only журнал переходов заказов.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append добавляет событие в журнал. Записи никогда не изменяются и не удаляются.
func (r *AuditRepository) Append(ctx context.Context, event *models.OrderAuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_audit (order_id, actor_id, actor_role, action, from_status, to_status, result, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.OrderID, event.ActorID, event.ActorRole, event.Action, event.FromStatus, event.ToStatus, event.Result, event.Reason)
	if err != nil {
		return fmt.Errorf("audit repository: append %w", err)
	}
	return nil
}

// ListByOrder возвращает события журнала по заказу в хронологическом порядке.
func (r *AuditRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAuditEvent, error) {
	var events []models.OrderAuditEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM order_audit WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("audit repository: list by order %w", err)
	}
	return events, nil
}
