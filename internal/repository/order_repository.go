package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusConflict возвращается, когда CAS-обновление статуса не нашло
	// строку с ожидаемым статусом и версией (заказ изменён конкурентно).
	ErrStatusConflict = errors.New("order status conflict")
)

const orderColumns = `
	id, service_id, buyer_id, seller_id, title, requirements, amount, status, version,
	revision_count, payment_token, payment_redirect_url, payment_expires_at,
	paid_at, started_at, delivered_at, completed_at, cancelled_at,
	cancel_reason, cancelled_by, created_at, updated_at
`

// OrderRepository отвечает за хранение заказов и отметок о ходе работы.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет черновик заказа.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (service_id, buyer_id, seller_id, title, requirements, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, revision_count, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		order.ServiceID,
		order.BuyerID,
		order.SellerID,
		order.Title,
		order.Requirements,
		order.Amount,
		order.Status,
	).Scan(&order.ID, &order.Version, &order.RevisionCount, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("order repository: insert order %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// StatusUpdate описывает изменения, применяемые вместе с переходом статуса.
// Nil-поля оставляют текущее значение колонки без изменений.
type StatusUpdate struct {
	NewStatus          string
	IncrementRevision  bool
	PaymentToken       *string
	PaymentRedirectURL *string
	PaymentExpiresAt   *time.Time
	PaidAt             *time.Time
	StartedAt          *time.Time
	DeliveredAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancelReason       *string
	CancelledBy        *string
}

// UpdateStatus выполняет переход статуса по схеме compare-and-set:
// строка обновляется только если её статус и версия совпадают с ожидаемыми.
// Ноль затронутых строк означает конкурентное изменение (ErrStatusConflict).
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus string, version int64, upd StatusUpdate) (*models.Order, error) {
	revisionInc := 0
	if upd.IncrementRevision {
		revisionInc = 1
	}

	query := `
		UPDATE orders SET
			status = $4,
			version = version + 1,
			revision_count = revision_count + $5,
			payment_token = COALESCE($6, payment_token),
			payment_redirect_url = COALESCE($7, payment_redirect_url),
			payment_expires_at = COALESCE($8, payment_expires_at),
			paid_at = COALESCE($9, paid_at),
			started_at = COALESCE($10, started_at),
			delivered_at = COALESCE($11, delivered_at),
			completed_at = COALESCE($12, completed_at),
			cancelled_at = COALESCE($13, cancelled_at),
			cancel_reason = COALESCE($14, cancel_reason),
			cancelled_by = COALESCE($15, cancelled_by),
			updated_at = NOW()
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING ` + orderColumns

	var order models.Order
	err := r.db.QueryRowxContext(
		ctx,
		query,
		orderID,
		fromStatus,
		version,
		upd.NewStatus,
		revisionInc,
		upd.PaymentToken,
		upd.PaymentRedirectURL,
		upd.PaymentExpiresAt,
		upd.PaidAt,
		upd.StartedAt,
		upd.DeliveredAt,
		upd.CompletedAt,
		upd.CancelledAt,
		upd.CancelReason,
		upd.CancelledBy,
	).StructScan(&order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("order repository: update status %w", err)
	}

	return &order, nil
}

// ListFilterParams содержит параметры фильтрации списка заказов пользователя.
type ListFilterParams struct {
	UserID uuid.UUID
	Role   string
	Status string
	Search string
	Limit  int
	Offset int
}

// ListResult содержит список заказов и метаданные пагинации.
type ListResult struct {
	Orders  []models.Order
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// List возвращает заказы пользователя с пагинацией, фильтрацией и поиском.
// Покупатель видит заказы, где он покупатель, продавец видит свои продажи.
func (r *OrderRepository) List(ctx context.Context, params ListFilterParams) (*ListResult, error) {
	countQuery := `SELECT COUNT(*) FROM orders WHERE 1=1`
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	var partyClause string
	if params.Role == models.RoleSeller {
		partyClause = fmt.Sprintf(" AND seller_id = $%d", argIndex)
	} else {
		partyClause = fmt.Sprintf(" AND buyer_id = $%d", argIndex)
	}
	query += partyClause
	countQuery += partyClause
	args = append(args, params.UserID)
	argIndex++

	if params.Status != "" {
		clause := fmt.Sprintf(" AND status = $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, params.Status)
		argIndex++
	}

	if params.Search != "" {
		clause := fmt.Sprintf(" AND (title ILIKE $%d OR COALESCE(requirements, '') ILIKE $%d)", argIndex, argIndex)
		query += clause
		countQuery += clause
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("order repository: count %w", err)
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

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("order repository: list %w", err)
	}

	return &ListResult{
		Orders:  orders,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}, nil
}

// ListDueAutoComplete возвращает заказы в статусе delivered,
// у которых отметка о сдаче старше переданного порога.
func (r *OrderRepository) ListDueAutoComplete(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND delivered_at IS NOT NULL AND delivered_at <= $2
		ORDER BY delivered_at ASC
		LIMIT $3
	`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, models.OrderStatusDelivered, before, limit); err != nil {
		return nil, fmt.Errorf("order repository: list due auto complete %w", err)
	}
	return orders, nil
}

// ListDueExpire возвращает заказы в статусе waiting_payment,
// у которых срок оплаты уже прошёл.
func (r *OrderRepository) ListDueExpire(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND payment_expires_at IS NOT NULL AND payment_expires_at <= $2
		ORDER BY payment_expires_at ASC
		LIMIT $3
	`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, models.OrderStatusWaitingPayment, before, limit); err != nil {
		return nil, fmt.Errorf("order repository: list due expire %w", err)
	}
	return orders, nil
}

// AddProgressEntry сохраняет отметку о ходе работы.
func (r *OrderRepository) AddProgressEntry(ctx context.Context, entry *models.ProgressEntry) error {
	query := `
		INSERT INTO order_progress (order_id, author_id, note, attachment_path, attachment_type, attachment_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		entry.OrderID,
		entry.AuthorID,
		entry.Note,
		entry.AttachmentPath,
		entry.AttachmentType,
		entry.AttachmentSize,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("order repository: add progress entry %w", err)
	}

	return nil
}

// ListProgress возвращает отметки о ходе работы в хронологическом порядке.
func (r *OrderRepository) ListProgress(ctx context.Context, orderID uuid.UUID) ([]models.ProgressEntry, error) {
	var entries []models.ProgressEntry
	query := `
		SELECT id, order_id, author_id, note, attachment_path, attachment_type, attachment_size, created_at
		FROM order_progress
		WHERE order_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &entries, query, orderID); err != nil {
		return nil, fmt.Errorf("order repository: list progress %w", err)
	}
	return entries, nil
}
