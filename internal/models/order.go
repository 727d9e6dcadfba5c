package models

import (
	"time"

	"github.com/google/uuid"
)

// Order описывает заказ услуги между покупателем и продавцом.
// Поле Version используется для оптимистичной блокировки: каждый
// переход статуса увеличивает версию на единицу.
type Order struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ServiceID          uuid.UUID  `db:"service_id" json:"service_id"`
	BuyerID            uuid.UUID  `db:"buyer_id" json:"buyer_id"`
	SellerID           uuid.UUID  `db:"seller_id" json:"seller_id"`
	Title              string     `db:"title" json:"title"`
	Requirements       *string    `db:"requirements" json:"requirements,omitempty"`
	Amount             float64    `db:"amount" json:"amount"`
	Status             string     `db:"status" json:"status"`
	Version            int64      `db:"version" json:"version"`
	RevisionCount      int        `db:"revision_count" json:"revision_count"`
	PaymentToken       *string    `db:"payment_token" json:"payment_token,omitempty"`
	PaymentRedirectURL *string    `db:"payment_redirect_url" json:"payment_redirect_url,omitempty"`
	PaymentExpiresAt   *time.Time `db:"payment_expires_at" json:"payment_expires_at,omitempty"`
	PaidAt             *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	StartedAt          *time.Time `db:"started_at" json:"started_at,omitempty"`
	DeliveredAt        *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason       *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy        *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTerminal сообщает, является ли текущий статус заказа конечным.
func (o *Order) IsTerminal() bool {
	_, ok := TerminalOrderStatuses[o.Status]
	return ok
}

// ProgressEntry хранит отметку о ходе работы по заказу.
// Вложение опционально: путь, тип и размер заполняются при загрузке файла.
type ProgressEntry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrderID        uuid.UUID `db:"order_id" json:"order_id"`
	AuthorID       uuid.UUID `db:"author_id" json:"author_id"`
	Note           string    `db:"note" json:"note"`
	AttachmentPath *string   `db:"attachment_path" json:"attachment_path,omitempty"`
	AttachmentType *string   `db:"attachment_type" json:"attachment_type,omitempty"`
	AttachmentSize *int64    `db:"attachment_size" json:"attachment_size,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
