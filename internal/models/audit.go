package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderAuditEvent описывает запись в append-only журнале переходов заказа.
// ActorID отсутствует для системных действий (реконсилятор, платёжный шлюз).
type OrderAuditEvent struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OrderID    uuid.UUID  `db:"order_id" json:"order_id"`
	ActorID    *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	ActorRole  string     `db:"actor_role" json:"actor_role"`
	Action     string     `db:"action" json:"action"`
	FromStatus string     `db:"from_status" json:"from_status"`
	ToStatus   *string    `db:"to_status" json:"to_status,omitempty"`
	Result     string     `db:"result" json:"result"`
	Reason     *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
