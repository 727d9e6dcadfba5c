package models

// OrderStatus константы статусов заказов
const (
	OrderStatusDraft          = "draft"
	OrderStatusWaitingPayment = "waiting_payment"
	OrderStatusPaidEscrow     = "paid_escrow"
	OrderStatusInProgress     = "in_progress"
	OrderStatusDelivered      = "delivered"
	OrderStatusRevision       = "revision"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

// Роли пользователей
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleSystem = "system"
)

// Инициаторы отмены заказа
const (
	CancelledByBuyer  = "buyer"
	CancelledBySeller = "seller"
	CancelledBySystem = "system"
)

// Действия в журнале аудита заказа
const (
	AuditActionConfirm         = "confirm"
	AuditActionPaymentSettled  = "payment_settled"
	AuditActionStartWork       = "start_work"
	AuditActionDeliver         = "deliver"
	AuditActionRequestRevision = "request_revision"
	AuditActionApprove         = "approve"
	AuditActionCancelByBuyer   = "cancel_by_buyer"
	AuditActionCancelBySeller  = "cancel_by_seller"
	AuditActionAutoComplete    = "auto_complete"
	AuditActionAutoExpire      = "auto_expire"
)

// Результаты попытки перехода в журнале аудита
const (
	AuditResultAccepted = "accepted"
	AuditResultRejected = "rejected"
)

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusDraft:          {},
	OrderStatusWaitingPayment: {},
	OrderStatusPaidEscrow:     {},
	OrderStatusInProgress:     {},
	OrderStatusDelivered:      {},
	OrderStatusRevision:       {},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
}

// TerminalOrderStatuses статусы, из которых нет переходов
var TerminalOrderStatuses = map[string]struct{}{
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// ValidRoles список валидных ролей при регистрации
var ValidRoles = map[string]struct{}{
	RoleBuyer:  {},
	RoleSeller: {},
}
