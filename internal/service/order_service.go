package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/gateway"
	"github.com/ignatzorin/gigmarket-backend/internal/goroutine"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

// statusRetries ограничивает число повторов CAS-обновления при
// конкурентном изменении заказа.
const statusRetries = 3

// OrderRepository описывает зависимости сервиса от хранилища заказов.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus string, version int64, upd repository.StatusUpdate) (*models.Order, error)
	List(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error)
	ListDueAutoComplete(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
	ListDueExpire(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
	AddProgressEntry(ctx context.Context, entry *models.ProgressEntry) error
	ListProgress(ctx context.Context, orderID uuid.UUID) ([]models.ProgressEntry, error)
}

// EscrowLedger описывает операции над холдом средств по заказу.
type EscrowLedger interface {
	CreateHold(ctx context.Context, orderID, buyerID, sellerID uuid.UUID, amount float64) (*models.EscrowHold, bool, error)
	ReleaseHold(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, bool, error)
	RefundHold(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, bool, error)
	GetHoldByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error)
}

// ServiceCatalog описывает доступ к каталогу услуг.
type ServiceCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
}

// PaymentGateway описывает регистрацию платежа во внешнем шлюзе.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, orderID uuid.UUID, amount float64) (*gateway.Transaction, error)
}

// AuditLog описывает append-only журнал переходов.
type AuditLog interface {
	Append(ctx context.Context, event *models.OrderAuditEvent) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAuditEvent, error)
}

// Notifier доставляет события сторонам заказа. Реализуется WebSocket хабом.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// Actor идентифицирует инициатора перехода. Для системных переходов
// (реконсайлер, платёжный callback) UserID нулевой, роль system.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// SystemActor используется реконсайлером и обработчиком платежей.
var SystemActor = Actor{Role: models.RoleSystem}

// OrderServiceConfig задаёт параметры жизненного цикла заказов.
type OrderServiceConfig struct {
	// RevisionLimit ограничивает число доработок по заказу, 0 значит без лимита.
	RevisionLimit int
	// PaymentTTL задаёт срок жизни ссылки на оплату.
	PaymentTTL time.Duration
	// AutoCompleteAfter задаёт срок автоподтверждения сданного заказа.
	AutoCompleteAfter time.Duration
}

// OrderService реализует машину состояний заказа. Каждый переход
// выполняется по схеме: авторизация инициатора, проверка исходного
// статуса, идемпотентный побочный эффект, CAS-обновление строки заказа.
type OrderService struct {
	orders   OrderRepository
	escrow   EscrowLedger
	catalog  ServiceCatalog
	gateway  PaymentGateway
	audit    AuditLog
	notifier Notifier
	cfg      OrderServiceConfig
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(
	orders OrderRepository,
	escrow EscrowLedger,
	catalog ServiceCatalog,
	gw PaymentGateway,
	audit AuditLog,
	notifier Notifier,
	cfg OrderServiceConfig,
) *OrderService {
	if cfg.PaymentTTL <= 0 {
		cfg.PaymentTTL = 24 * time.Hour
	}
	if cfg.AutoCompleteAfter <= 0 {
		cfg.AutoCompleteAfter = 72 * time.Hour
	}
	return &OrderService{
		orders:   orders,
		escrow:   escrow,
		catalog:  catalog,
		gateway:  gw,
		audit:    audit,
		notifier: notifier,
		cfg:      cfg,
	}
}

// CreateOrderInput содержит данные для создания черновика заказа.
type CreateOrderInput struct {
	ServiceID    uuid.UUID
	Requirements *string
}

// CreateOrder создаёт черновик заказа по услуге из каталога.
// Название и сумма фиксируются на момент создания.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	svc, err := s.catalog.GetByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return nil, apperror.ErrServiceNotFound
		}
		return nil, err
	}

	if !svc.IsActive {
		return nil, apperror.New(apperror.ErrCodeValidation, "услуга недоступна для заказа")
	}

	if svc.SellerID == buyerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя заказать собственную услугу")
	}

	order := &models.Order{
		ServiceID:    svc.ID,
		BuyerID:      buyerID,
		SellerID:     svc.SellerID,
		Title:        svc.Title,
		Requirements: in.Requirements,
		Amount:       svc.Price,
		Status:       models.OrderStatusDraft,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder возвращает заказ, доступ имеют только его стороны.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(actor, order) {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя в его роли.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, params repository.ListFilterParams) (*repository.ListResult, error) {
	params.UserID = actor.UserID
	params.Role = actor.Role
	if params.Status != "" {
		if _, ok := models.ValidOrderStatuses[params.Status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый статус")
		}
	}
	return s.orders.List(ctx, params)
}

// ListAudit возвращает журнал переходов заказа его сторонам.
func (s *OrderService) ListAudit(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.OrderAuditEvent, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(actor, order) {
		return nil, apperror.ErrForbidden
	}
	return s.audit.ListByOrder(ctx, orderID)
}

// Confirm подтверждает черновик заказа и регистрирует платёж в шлюзе.
// Переход draft -> waiting_payment доступен только покупателю.
func (s *OrderService) Confirm(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusDraft {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionConfirm)
	}

	// Регистрация платежа до перехода: при отказе шлюза заказ остаётся черновиком.
	tx, err := s.gateway.CreateTransaction(ctx, order.ID, order.Amount)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный шлюз недоступен")
	}

	expiresAt := time.Now().Add(s.cfg.PaymentTTL)
	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus:          models.OrderStatusWaitingPayment,
		PaymentToken:       &tx.Token,
		PaymentRedirectURL: &tx.RedirectURL,
		PaymentExpiresAt:   &expiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, actor, models.AuditActionConfirm, order.Status, models.AuditResultAccepted, nil)
	s.notify(updated.SellerID, "order_confirmed", updated)
	return updated, nil
}

// HandlePaymentSettled обрабатывает подтверждённую оплату: создаёт холд
// и переводит заказ в paid_escrow. Повторная доставка уведомления шлюза
// не приводит к повторному движению средств.
func (s *OrderService) HandlePaymentSettled(ctx context.Context, orderID uuid.UUID, amount float64) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Сумма из уведомления обязана совпадать с суммой заказа.
	if amount != order.Amount {
		reason := fmt.Sprintf("сумма платежа %.2f не совпадает с суммой заказа %.2f", amount, order.Amount)
		s.recordAudit(ctx, order, SystemActor, models.AuditActionPaymentSettled, order.Status, models.AuditResultRejected, &reason)
		return nil, apperror.New(apperror.ErrCodeValidation, reason)
	}

	// Повторная доставка после успешной обработки.
	if order.Status != models.OrderStatusWaitingPayment {
		if order.Status == models.OrderStatusDraft {
			return nil, s.rejectTransition(ctx, order, SystemActor, models.AuditActionPaymentSettled)
		}
		return order, nil
	}

	if _, _, err := s.escrow.CreateHold(ctx, order.ID, order.BuyerID, order.SellerID, order.Amount); err != nil {
		return nil, err
	}

	now := time.Now()
	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus: models.OrderStatusPaidEscrow,
		PaidAt:    &now,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, SystemActor, models.AuditActionPaymentSettled, order.Status, models.AuditResultAccepted, nil)
	s.notify(updated.SellerID, "order_paid", updated)
	s.notify(updated.BuyerID, "order_paid", updated)
	return updated, nil
}

// StartWork начинает работу по оплаченному заказу.
// Переход paid_escrow -> in_progress доступен только продавцу.
func (s *OrderService) StartWork(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusPaidEscrow {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionStartWork)
	}

	now := time.Now()
	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus: models.OrderStatusInProgress,
		StartedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, actor, models.AuditActionStartWork, order.Status, models.AuditResultAccepted, nil)
	s.notify(updated.BuyerID, "order_started", updated)
	return updated, nil
}

// Deliver сдаёт работу на приёмку. Переход доступен продавцу из
// in_progress и из revision, отметка о сдаче обновляется при каждой сдаче.
func (s *OrderService) Deliver(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusInProgress && order.Status != models.OrderStatusRevision {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionDeliver)
	}

	now := time.Now()
	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus:   models.OrderStatusDelivered,
		DeliveredAt: &now,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, actor, models.AuditActionDeliver, order.Status, models.AuditResultAccepted, nil)
	s.notify(updated.BuyerID, "order_delivered", updated)
	return updated, nil
}

// RequestRevision отправляет работу на доработку.
// Переход delivered -> revision доступен только покупателю и учитывает
// лимит доработок, если он настроен.
func (s *OrderService) RequestRevision(ctx context.Context, actor Actor, orderID uuid.UUID, comment string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusDelivered {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionRequestRevision)
	}

	if s.cfg.RevisionLimit > 0 && order.RevisionCount >= s.cfg.RevisionLimit {
		reason := fmt.Sprintf("исчерпан лимит доработок (%d)", s.cfg.RevisionLimit)
		s.recordAudit(ctx, order, actor, models.AuditActionRequestRevision, order.Status, models.AuditResultRejected, &reason)
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, reason)
	}

	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus:         models.OrderStatusRevision,
		IncrementRevision: true,
	})
	if err != nil {
		return nil, err
	}

	var reason *string
	if comment != "" {
		reason = &comment
	}
	s.recordAudit(ctx, updated, actor, models.AuditActionRequestRevision, order.Status, models.AuditResultAccepted, reason)

	if comment != "" {
		entry := &models.ProgressEntry{
			OrderID:  updated.ID,
			AuthorID: actor.UserID,
			Note:     comment,
		}
		if err := s.orders.AddProgressEntry(ctx, entry); err != nil {
			logger.Log.WithError(err).Warn("order service: не удалось сохранить комментарий к доработке")
		}
	}

	s.notify(updated.SellerID, "order_revision_requested", updated)
	return updated, nil
}

// Approve принимает работу и освобождает средства продавцу.
// Переход delivered -> completed доступен только покупателю.
// Гонка с автоподтверждением разрешается в пользу уже достигнутого
// completed: повторного движения средств не происходит.
func (s *OrderService) Approve(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status == models.OrderStatusCompleted {
		return order, nil
	}

	if order.Status != models.OrderStatusDelivered {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionApprove)
	}

	return s.complete(ctx, order, actor, models.AuditActionApprove)
}

// AutoComplete подтверждает сданный заказ от имени системы.
func (s *OrderService) AutoComplete(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusCompleted {
		return order, nil
	}

	if order.Status != models.OrderStatusDelivered {
		return nil, s.rejectTransition(ctx, order, SystemActor, models.AuditActionAutoComplete)
	}

	return s.complete(ctx, order, SystemActor, models.AuditActionAutoComplete)
}

// complete выполняет общий для approve и автоподтверждения сценарий:
// сначала идемпотентное освобождение холда, затем CAS-переход.
func (s *OrderService) complete(ctx context.Context, order *models.Order, actor Actor, action string) (*models.Order, error) {
	if _, _, err := s.escrow.ReleaseHold(ctx, order.ID); err != nil {
		if errors.Is(err, repository.ErrEscrowConsumed) {
			return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "средства по заказу уже возвращены")
		}
		return nil, err
	}

	now := time.Now()
	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus:   models.OrderStatusCompleted,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, actor, action, order.Status, models.AuditResultAccepted, nil)
	s.notify(updated.SellerID, "order_completed", updated)
	s.notify(updated.BuyerID, "order_completed", updated)
	return updated, nil
}

// CancelByBuyer отменяет заказ покупателем до оплаты.
// Доступно из draft и waiting_payment; если шлюз успел зачислить
// средства, они возвращаются покупателю.
func (s *OrderService) CancelByBuyer(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.BuyerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusDraft && order.Status != models.OrderStatusWaitingPayment {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionCancelByBuyer)
	}

	refund := order.Status == models.OrderStatusWaitingPayment
	return s.cancel(ctx, order, actor, models.AuditActionCancelByBuyer, models.CancelledByBuyer, nil, refund)
}

// CancelBySeller отменяет заказ продавцом с обязательной причиной.
// Доступно из paid_escrow и in_progress, средства возвращаются покупателю.
func (s *OrderService) CancelBySeller(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина отмены обязательна")
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusPaidEscrow && order.Status != models.OrderStatusInProgress {
		return nil, s.rejectTransition(ctx, order, actor, models.AuditActionCancelBySeller)
	}

	return s.cancel(ctx, order, actor, models.AuditActionCancelBySeller, models.CancelledBySeller, &reason, true)
}

// AutoExpire отменяет заказ, не оплаченный в срок.
func (s *OrderService) AutoExpire(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusCancelled {
		return order, nil
	}

	if order.Status != models.OrderStatusWaitingPayment {
		return nil, s.rejectTransition(ctx, order, SystemActor, models.AuditActionAutoExpire)
	}

	reason := "срок оплаты истёк"
	return s.cancel(ctx, order, SystemActor, models.AuditActionAutoExpire, models.CancelledBySystem, &reason, true)
}

// cancel выполняет общий сценарий отмены: идемпотентный возврат средств
// (если холд существует), затем CAS-переход в cancelled.
func (s *OrderService) cancel(ctx context.Context, order *models.Order, actor Actor, action, cancelledBy string, reason *string, refund bool) (*models.Order, error) {
	if refund {
		if _, _, err := s.escrow.RefundHold(ctx, order.ID); err != nil {
			if errors.Is(err, repository.ErrEscrowConsumed) {
				return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "средства по заказу уже выплачены")
			}
			// Отсутствие холда допустимо: оплата так и не поступила.
			if !errors.Is(err, repository.ErrEscrowNotFound) {
				return nil, err
			}
		}
	}

	now := time.Now()
	updated, err := s.applyStatus(ctx, order, repository.StatusUpdate{
		NewStatus:    models.OrderStatusCancelled,
		CancelledAt:  &now,
		CancelReason: reason,
		CancelledBy:  &cancelledBy,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, updated, actor, action, order.Status, models.AuditResultAccepted, reason)
	s.notify(updated.BuyerID, "order_cancelled", updated)
	s.notify(updated.SellerID, "order_cancelled", updated)
	return updated, nil
}

// AddProgress сохраняет отметку продавца о ходе работы.
func (s *OrderService) AddProgress(ctx context.Context, actor Actor, entry *models.ProgressEntry) (*models.ProgressEntry, error) {
	order, err := s.getOrder(ctx, entry.OrderID)
	if err != nil {
		return nil, err
	}

	if order.SellerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	if order.Status != models.OrderStatusInProgress && order.Status != models.OrderStatusRevision {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "отметки о ходе работы доступны только во время выполнения заказа")
	}

	entry.AuthorID = actor.UserID
	if err := s.orders.AddProgressEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.notify(order.BuyerID, "order_progress", entry)
	return entry, nil
}

// ListProgress возвращает отметки о ходе работы сторонам заказа.
func (s *OrderService) ListProgress(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.ProgressEntry, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(actor, order) {
		return nil, apperror.ErrForbidden
	}
	return s.orders.ListProgress(ctx, orderID)
}

// GetEscrow возвращает холд по заказу его сторонам.
func (s *OrderService) GetEscrow(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.EscrowHold, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(actor, order) {
		return nil, apperror.ErrForbidden
	}

	hold, err := s.escrow.GetHoldByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	return hold, nil
}

// applyStatus выполняет CAS-переход с ограниченным числом повторов.
// Если конкурент уже привёл заказ в целевой статус, переход считается
// успешным без повторного обновления.
func (s *OrderService) applyStatus(ctx context.Context, order *models.Order, upd repository.StatusUpdate) (*models.Order, error) {
	fromStatus := order.Status
	version := order.Version

	for attempt := 0; attempt < statusRetries; attempt++ {
		updated, err := s.orders.UpdateStatus(ctx, order.ID, fromStatus, version, upd)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrStatusConflict) {
			return nil, err
		}

		current, err := s.getOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}

		if current.Status == upd.NewStatus {
			return current, nil
		}
		if current.Status != fromStatus {
			return nil, apperror.New(apperror.ErrCodeConflict, "заказ изменён конкурентной операцией")
		}
		version = current.Version
	}

	return nil, apperror.New(apperror.ErrCodeConflict, "заказ изменён конкурентной операцией")
}

// rejectTransition фиксирует отклонённую попытку перехода в журнале
// и возвращает ошибку недопустимого перехода.
func (s *OrderService) rejectTransition(ctx context.Context, order *models.Order, actor Actor, action string) error {
	reason := fmt.Sprintf("переход из статуса %s недопустим", order.Status)
	s.recordAudit(ctx, order, actor, action, order.Status, models.AuditResultRejected, &reason)
	return apperror.New(apperror.ErrCodeInvalidTransition, reason)
}

// recordAudit добавляет запись в журнал переходов. Журнал ведётся по
// принципу best effort: сбой записи логируется и не блокирует переход.
func (s *OrderService) recordAudit(ctx context.Context, order *models.Order, actor Actor, action, fromStatus, result string, reason *string) {
	event := &models.OrderAuditEvent{
		OrderID:    order.ID,
		ActorRole:  actor.Role,
		Action:     action,
		FromStatus: fromStatus,
		Result:     result,
		Reason:     reason,
	}
	if actor.UserID != uuid.Nil {
		actorID := actor.UserID
		event.ActorID = &actorID
	}
	if result == models.AuditResultAccepted {
		event.ToStatus = &order.Status
	}

	if err := s.audit.Append(ctx, event); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"order_id": order.ID,
			"action":   action,
			"error":    err.Error(),
		}).Warn("order service: не удалось записать событие аудита")
	}
}

// notify отправляет событие стороне заказа, не блокируя переход.
func (s *OrderService) notify(userID uuid.UUID, event string, data any) {
	if s.notifier == nil {
		return
	}
	goroutine.SafeGo(func() {
		if err := s.notifier.BroadcastToUser(userID, event, data); err != nil {
			logger.Log.WithError(err).Debug("order service: не удалось отправить уведомление")
		}
	})
}

func (s *OrderService) getOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) isParty(actor Actor, order *models.Order) bool {
	return actor.UserID == order.BuyerID || actor.UserID == order.SellerID
}
