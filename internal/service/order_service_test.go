package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/gateway"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init("fatal")
	os.Exit(m.Run())
}

// fakeOrderStore хранит заказы в памяти и воспроизводит CAS-семантику
// UpdateStatus. beforeUpdate позволяет имитировать конкурентное изменение
// заказа между чтением и обновлением.
type fakeOrderStore struct {
	mu           sync.Mutex
	orders       map[uuid.UUID]*models.Order
	progress     []models.ProgressEntry
	beforeUpdate func(o *models.Order)
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderStore) Create(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.ID = uuid.New()
	order.Version = 1
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus string, version int64, upd repository.StatusUpdate) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrStatusConflict
	}

	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook(o)
	}

	if o.Status != fromStatus || o.Version != version {
		return nil, repository.ErrStatusConflict
	}

	o.Status = upd.NewStatus
	o.Version++
	if upd.IncrementRevision {
		o.RevisionCount++
	}
	if upd.PaymentToken != nil {
		o.PaymentToken = upd.PaymentToken
	}
	if upd.PaymentRedirectURL != nil {
		o.PaymentRedirectURL = upd.PaymentRedirectURL
	}
	if upd.PaymentExpiresAt != nil {
		o.PaymentExpiresAt = upd.PaymentExpiresAt
	}
	if upd.PaidAt != nil {
		o.PaidAt = upd.PaidAt
	}
	if upd.StartedAt != nil {
		o.StartedAt = upd.StartedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	if upd.CompletedAt != nil {
		o.CompletedAt = upd.CompletedAt
	}
	if upd.CancelledAt != nil {
		o.CancelledAt = upd.CancelledAt
	}
	if upd.CancelReason != nil {
		o.CancelReason = upd.CancelReason
	}
	if upd.CancelledBy != nil {
		o.CancelledBy = upd.CancelledBy
	}
	o.UpdatedAt = time.Now()

	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) List(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		if params.Role == models.RoleSeller && o.SellerID != params.UserID {
			continue
		}
		if params.Role != models.RoleSeller && o.BuyerID != params.UserID {
			continue
		}
		if params.Status != "" && o.Status != params.Status {
			continue
		}
		orders = append(orders, *o)
	}
	return &repository.ListResult{Orders: orders, Total: len(orders)}, nil
}

func (f *fakeOrderStore) ListDueAutoComplete(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusDelivered && o.DeliveredAt != nil && o.DeliveredAt.Before(before) {
			due = append(due, *o)
		}
	}
	return due, nil
}

func (f *fakeOrderStore) ListDueExpire(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusWaitingPayment && o.PaymentExpiresAt != nil && o.PaymentExpiresAt.Before(before) {
			due = append(due, *o)
		}
	}
	return due, nil
}

func (f *fakeOrderStore) AddProgressEntry(ctx context.Context, entry *models.ProgressEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	f.progress = append(f.progress, *entry)
	return nil
}

func (f *fakeOrderStore) ListProgress(ctx context.Context, orderID uuid.UUID) ([]models.ProgressEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.ProgressEntry
	for _, e := range f.progress {
		if e.OrderID == orderID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// fakeEscrow воспроизводит семантику потребления холда ровно один раз.
type fakeEscrow struct {
	mu           sync.Mutex
	holds        map[uuid.UUID]*models.EscrowHold
	releases     int
	refunds      int
	refundErrFor map[uuid.UUID]error
}

func newFakeEscrow() *fakeEscrow {
	return &fakeEscrow{
		holds:        make(map[uuid.UUID]*models.EscrowHold),
		refundErrFor: make(map[uuid.UUID]error),
	}
}

func (f *fakeEscrow) CreateHold(ctx context.Context, orderID, buyerID, sellerID uuid.UUID, amount float64) (*models.EscrowHold, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.holds[orderID]; ok {
		cp := *h
		return &cp, false, nil
	}
	h := &models.EscrowHold{
		ID:       uuid.New(),
		OrderID:  orderID,
		BuyerID:  buyerID,
		SellerID: sellerID,
		Amount:   amount,
		Status:   models.EscrowStatusHeld,
	}
	f.holds[orderID] = h
	cp := *h
	return &cp, true, nil
}

func (f *fakeEscrow) ReleaseHold(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[orderID]
	if !ok {
		return nil, false, repository.ErrEscrowNotFound
	}
	switch h.Status {
	case models.EscrowStatusReleased:
		cp := *h
		return &cp, false, nil
	case models.EscrowStatusRefunded:
		return nil, false, repository.ErrEscrowConsumed
	}
	h.Status = models.EscrowStatusReleased
	f.releases++
	cp := *h
	return &cp, true, nil
}

func (f *fakeEscrow) RefundHold(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.refundErrFor[orderID]; ok {
		return nil, false, err
	}
	h, ok := f.holds[orderID]
	if !ok {
		return nil, false, repository.ErrEscrowNotFound
	}
	switch h.Status {
	case models.EscrowStatusRefunded:
		cp := *h
		return &cp, false, nil
	case models.EscrowStatusReleased:
		return nil, false, repository.ErrEscrowConsumed
	}
	h.Status = models.EscrowStatusRefunded
	f.refunds++
	cp := *h
	return &cp, true, nil
}

func (f *fakeEscrow) GetHoldByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[orderID]
	if !ok {
		return nil, repository.ErrEscrowNotFound
	}
	cp := *h
	return &cp, nil
}

type fakeCatalog struct {
	services map[uuid.UUID]*models.Service
}

func (f *fakeCatalog) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, repository.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

type fakeGateway struct {
	fail  bool
	calls int
}

func (f *fakeGateway) CreateTransaction(ctx context.Context, orderID uuid.UUID, amount float64) (*gateway.Transaction, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("gateway timeout")
	}
	return &gateway.Transaction{Token: "snap-token", RedirectURL: "https://pay.example/" + orderID.String()}, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []models.OrderAuditEvent
}

func (f *fakeAudit) Append(ctx context.Context, event *models.OrderAuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeAudit) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.OrderAuditEvent
	for _, e := range f.events {
		if e.OrderID == orderID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (f *fakeAudit) last() *models.OrderAuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	cp := f.events[len(f.events)-1]
	return &cp
}

// testEnv связывает фейки и сервис заказов для сценарных тестов.
type testEnv struct {
	store     *fakeOrderStore
	escrow    *fakeEscrow
	catalog   *fakeCatalog
	gateway   *fakeGateway
	audit     *fakeAudit
	svc       *OrderService
	serviceID uuid.UUID
	buyer     Actor
	seller    Actor
}

func newTestEnv(t *testing.T, cfg OrderServiceConfig) *testEnv {
	t.Helper()

	buyerID := uuid.New()
	sellerID := uuid.New()
	serviceID := uuid.New()

	env := &testEnv{
		store:   newFakeOrderStore(),
		escrow:  newFakeEscrow(),
		gateway: &fakeGateway{},
		audit:   &fakeAudit{},
		catalog: &fakeCatalog{services: map[uuid.UUID]*models.Service{
			serviceID: {
				ID:       serviceID,
				SellerID: sellerID,
				Title:    "Дизайн логотипа",
				Price:    100000,
				IsActive: true,
			},
		}},
		serviceID: serviceID,
		buyer:     Actor{UserID: buyerID, Role: models.RoleBuyer},
		seller:    Actor{UserID: sellerID, Role: models.RoleSeller},
	}

	env.svc = NewOrderService(env.store, env.escrow, env.catalog, env.gateway, env.audit, nil, cfg)
	return env
}

// newOrderIn создаёт заказ и доводит его до нужного статуса через
// обычные операции сервиса.
func (env *testEnv) newOrderIn(t *testing.T, status string) *models.Order {
	t.Helper()
	ctx := context.Background()

	order, err := env.svc.CreateOrder(ctx, env.buyer.UserID, CreateOrderInput{ServiceID: env.serviceID})
	require.NoError(t, err)
	if status == models.OrderStatusDraft {
		return order
	}

	order, err = env.svc.Confirm(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	if status == models.OrderStatusWaitingPayment {
		return order
	}

	order, err = env.svc.HandlePaymentSettled(ctx, order.ID, order.Amount)
	require.NoError(t, err)
	if status == models.OrderStatusPaidEscrow {
		return order
	}

	order, err = env.svc.StartWork(ctx, env.seller, order.ID)
	require.NoError(t, err)
	if status == models.OrderStatusInProgress {
		return order
	}

	order, err = env.svc.Deliver(ctx, env.seller, order.ID)
	require.NoError(t, err)
	if status == models.OrderStatusDelivered {
		return order
	}

	t.Fatalf("неизвестный целевой статус %s", status)
	return nil
}

func TestOrderService_HappyPath(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order, err := env.svc.CreateOrder(ctx, env.buyer.UserID, CreateOrderInput{ServiceID: env.serviceID})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDraft, order.Status)
	assert.Equal(t, float64(100000), order.Amount)
	assert.Equal(t, "Дизайн логотипа", order.Title)

	order, err = env.svc.Confirm(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusWaitingPayment, order.Status)
	require.NotNil(t, order.PaymentToken)
	assert.Equal(t, "snap-token", *order.PaymentToken)
	require.NotNil(t, order.PaymentExpiresAt)

	order, err = env.svc.HandlePaymentSettled(ctx, order.ID, 100000)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaidEscrow, order.Status)
	assert.NotNil(t, order.PaidAt)

	hold, err := env.svc.GetEscrow(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, hold.Status)
	assert.Equal(t, float64(100000), hold.Amount)

	order, err = env.svc.StartWork(ctx, env.seller, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInProgress, order.Status)

	order, err = env.svc.Deliver(ctx, env.seller, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)

	order, err = env.svc.Approve(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)

	// Средства выплачены продавцу ровно один раз.
	assert.Equal(t, 1, env.escrow.releases)
	assert.Equal(t, 0, env.escrow.refunds)

	events, err := env.svc.ListAudit(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	var actions []string
	for _, e := range events {
		assert.Equal(t, models.AuditResultAccepted, e.Result)
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		models.AuditActionConfirm,
		models.AuditActionPaymentSettled,
		models.AuditActionStartWork,
		models.AuditActionDeliver,
		models.AuditActionApprove,
	}, actions)
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	_, err := env.svc.CreateOrder(ctx, env.buyer.UserID, CreateOrderInput{ServiceID: uuid.New()})
	assert.True(t, apperror.IsNotFound(err))

	_, err = env.svc.CreateOrder(ctx, env.seller.UserID, CreateOrderInput{ServiceID: env.serviceID})
	assert.True(t, apperror.IsValidation(err))

	env.catalog.services[env.serviceID].IsActive = false
	_, err = env.svc.CreateOrder(ctx, env.buyer.UserID, CreateOrderInput{ServiceID: env.serviceID})
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_Confirm_GatewayUnavailable(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDraft)
	env.gateway.fail = true

	_, err := env.svc.Confirm(ctx, env.buyer, order.ID)
	assert.True(t, apperror.IsExternal(err))

	// Отказ шлюза не меняет статус заказа.
	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDraft, current.Status)
}

func TestOrderService_Confirm_OnlyBuyer(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDraft)
	_, err := env.svc.Confirm(ctx, env.seller, order.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_PaymentSettled_AmountMismatch(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	_, err := env.svc.HandlePaymentSettled(ctx, order.ID, 99999)
	assert.True(t, apperror.IsValidation(err))

	// Несовпадение суммы фиксируется в журнале как отклонённое событие.
	last := env.audit.last()
	require.NotNil(t, last)
	assert.Equal(t, models.AuditActionPaymentSettled, last.Action)
	assert.Equal(t, models.AuditResultRejected, last.Result)

	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusWaitingPayment, current.Status)
}

func TestOrderService_PaymentSettled_Redelivery(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	first, err := env.svc.HandlePaymentSettled(ctx, order.ID, order.Amount)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaidEscrow, first.Status)

	// Повторное уведомление шлюза не создаёт второй холд.
	second, err := env.svc.HandlePaymentSettled(ctx, order.ID, order.Amount)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaidEscrow, second.Status)
	assert.Len(t, env.escrow.holds, 1)
}

func TestOrderService_Approve_FromInProgress_Rejected(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusInProgress)

	_, err := env.svc.Approve(ctx, env.buyer, order.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	// Статус не изменился, движения средств не было.
	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInProgress, current.Status)
	assert.Equal(t, 0, env.escrow.releases)

	last := env.audit.last()
	require.NotNil(t, last)
	assert.Equal(t, models.AuditActionApprove, last.Action)
	assert.Equal(t, models.AuditResultRejected, last.Result)
}

func TestOrderService_RevisionCycle(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)

	order, err := env.svc.RequestRevision(ctx, env.buyer, order.ID, "поправьте шрифт")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRevision, order.Status)
	assert.Equal(t, 1, order.RevisionCount)

	// Комментарий покупателя сохраняется в ленте хода работы.
	entries, err := env.svc.ListProgress(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "поправьте шрифт", entries[0].Note)

	order, err = env.svc.Deliver(ctx, env.seller, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)

	order, err = env.svc.Approve(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, 1, env.escrow.releases)
}

func TestOrderService_RevisionLimit(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{RevisionLimit: 1})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)

	order, err := env.svc.RequestRevision(ctx, env.buyer, order.ID, "")
	require.NoError(t, err)

	order, err = env.svc.Deliver(ctx, env.seller, order.ID)
	require.NoError(t, err)

	_, err = env.svc.RequestRevision(ctx, env.buyer, order.ID, "")
	assert.True(t, apperror.IsInvalidTransition(err))

	last := env.audit.last()
	require.NotNil(t, last)
	assert.Equal(t, models.AuditResultRejected, last.Result)
}

func TestOrderService_CancelByBuyer_Draft(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDraft)

	order, err := env.svc.CancelByBuyer(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancelledBy)
	assert.Equal(t, models.CancelledByBuyer, *order.CancelledBy)
	assert.Equal(t, 0, env.escrow.refunds)
}

func TestOrderService_CancelByBuyer_WaitingPayment_NoHold(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	// Оплата так и не поступила, холда нет: отмена проходит без возврата.
	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	order, err := env.svc.CancelByBuyer(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, 0, env.escrow.refunds)
}

func TestOrderService_CancelByBuyer_AfterPayment_Rejected(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusPaidEscrow)

	_, err := env.svc.CancelByBuyer(ctx, env.buyer, order.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestOrderService_CancelBySeller_Refunds(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusInProgress)

	order, err := env.svc.CancelBySeller(ctx, env.seller, order.ID, "не успеваю в срок")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancelReason)
	assert.Equal(t, "не успеваю в срок", *order.CancelReason)
	require.NotNil(t, order.CancelledBy)
	assert.Equal(t, models.CancelledBySeller, *order.CancelledBy)

	// Средства вернулись покупателю ровно один раз.
	assert.Equal(t, 1, env.escrow.refunds)
	assert.Equal(t, 0, env.escrow.releases)

	hold, err := env.svc.GetEscrow(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, hold.Status)
}

func TestOrderService_CancelBySeller_ReasonRequired(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusPaidEscrow)

	_, err := env.svc.CancelBySeller(ctx, env.seller, order.ID, "")
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_ApproveAfterAutoComplete_Idempotent(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)

	completed, err := env.svc.AutoComplete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)

	// Покупатель нажал "принять" уже после автоподтверждения:
	// операция успешна, повторного движения средств нет.
	again, err := env.svc.Approve(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, again.Status)
	assert.Equal(t, 1, env.escrow.releases)
}

func TestOrderService_ApproveRace_LoserSeesCompleted(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)

	// Между чтением заказа и CAS-обновлением конкурент (автоподтверждение)
	// успевает завершить заказ и освободить холд.
	env.store.beforeUpdate = func(o *models.Order) {
		if o.Status != models.OrderStatusDelivered {
			return
		}
		now := time.Now()
		o.Status = models.OrderStatusCompleted
		o.CompletedAt = &now
		o.Version++
		_, _, _ = env.escrow.ReleaseHold(ctx, o.ID)
	}

	result, err := env.svc.Approve(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, result.Status)
	assert.Equal(t, 1, env.escrow.releases)
}

func TestOrderService_CancelVsComplete_Conflict(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)

	// Заказ завершён, средства выплачены.
	_, err := env.svc.Approve(ctx, env.buyer, order.ID)
	require.NoError(t, err)

	// Попытка вернуть уже выплаченные средства отклоняется конфликтом.
	_, _, err = env.escrow.RefundHold(ctx, order.ID)
	assert.True(t, errors.Is(err, repository.ErrEscrowConsumed))
}

func TestOrderService_AutoExpire(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	expired, err := env.svc.AutoExpire(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, expired.Status)
	require.NotNil(t, expired.CancelledBy)
	assert.Equal(t, models.CancelledBySystem, *expired.CancelledBy)
	require.NotNil(t, expired.CancelReason)

	// Повторный вызов идемпотентен.
	again, err := env.svc.AutoExpire(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, again.Status)
}

func TestOrderService_AutoExpire_PaidOrder_Rejected(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusPaidEscrow)

	_, err := env.svc.AutoExpire(ctx, order.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestOrderService_AccessControl(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDraft)
	stranger := Actor{UserID: uuid.New(), Role: models.RoleBuyer}

	_, err := env.svc.GetOrder(ctx, stranger, order.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = env.svc.ListAudit(ctx, stranger, order.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = env.svc.GetOrder(ctx, env.seller, order.ID)
	assert.NoError(t, err)
}

func TestOrderService_AddProgress(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusInProgress)

	entry, err := env.svc.AddProgress(ctx, env.seller, &models.ProgressEntry{
		OrderID: order.ID,
		Note:    "готов первый вариант",
	})
	require.NoError(t, err)
	assert.Equal(t, env.seller.UserID, entry.AuthorID)

	// Покупатель не может добавлять отметки.
	_, err = env.svc.AddProgress(ctx, env.buyer, &models.ProgressEntry{
		OrderID: order.ID,
		Note:    "комментарий",
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_AddProgress_OnlyDuringWork(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDraft)

	_, err := env.svc.AddProgress(ctx, env.seller, &models.ProgressEntry{
		OrderID: order.ID,
		Note:    "рано",
	})
	assert.True(t, apperror.IsInvalidTransition(err))
}
