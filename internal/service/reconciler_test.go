package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// backdate сдвигает таймстемпы заказа в прошлое, имитируя давно
// сданный или давно не оплаченный заказ.
func backdate(store *fakeOrderStore, orderID uuid.UUID, age time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()
	o := store.orders[orderID]
	past := time.Now().Add(-age)
	if o.DeliveredAt != nil {
		o.DeliveredAt = &past
	}
	if o.PaymentExpiresAt != nil {
		o.PaymentExpiresAt = &past
	}
}

func TestReconciler_RunOnce_AutoCompletesDelivered(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{AutoCompleteAfter: 72 * time.Hour})
	ctx := context.Background()

	stale := env.newOrderIn(t, models.OrderStatusDelivered)
	fresh := env.newOrderIn(t, models.OrderStatusDelivered)
	backdate(env.store, stale.ID, 80*time.Hour)

	r := NewReconciler(env.svc, time.Hour)
	r.RunOnce(ctx)

	current, err := env.svc.GetOrder(ctx, env.buyer, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, current.Status)

	// Недавно сданный заказ не трогаем.
	current, err = env.svc.GetOrder(ctx, env.buyer, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, current.Status)

	assert.Equal(t, 1, env.escrow.releases)
}

func TestReconciler_RunOnce_ExpiresUnpaid(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{PaymentTTL: 24 * time.Hour})
	ctx := context.Background()

	stale := env.newOrderIn(t, models.OrderStatusWaitingPayment)
	fresh := env.newOrderIn(t, models.OrderStatusWaitingPayment)
	backdate(env.store, stale.ID, time.Hour)

	r := NewReconciler(env.svc, time.Hour)
	r.RunOnce(ctx)

	current, err := env.svc.GetOrder(ctx, env.buyer, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, current.Status)
	require.NotNil(t, current.CancelledBy)
	assert.Equal(t, models.CancelledBySystem, *current.CancelledBy)

	current, err = env.svc.GetOrder(ctx, env.buyer, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusWaitingPayment, current.Status)
}

func TestReconciler_RunOnce_FailureDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{PaymentTTL: 24 * time.Hour})
	ctx := context.Background()

	broken := env.newOrderIn(t, models.OrderStatusWaitingPayment)
	healthy := env.newOrderIn(t, models.OrderStatusWaitingPayment)
	backdate(env.store, broken.ID, time.Hour)
	backdate(env.store, healthy.ID, time.Hour)

	// Сбой возврата по одному заказу не прерывает проход.
	env.escrow.refundErrFor[broken.ID] = errors.New("ledger unavailable")

	r := NewReconciler(env.svc, time.Hour)
	r.RunOnce(ctx)

	current, err := env.svc.GetOrder(ctx, env.buyer, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusWaitingPayment, current.Status)

	current, err = env.svc.GetOrder(ctx, env.buyer, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, current.Status)
}

func TestReconciler_RunOnce_SkipsAlreadyCompleted(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{AutoCompleteAfter: 72 * time.Hour})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)
	backdate(env.store, order.ID, 80*time.Hour)

	// Покупатель успел принять работу до прохода реконсайлера.
	_, err := env.svc.Approve(ctx, env.buyer, order.ID)
	require.NoError(t, err)

	r := NewReconciler(env.svc, time.Hour)
	r.RunOnce(ctx)

	assert.Equal(t, 1, env.escrow.releases)
}

func TestReconciler_RunOnce_NonReentrant(t *testing.T) {
	env := newTestEnv(t, OrderServiceConfig{AutoCompleteAfter: 72 * time.Hour})
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusDelivered)
	backdate(env.store, order.ID, 80*time.Hour)

	r := NewReconciler(env.svc, time.Hour)

	// Пока "идёт" предыдущий проход, очередной тик ничего не делает.
	r.mu.Lock()
	r.RunOnce(ctx)
	r.mu.Unlock()

	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, current.Status)
}
