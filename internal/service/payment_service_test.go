package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/gateway"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

// fakeVerifier принимает подписи с фиксированным значением.
type fakeVerifier struct{}

func (fakeVerifier) VerifySignature(p *gateway.CallbackPayload) bool {
	return p.SignatureKey == "valid"
}

type fakeWallet struct{}

func (fakeWallet) GetBalance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error) {
	return &models.WalletBalance{UserID: userID, Available: 500}, nil
}

func (fakeWallet) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return []models.Transaction{}, nil
}

func newPaymentEnv(t *testing.T) (*testEnv, *PaymentService) {
	t.Helper()
	env := newTestEnv(t, OrderServiceConfig{})
	return env, NewPaymentService(env.svc, fakeVerifier{}, fakeWallet{})
}

func settledPayload(order *models.Order) *gateway.CallbackPayload {
	return &gateway.CallbackPayload{
		OrderID:           order.ID.String(),
		StatusCode:        "200",
		GrossAmount:       fmt.Sprintf("%.2f", order.Amount),
		SignatureKey:      "valid",
		TransactionStatus: "settlement",
	}
}

func TestPaymentService_Callback_Settlement(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	err := payments.HandleCallback(ctx, settledPayload(order))
	require.NoError(t, err)

	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaidEscrow, current.Status)
}

func TestPaymentService_Callback_InvalidSignature(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	payload := settledPayload(order)
	payload.SignatureKey = "forged"

	err := payments.HandleCallback(ctx, payload)
	assert.True(t, apperror.IsForbidden(err))

	// Заказ не изменился, холд не создан.
	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusWaitingPayment, current.Status)
	assert.Len(t, env.escrow.holds, 0)
}

func TestPaymentService_Callback_AmountMismatch(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	payload := settledPayload(order)
	payload.GrossAmount = "1.00"

	err := payments.HandleCallback(ctx, payload)
	assert.True(t, apperror.IsValidation(err))
}

func TestPaymentService_Callback_Expire(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	payload := settledPayload(order)
	payload.TransactionStatus = "expire"

	err := payments.HandleCallback(ctx, payload)
	require.NoError(t, err)

	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, current.Status)
}

func TestPaymentService_Callback_Pending_NoOp(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()

	order := env.newOrderIn(t, models.OrderStatusWaitingPayment)

	payload := settledPayload(order)
	payload.TransactionStatus = "pending"

	err := payments.HandleCallback(ctx, payload)
	require.NoError(t, err)

	current, err := env.svc.GetOrder(ctx, env.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusWaitingPayment, current.Status)
}

func TestPaymentService_Callback_BadOrderID(t *testing.T) {
	_, payments := newPaymentEnv(t)

	payload := &gateway.CallbackPayload{
		OrderID:           "not-a-uuid",
		SignatureKey:      "valid",
		TransactionStatus: "settlement",
		GrossAmount:       "100.00",
	}

	err := payments.HandleCallback(context.Background(), payload)
	assert.True(t, apperror.IsValidation(err))
}
