package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/gateway"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

// SignatureVerifier проверяет подпись уведомления платёжного шлюза.
type SignatureVerifier interface {
	VerifySignature(p *gateway.CallbackPayload) bool
}

// WalletReader описывает чтение кошелька и истории транзакций.
type WalletReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// PaymentService обрабатывает уведомления шлюза и отдаёт данные кошелька.
type PaymentService struct {
	orders   *OrderService
	verifier SignatureVerifier
	wallet   WalletReader
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(orders *OrderService, verifier SignatureVerifier, wallet WalletReader) *PaymentService {
	return &PaymentService{
		orders:   orders,
		verifier: verifier,
		wallet:   wallet,
	}
}

// HandleCallback обрабатывает уведомление шлюза о смене статуса платежа.
// Уведомления с невалидной подписью отклоняются до каких-либо действий.
func (s *PaymentService) HandleCallback(ctx context.Context, payload *gateway.CallbackPayload) error {
	if !s.verifier.VerifySignature(payload) {
		return apperror.New(apperror.ErrCodeForbidden, "невалидная подпись уведомления")
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return apperror.New(apperror.ErrCodeValidation, "некорректный идентификатор заказа")
	}

	switch {
	case payload.IsSettled():
		amount, err := payload.Amount()
		if err != nil {
			return apperror.New(apperror.ErrCodeValidation, "некорректная сумма платежа")
		}
		_, err = s.orders.HandlePaymentSettled(ctx, orderID, amount)
		return err
	case payload.IsExpired():
		_, err := s.orders.AutoExpire(ctx, orderID)
		return err
	default:
		// Промежуточные статусы (pending, authorize) не меняют заказ.
		logger.Log.WithFields(map[string]interface{}{
			"order_id": payload.OrderID,
			"status":   payload.TransactionStatus,
		}).Debug("payment service: уведомление без изменения статуса заказа")
		return nil
	}
}

// GetBalance возвращает баланс кошелька пользователя.
func (s *PaymentService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error) {
	return s.wallet.GetBalance(ctx, userID)
}

// ListTransactions возвращает историю транзакций пользователя.
func (s *PaymentService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.wallet.ListTransactions(ctx, userID, limit, offset)
}
