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

var (
	ErrEscrowNotFound = errors.New("escrow not found")
	// ErrEscrowConsumed возвращается при попытке потребить холд,
	// который уже был потреблён с противоположным исходом.
	ErrEscrowConsumed = errors.New("escrow already consumed")
)

// EscrowRepository отвечает за холды, кошельки и журнал транзакций.
// Холд потребляется ровно один раз: SELECT ... FOR UPDATE на строке холда
// сериализует конкурентные release/refund, победитель двигает средства,
// проигравший получает итоговое состояние без повторного движения.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// CreateHold создаёт холд по заказу и зачисляет средства в замороженную
// часть кошелька покупателя. Повторный вызов для того же заказа возвращает
// существующий холд без повторного движения средств.
func (r *EscrowRepository) CreateHold(ctx context.Context, orderID, buyerID, sellerID uuid.UUID, amount float64) (*models.EscrowHold, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	// Уже существующий холд означает, что settlement обработан ранее.
	var existing models.EscrowHold
	err = tx.GetContext(ctx, &existing, `SELECT * FROM escrow_holds WHERE order_id = $1 FOR UPDATE`, orderID)
	if err == nil {
		return &existing, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("escrow repository: check existing hold %w", err)
	}

	var hold models.EscrowHold
	err = tx.GetContext(ctx, &hold, `
		INSERT INTO escrow_holds (order_id, buyer_id, seller_id, amount, status)
		VALUES ($1, $2, $3, $4, 'held')
		RETURNING id, order_id, buyer_id, seller_id, amount, status, created_at, released_at
	`, orderID, buyerID, sellerID, amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: insert hold %w", err)
	}

	// Средства пришли от платёжного шлюза и замораживаются на кошельке покупателя.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_balances (user_id, available, frozen)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET frozen = wallet_balances.frozen + $2, updated_at = NOW()
	`, buyerID, amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: freeze funds %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, order_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_hold', $3, 'completed', 'Заморозка оплаты заказа', NOW())
	`, buyerID, orderID, amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: hold transaction %w", err)
	}

	return &hold, true, tx.Commit()
}

// ReleaseHold освобождает средства в пользу продавца. Возвращает холд и
// признак того, двигались ли средства в этом вызове: для уже освобождённого
// холда возвращается (hold, false, nil), для возвращённого ErrEscrowConsumed.
func (r *EscrowRepository) ReleaseHold(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var hold models.EscrowHold
	err = tx.GetContext(ctx, &hold, `SELECT * FROM escrow_holds WHERE order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrEscrowNotFound
		}
		return nil, false, fmt.Errorf("escrow repository: lock hold %w", err)
	}

	switch hold.Status {
	case models.EscrowStatusReleased:
		return &hold, false, tx.Commit()
	case models.EscrowStatusRefunded:
		return &hold, false, ErrEscrowConsumed
	}

	// Снимаем заморозку у покупателя
	_, err = tx.ExecContext(ctx, `
		UPDATE wallet_balances SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, hold.BuyerID, hold.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: unfreeze %w", err)
	}

	// Начисляем продавцу
	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = wallet_balances.available + $2, updated_at = NOW()
	`, hold.SellerID, hold.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: credit seller %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE escrow_holds SET status = 'released', released_at = $2 WHERE id = $1`, hold.ID, now)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: mark released %w", err)
	}
	hold.Status = models.EscrowStatusReleased
	hold.ReleasedAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, order_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_release', $3, 'completed', 'Выплата за выполненный заказ', NOW())
	`, hold.SellerID, orderID, hold.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: release transaction %w", err)
	}

	return &hold, true, tx.Commit()
}

// RefundHold возвращает средства покупателю. Семантика повторных вызовов
// симметрична ReleaseHold: уже возвращённый холд даёт (hold, false, nil),
// освобождённый даёт ErrEscrowConsumed.
func (r *EscrowRepository) RefundHold(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var hold models.EscrowHold
	err = tx.GetContext(ctx, &hold, `SELECT * FROM escrow_holds WHERE order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrEscrowNotFound
		}
		return nil, false, fmt.Errorf("escrow repository: lock hold %w", err)
	}

	switch hold.Status {
	case models.EscrowStatusRefunded:
		return &hold, false, tx.Commit()
	case models.EscrowStatusReleased:
		return &hold, false, ErrEscrowConsumed
	}

	// Возвращаем средства покупателю в доступную часть кошелька
	_, err = tx.ExecContext(ctx, `
		UPDATE wallet_balances SET available = available + $2, frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, hold.BuyerID, hold.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: refund buyer %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE escrow_holds SET status = 'refunded', released_at = $2 WHERE id = $1`, hold.ID, now)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: mark refunded %w", err)
	}
	hold.Status = models.EscrowStatusRefunded
	hold.ReleasedAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, order_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, 'escrow_refund', $3, 'completed', 'Возврат средств за отменённый заказ', NOW())
	`, hold.BuyerID, orderID, hold.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("escrow repository: refund transaction %w", err)
	}

	return &hold, true, tx.Commit()
}

// GetHoldByOrderID возвращает холд по заказу.
func (r *EscrowRepository) GetHoldByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error) {
	var hold models.EscrowHold
	err := r.db.GetContext(ctx, &hold, `SELECT * FROM escrow_holds WHERE order_id = $1`, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get hold %w", err)
	}
	return &hold, nil
}

// GetBalance возвращает баланс кошелька пользователя, создаёт если не существует.
func (r *EscrowRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	query := `
		INSERT INTO wallet_balances (user_id, available, frozen)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, available, frozen, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("escrow repository: get balance %w", err)
	}
	return &balance, nil
}

// ListTransactions возвращает историю транзакций пользователя.
func (r *EscrowRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, order_id, type, amount, status, description, created_at, completed_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transactions, err
}
