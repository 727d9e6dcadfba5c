package service

import (
	"context"
	"sync"
	"time"

	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

// reconcileBatchSize ограничивает число заказов, обрабатываемых за один проход.
const reconcileBatchSize = 100

// Reconciler периодически доводит просроченные заказы до конечных
// статусов: автоподтверждает давно сданные и отменяет неоплаченные.
// Проходы не накладываются друг на друга: если предыдущий ещё идёт,
// очередной тик пропускается.
type Reconciler struct {
	orders   *OrderService
	interval time.Duration
	mu       sync.Mutex
}

// NewReconciler создаёт реконсайлер поверх сервиса заказов.
func NewReconciler(orders *OrderService, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{
		orders:   orders,
		interval: interval,
	}
}

// Run запускает периодические проходы до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", r.interval.String()).Info("reconciler: запущен")

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("reconciler: остановлен")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход. Возвращает управление сразу, если
// предыдущий проход ещё не завершился.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if !r.mu.TryLock() {
		logger.Log.Warn("reconciler: предыдущий проход ещё выполняется, тик пропущен")
		return
	}
	defer r.mu.Unlock()

	start := time.Now()
	completed := r.sweepAutoComplete(ctx)
	expired := r.sweepAutoExpire(ctx)

	logger.Log.WithFields(map[string]interface{}{
		"auto_completed": completed,
		"auto_expired":   expired,
		"duration":       time.Since(start).String(),
	}).Info("reconciler: проход завершён")
}

// sweepAutoComplete подтверждает заказы, сданные дольше настроенного срока.
// Ошибка по одному заказу не прерывает обработку остальных.
func (r *Reconciler) sweepAutoComplete(ctx context.Context) int {
	before := time.Now().Add(-r.orders.cfg.AutoCompleteAfter)
	due, err := r.orders.orders.ListDueAutoComplete(ctx, before, reconcileBatchSize)
	if err != nil {
		logger.Log.WithError(err).Error("reconciler: не удалось получить заказы для автоподтверждения")
		return 0
	}

	processed := 0
	for i := range due {
		if ctx.Err() != nil {
			return processed
		}
		if _, err := r.orders.AutoComplete(ctx, due[i].ID); err != nil {
			// Конкурентный approve мог опередить реконсайлер, это не сбой.
			if apperror.IsConflict(err) || apperror.IsInvalidTransition(err) {
				continue
			}
			logger.Log.WithFields(map[string]interface{}{
				"order_id": due[i].ID,
				"error":    err.Error(),
			}).Error("reconciler: не удалось автоподтвердить заказ")
			continue
		}
		processed++
	}
	return processed
}

// sweepAutoExpire отменяет заказы, не оплаченные в срок. Срок хранится
// в самом заказе (payment_expires_at), порогом служит текущий момент.
func (r *Reconciler) sweepAutoExpire(ctx context.Context) int {
	due, err := r.orders.orders.ListDueExpire(ctx, time.Now(), reconcileBatchSize)
	if err != nil {
		logger.Log.WithError(err).Error("reconciler: не удалось получить просроченные заказы")
		return 0
	}

	processed := 0
	for i := range due {
		if ctx.Err() != nil {
			return processed
		}
		if _, err := r.orders.AutoExpire(ctx, due[i].ID); err != nil {
			if apperror.IsConflict(err) || apperror.IsInvalidTransition(err) {
				continue
			}
			logger.Log.WithFields(map[string]interface{}{
				"order_id": due[i].ID,
				"error":    err.Error(),
			}).Error("reconciler: не удалось отменить просроченный заказ")
			continue
		}
		processed++
	}
	return processed
}
