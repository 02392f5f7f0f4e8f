// Package jobs — фоновые задачи по расписанию.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/session"
	"starsbot/internal/store"
)

// Scheduler крутит cron-задачи: чистку неоплаченных заказов,
// уборку истёкших диалогов и суточную сверку счётчиков.
type Scheduler struct {
	cron     *cron.Cron
	store    store.Store
	sessions *session.Tracker
	orderTTL time.Duration
}

// NewScheduler создаёт планировщик в заданной таймзоне.
func NewScheduler(st store.Store, sessions *session.Tracker, orderTTL time.Duration, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		store:    st,
		sessions: sessions,
		orderTTL: orderTTL,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	// каждый час: заказы, не оплаченные за orderTTL, отменяются
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		s.pruneOrders(ctx)
	}); err != nil {
		return err
	}

	// каждые 10 минут: уборка истёкших диалогов
	if _, err := s.cron.AddFunc("*/10 * * * *", func() {
		if removed := s.sessions.Sweep(); removed > 0 {
			log.WithField("removed", removed).Debug("Убраны истёкшие диалоги")
		}
	}); err != nil {
		return err
	}

	// ежедневно в 06:00: сверка счётчика пополнений с оплаченными заказами
	if _, err := s.cron.AddFunc("0 6 * * *", func() {
		s.reconcile(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info("Планировщик запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения идущих задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("Планировщик остановлен")
}

func (s *Scheduler) pruneOrders(ctx context.Context) {
	cutoff := time.Now().Add(-s.orderTTL)
	n, err := s.store.PruneOrders(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Ошибка чистки заказов")
		return
	}
	if n > 0 {
		log.WithField("cancelled", n).Info("Отменены просроченные заказы")
	}
}

// reconcile сверяет инкрементальный счётчик total_deposited каждой записи
// с суммой её оплаченных заказов. Расхождение только логируется:
// счётчики не правятся автоматически, разбор ручной.
func (s *Scheduler) reconcile(ctx context.Context) {
	paid, err := s.store.PaidTotals(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка сверки: не удалось собрать оплаты")
		return
	}

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка сверки: не удалось получить пользователей")
		return
	}

	mismatches := 0
	for _, id := range ids {
		u, err := s.store.Get(ctx, id)
		if err != nil {
			continue
		}
		if want := paid[id]; u.TotalDeposited != want {
			mismatches++
			log.WithFields(log.Fields{
				"user_id":         id,
				"total_deposited": u.TotalDeposited,
				"paid_orders_sum": want,
			}).Warn("Сверка: счётчик пополнений расходится с заказами")
		}
	}

	log.WithFields(log.Fields{
		"users":      len(ids),
		"mismatches": mismatches,
	}).Info("Сверка завершена")
}
