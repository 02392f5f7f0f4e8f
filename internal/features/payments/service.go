// Package payments — платёжный мост Telegram Stars.
// service.go владеет жизненным циклом заказа: создание, проверка
// pre-checkout, идемпотентное подтверждение оплаты.
package payments

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/config"
	"starsbot/internal/store"
)

// Service управляет заказами на оплату.
type Service struct {
	store store.Store
	cfg   *config.Config
}

// NewService создаёт платёжный сервис.
func NewService(st store.Store, cfg *config.Config) *Service {
	return &Service{store: st, cfg: cfg}
}

// NewOrderID формирует синтетический идентификатор заказа.
// Он же — invoice payload: dep_<user_id>_<unix_nano>.
func NewOrderID(userID int64) string {
	return fmt.Sprintf("dep_%d_%d", userID, time.Now().UnixNano())
}

// CreateDeposit проверяет границы суммы и создаёт заказ на пополнение.
// Возвращает ErrDepositTooSmall/ErrDepositTooLarge при нарушении границ —
// обработчик превращает их в повторный запрос с указанием нарушенной границы.
func (s *Service) CreateDeposit(ctx context.Context, userID int64, amount int64) (*store.Order, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if amount < s.cfg.DepositMin {
		return nil, common.ErrDepositTooSmall
	}
	if amount > s.cfg.DepositMax {
		return nil, common.ErrDepositTooLarge
	}

	o := &store.Order{
		ID:          NewOrderID(userID),
		UserID:      userID,
		Amount:      amount,
		Description: fmt.Sprintf("Пополнение баланса на %d", amount),
		Status:      store.OrderCreated,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Activate переводит заказ в awaiting_payment после отправки инвойса.
func (s *Service) Activate(ctx context.Context, orderID string) error {
	return s.store.MarkOrderAwaiting(ctx, orderID)
}

// ValidatePreCheckout проверяет pre-checkout запрос провайдера.
// Отклоняет, если заказ не существует, уже оплачен, отменён
// или сумма платежа не совпадает с заказом.
func (s *Service) ValidatePreCheckout(ctx context.Context, payload string, amount int64) error {
	o, err := s.store.GetOrder(ctx, payload)
	if err != nil {
		return err
	}
	switch o.Status {
	case store.OrderPaid:
		return common.ErrOrderAlreadyPaid
	case store.OrderCancelled:
		return common.ErrOrderCancelled
	}
	if o.Amount != amount {
		return common.ErrAmountMismatch
	}
	return nil
}

// Confirm обрабатывает подтверждённый платёж: помечает заказ оплаченным
// и начисляет монеты — одно атомарное действие в сторе.
// Повторное подтверждение того же payload — no-op (credited=false),
// двойного начисления не происходит.
func (s *Service) Confirm(ctx context.Context, payload string) (*store.Order, bool, error) {
	o, credited, err := s.store.MarkOrderPaid(ctx, payload)
	if err != nil {
		return nil, false, err
	}
	if !credited {
		log.WithField("order_id", payload).Warn("Повторное подтверждение оплаченного заказа — пропускаем")
	}
	return o, credited, nil
}
