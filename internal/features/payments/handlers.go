// handlers.go обрабатывает платёжные события Telegram:
// pre-checkout запрос и сообщение об успешной оплате.
package payments

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/notify"
	"starsbot/internal/store"
	"starsbot/internal/telegram"
)

// Handler обрабатывает платёжные события.
type Handler struct {
	service  *Service
	store    store.Store
	notifier *notify.Notifier
	sender   telegram.Sender
}

// NewHandler создаёт обработчик платежей.
func NewHandler(service *Service, st store.Store, notifier *notify.Notifier, sender telegram.Sender) *Handler {
	return &Handler{
		service:  service,
		store:    st,
		notifier: notifier,
		sender:   sender,
	}
}

// HandlePreCheckout отвечает провайдеру на pre-checkout запрос.
// Несуществующий, оплаченный или отменённый заказ отклоняется.
func (h *Handler) HandlePreCheckout(ctx context.Context, pcq *tgbotapi.PreCheckoutQuery) {
	err := h.service.ValidatePreCheckout(ctx, pcq.InvoicePayload, int64(pcq.TotalAmount))

	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: pcq.ID,
		OK:                 err == nil,
	}
	if err != nil {
		answer.ErrorMessage = preCheckoutError(err)
		log.WithError(err).WithFields(log.Fields{
			"user_id": pcq.From.ID,
			"payload": pcq.InvoicePayload,
		}).Warn("Pre-checkout отклонён")
	}

	if _, err := h.sender.Request(answer); err != nil {
		log.WithError(err).Error("Ошибка ответа на pre-checkout")
	}
}

// HandleSuccessfulPayment обрабатывает подтверждённый платёж.
// Начисление выполняется ровно один раз на заказ; повторная доставка
// того же события не меняет баланс и не дублирует уведомление оператору.
func (h *Handler) HandleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	payload := msg.SuccessfulPayment.InvoicePayload
	chatID := msg.Chat.ID

	o, credited, err := h.service.Confirm(ctx, payload)
	if err != nil {
		log.WithError(err).WithField("payload", payload).Error("Ошибка подтверждения оплаты")
		telegram.SendText(h.sender, chatID,
			"❌ Не удалось зачислить платёж. Напишите оператору, монеты не потеряны.")
		return
	}
	if !credited {
		// Заказ уже был оплачен — баланс не трогаем, оператора не дёргаем
		return
	}

	u, err := h.store.Get(ctx, o.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", o.UserID).Error("Оплата зачислена, но запись не найдена")
		return
	}

	telegram.SendText(h.sender, chatID, fmt.Sprintf(
		"✅ Оплата получена!\n\n"+
			"Зачислено: %s\n"+
			"💰 Баланс: %s",
		common.FormatCoins(o.Amount),
		common.FormatCoins(u.Balance),
	))

	h.notifier.PaymentReceived(o, u)

	log.WithFields(log.Fields{
		"user_id":  o.UserID,
		"order_id": o.ID,
		"amount":   o.Amount,
	}).Info("Платёж зачислен")
}

// preCheckoutError переводит ошибку проверки в текст для плательщика.
func preCheckoutError(err error) string {
	switch {
	case errors.Is(err, common.ErrOrderNotFound):
		return "Заказ не найден. Создайте пополнение заново."
	case errors.Is(err, common.ErrOrderAlreadyPaid):
		return "Этот заказ уже оплачен."
	case errors.Is(err, common.ErrOrderCancelled):
		return "Заказ отменён. Создайте пополнение заново."
	case errors.Is(err, common.ErrAmountMismatch):
		return "Сумма платежа не совпадает с заказом."
	default:
		return "Не удалось проверить заказ. Попробуйте ещё раз."
	}
}
