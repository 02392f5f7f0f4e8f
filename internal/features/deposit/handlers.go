// Package deposit — пополнение баланса через Telegram Stars.
// Поток: меню сумм → (опционально) ввод своей суммы → инвойс XTR.
// Дальше заказ живёт в платёжном мосте (features/payments).
package deposit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/config"
	"starsbot/internal/features/payments"
	"starsbot/internal/session"
	"starsbot/internal/telegram"
)

// Пресеты сумм пополнения (в звёздах).
var presetAmounts = []int64{50, 100, 500}

// Handler обрабатывает поток пополнения.
type Handler struct {
	payments *payments.Service
	sessions *session.Tracker
	sender   telegram.Sender
	cfg      *config.Config
}

// NewHandler создаёт обработчик пополнений.
func NewHandler(p *payments.Service, sessions *session.Tracker, sender telegram.Sender, cfg *config.Config) *Handler {
	return &Handler{
		payments: p,
		sessions: sessions,
		sender:   sender,
		cfg:      cfg,
	}
}

// HandleMenu показывает меню выбора суммы пополнения.
func (h *Handler) HandleMenu(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(presetAmounts)+2)
	for _, a := range presetAmounts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("⭐ %d", a),
				fmt.Sprintf("dep_%d", a),
			),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Своя сумма", "dep_custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
		),
	)

	text := fmt.Sprintf(
		"💳 Пополнение баланса\n\n"+
			"Оплата через Telegram Stars, курс 1:1.\n"+
			"Минимум: %d, максимум: %d.",
		h.cfg.DepositMin, h.cfg.DepositMax,
	)
	telegram.SendWithKeyboard(h.sender, chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// HandlePreset обрабатывает выбор пресета (payload dep_<amount>).
func (h *Handler) HandlePreset(ctx context.Context, chatID, userID int64, payload string) {
	raw := strings.TrimPrefix(payload, "dep_")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.WithField("payload", payload).Warn("Некорректный payload пресета")
		return
	}
	h.createAndInvoice(ctx, chatID, userID, amount)
}

// HandleCustomStart запрашивает свою сумму и переводит диалог
// в шаг ожидания ввода.
func (h *Handler) HandleCustomStart(chatID, userID int64) {
	h.sessions.Begin(userID, session.StepDepositAmount, session.Scratch{})
	telegram.SendText(h.sender, chatID, fmt.Sprintf(
		"✏️ Введите сумму пополнения в звёздах (от %d до %d).\n"+
			"Для отмены отправьте «отмена».",
		h.cfg.DepositMin, h.cfg.DepositMax,
	))
}

// HandleAmountInput обрабатывает введённую сумму.
// Нечисловой или выходящий за границы ввод переспрашивает,
// НЕ сбрасывая состояние — пользователь пробует ещё раз.
func (h *Handler) HandleAmountInput(ctx context.Context, chatID, userID int64, text string) {
	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || amount <= 0 {
		telegram.SendText(h.sender, chatID, "❌ Сумма должна быть положительным числом. Попробуйте ещё раз.")
		return
	}

	if amount < h.cfg.DepositMin {
		telegram.SendText(h.sender, chatID, fmt.Sprintf(
			"❌ Минимальная сумма — %d %s. Введите сумму побольше.",
			h.cfg.DepositMin, common.PluralizeStars(h.cfg.DepositMin),
		))
		return
	}
	if amount > h.cfg.DepositMax {
		telegram.SendText(h.sender, chatID, fmt.Sprintf(
			"❌ Максимальная сумма — %d %s. Введите сумму поменьше.",
			h.cfg.DepositMax, common.PluralizeStars(h.cfg.DepositMax),
		))
		return
	}

	h.sessions.Clear(userID)
	h.createAndInvoice(ctx, chatID, userID, amount)
}

// createAndInvoice создаёт заказ и отправляет инвойс Telegram Stars.
// Заказ становится awaiting_payment только после успешной отправки инвойса.
func (h *Handler) createAndInvoice(ctx context.Context, chatID, userID int64, amount int64) {
	o, err := h.payments.CreateDeposit(ctx, userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDepositTooSmall):
			telegram.SendText(h.sender, chatID, fmt.Sprintf("❌ Минимальная сумма — %d", h.cfg.DepositMin))
		case errors.Is(err, common.ErrDepositTooLarge):
			telegram.SendText(h.sender, chatID, fmt.Sprintf("❌ Максимальная сумма — %d", h.cfg.DepositMax))
		default:
			log.WithError(err).Error("Ошибка создания заказа")
			telegram.SendText(h.sender, chatID, "❌ Не удалось создать заказ. Попробуйте позже.")
		}
		return
	}

	invoice := tgbotapi.InvoiceConfig{
		BaseChat:    tgbotapi.BaseChat{ChatID: chatID},
		Title:       "Пополнение баланса",
		Description: fmt.Sprintf("Зачисление %s на внутренний баланс", common.FormatCoins(amount)),
		Payload:     o.ID,
		// Для Telegram Stars токен провайдера пустой, валюта XTR
		ProviderToken: "",
		Currency:      "XTR",
		Prices: []tgbotapi.LabeledPrice{
			{Label: fmt.Sprintf("Пополнение на %d", amount), Amount: int(amount)},
		},
	}

	if _, err := h.sender.Send(invoice); err != nil {
		log.WithError(err).WithField("order_id", o.ID).Error("Ошибка отправки инвойса")
		telegram.SendText(h.sender, chatID, "❌ Не удалось создать счёт. Попробуйте позже.")
		return
	}

	if err := h.payments.Activate(ctx, o.ID); err != nil {
		log.WithError(err).WithField("order_id", o.ID).Error("Ошибка активации заказа")
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"order_id": o.ID,
		"amount":   amount,
	}).Info("Инвойс отправлен")
}
