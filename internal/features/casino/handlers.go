package casino

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/notify"
	"starsbot/internal/telegram"
)

var betPresets = []int64{10, 50, 100, 500}

// Handler — меню казино и раунды по callback.
type Handler struct {
	service  *Service
	notifier *notify.Notifier
	sender   telegram.Sender
	enabled  bool
}

// NewHandler создаёт обработчик казино.
func NewHandler(service *Service, notifier *notify.Notifier, sender telegram.Sender, enabled bool) *Handler {
	return &Handler{service: service, notifier: notifier, sender: sender, enabled: enabled}
}

// HandleMenu показывает правила и кнопки ставок.
func (h *Handler) HandleMenu(chatID int64) {
	if !h.enabled {
		telegram.SendText(h.sender, chatID, "🎲 Казино временно закрыто.")
		return
	}

	text := "🎲 Казино «Две кости»\n\n" +
		"Бросаются две кости, выплата по сумме:\n" +
		"12 — ×8\n11 — ×4\n10 — ×2\n2 — ×4\n7 — возврат ставки\n3 — возврат ставки\n" +
		"остальные суммы — проигрыш.\n\n" +
		"Выберите ставку:"

	row := make([]tgbotapi.InlineKeyboardButton, 0, len(betPresets))
	for _, bet := range betPresets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.FormatInt(bet, 10),
			fmt.Sprintf("dice_%d", bet),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
		),
	)
	telegram.SendWithKeyboard(h.sender, chatID, text, kb)
}

// HandlePlay обрабатывает callback dice_<bet>.
func (h *Handler) HandlePlay(ctx context.Context, chatID, userID int64, data string) {
	if !h.enabled {
		telegram.SendText(h.sender, chatID, "🎲 Казино временно закрыто.")
		return
	}

	bet, err := strconv.ParseInt(strings.TrimPrefix(data, "dice_"), 10, 64)
	if err != nil || bet <= 0 {
		return
	}

	res, err := h.service.Play(ctx, userID, bet)
	switch {
	case errors.Is(err, common.ErrInsufficientBalance):
		telegram.SendText(h.sender, chatID, "❌ Недостаточно монет для этой ставки.")
		return
	case err != nil:
		log.WithError(err).WithField("user_id", userID).Error("Ошибка раунда казино")
		telegram.SendText(h.sender, chatID, "❌ Не удалось сыграть раунд. Попробуйте позже.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎲 Выпало: %d и %d (сумма %d)\n\n", res.Die1, res.Die2, res.Sum)
	switch {
	case res.Payout > res.Bet:
		fmt.Fprintf(&b, "🎉 Выигрыш: %s!\n", common.FormatCoins(res.Payout))
	case res.Payout == res.Bet:
		b.WriteString("😮‍💨 Возврат ставки.\n")
	default:
		b.WriteString("😔 Проигрыш.\n")
	}
	fmt.Fprintf(&b, "💰 Баланс: %s", common.FormatCoins(res.Balance))

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Ещё раз", fmt.Sprintf("dice_%d", bet)),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
		),
	)
	telegram.SendWithKeyboard(h.sender, chatID, b.String(), kb)

	if res.Payout > res.Bet && h.service.IsBigWin(res.Payout) {
		h.notifier.BigWin(userID, res.Bet, res.Payout)
	}
}
