package shop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/session"
	"starsbot/internal/telegram"
)

// Handler — витрина, покупка и инвентарь.
type Handler struct {
	service  *Service
	sessions *session.Tracker
	sender   telegram.Sender
}

// NewHandler создаёт обработчик магазина.
func NewHandler(service *Service, sessions *session.Tracker, sender telegram.Sender) *Handler {
	return &Handler{service: service, sessions: sessions, sender: sender}
}

// HandleCatalog показывает витрину.
func (h *Handler) HandleCatalog(chatID int64) {
	var b strings.Builder
	b.WriteString("🛒 Магазин:\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(Catalog)+1)
	for _, it := range Catalog {
		fmt.Fprintf(&b, "%s — %s\n%s\n\n", it.Title, common.FormatCoins(it.Price), it.Desc)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s · %d", it.Title, it.Price),
				"buy_"+it.Label,
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
	))
	telegram.SendWithKeyboard(h.sender, chatID, b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// HandleBuy обрабатывает callback buy_<label>.
func (h *Handler) HandleBuy(ctx context.Context, chatID, userID int64, data string) {
	label := strings.TrimPrefix(data, "buy_")
	it, balance, err := h.service.Buy(ctx, userID, label)
	switch {
	case errors.Is(err, common.ErrInsufficientBalance):
		telegram.SendText(h.sender, chatID, "❌ Недостаточно монет. Пополните баланс.")
		return
	case errors.Is(err, common.ErrItemNotFound):
		telegram.SendText(h.sender, chatID, "❌ Такого товара нет.")
		return
	case err != nil:
		log.WithError(err).WithField("user_id", userID).Error("Ошибка покупки")
		telegram.SendText(h.sender, chatID, "❌ Не удалось оформить покупку. Попробуйте позже.")
		return
	}

	text := fmt.Sprintf(
		"✅ Куплено: %s\n💰 Баланс: %s\n\nТовар в инвентаре, выдача — через кнопку «Вывести».",
		it.Title, common.FormatCoins(balance),
	)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎒 Инвентарь", "inventory"),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
		),
	)
	telegram.SendWithKeyboard(h.sender, chatID, text, kb)
}

// HandleInventory показывает невыведенные товары с кнопками вывода.
func (h *Handler) HandleInventory(ctx context.Context, chatID, userID int64) {
	counts, err := h.service.Unwithdrawn(ctx, userID)
	if err != nil {
		telegram.SendText(h.sender, chatID, "❌ Не удалось открыть инвентарь. Отправьте /start")
		return
	}

	if len(counts) == 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🛒 В магазин", "shop"),
				tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
			),
		)
		telegram.SendWithKeyboard(h.sender, chatID, "🎒 Инвентарь пуст.", kb)
		return
	}

	var b strings.Builder
	b.WriteString("🎒 Инвентарь:\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	// обходим витрину, чтобы порядок был стабильным
	for _, it := range Catalog {
		n, ok := counts[it.Label]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s — %d %s\n", it.Title, n, common.PluralizeItems(n))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("📤 Вывести %s", it.Title),
				"withdraw_"+it.Label,
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
	))
	telegram.SendWithKeyboard(h.sender, chatID, b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// HandleWithdrawStart обрабатывает callback withdraw_<label>: спрашивает количество.
func (h *Handler) HandleWithdrawStart(chatID, userID int64, data string) {
	label := strings.TrimPrefix(data, "withdraw_")
	if _, ok := FindItem(label); !ok {
		telegram.SendText(h.sender, chatID, "❌ Такого товара нет.")
		return
	}
	h.sessions.Begin(userID, session.StepWithdrawQuantity, session.Scratch{ItemLabel: label})
	telegram.SendText(h.sender, chatID, "📤 Сколько единиц вывести? Отправьте число.\n\nДля отмены напишите «отмена».")
}

// HandleQuantityInput обрабатывает сообщение на шаге ввода количества.
func (h *Handler) HandleQuantityInput(ctx context.Context, chatID, userID int64, text string) {
	count, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || count <= 0 {
		// состояние не сбрасываем, даём ещё попытку
		telegram.SendText(h.sender, chatID, "❌ Отправьте целое число больше нуля.")
		return
	}

	scratch := h.sessions.Scratch(userID)
	label := scratch.ItemLabel

	items, err := h.service.Withdraw(ctx, userID, label, count)
	switch {
	case errors.Is(err, common.ErrNotEnoughItems):
		// состояние не сбрасываем, даём ещё попытку
		available := 0
		if counts, cerr := h.service.Unwithdrawn(ctx, userID); cerr == nil {
			available = counts[label]
		}
		telegram.SendText(h.sender, chatID, fmt.Sprintf(
			"❌ В инвентаре только %d %s этого товара. Отправьте число не больше %d.",
			available, common.PluralizeItems(available), available,
		))
		return
	case err != nil:
		h.sessions.Clear(userID)
		log.WithError(err).WithField("user_id", userID).Error("Ошибка вывода")
		telegram.SendText(h.sender, chatID, "❌ Не удалось вывести товар. Попробуйте позже.")
		return
	}
	h.sessions.Clear(userID)

	it, _ := FindItem(label)
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Выведено %d %s: %s\n\n", len(items), common.PluralizeItems(len(items)), it.Title)
	b.WriteString("Оператор свяжется с вами для выдачи в ближайшее время.")
	telegram.SendText(h.sender, chatID, b.String())
}
