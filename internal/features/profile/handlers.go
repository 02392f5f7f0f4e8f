// Package profile — первый контакт, главное меню и карточка профиля.
package profile

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/notify"
	"starsbot/internal/store"
	"starsbot/internal/telegram"
)

// Handler обрабатывает /start, главное меню и профиль.
type Handler struct {
	store    store.Store
	notifier *notify.Notifier
	sender   telegram.Sender
}

// NewHandler создаёт обработчик профиля.
func NewHandler(st store.Store, notifier *notify.Notifier, sender telegram.Sender) *Handler {
	return &Handler{store: st, notifier: notifier, sender: sender}
}

// MainMenu строит клавиатуру главного меню.
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Пополнить", "deposit"),
			tgbotapi.NewInlineKeyboardButtonData("🛒 Магазин", "shop"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎒 Инвентарь", "inventory"),
			tgbotapi.NewInlineKeyboardButtonData("🎲 Казино", "casino"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📈 SMM-услуги", "smm"),
			tgbotapi.NewInlineKeyboardButtonData("👤 Профиль", "profile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ О боте", "about"),
		),
	)
}

// HandleStart обрабатывает /start: лениво создаёт запись (баланс 0),
// освежает метаданные профиля и показывает главное меню.
// О новом пользователе уведомляется оператор.
func (h *Handler) HandleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	u, created, err := h.store.GetOrCreate(ctx, from.ID, store.Profile{
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		log.WithError(err).WithField("user_id", from.ID).Error("Ошибка создания записи")
		telegram.SendText(h.sender, chatID, "❌ Что-то пошло не так. Попробуйте ещё раз.")
		return
	}

	if created {
		log.WithField("user_id", u.UserID).Info("Новый пользователь")
		h.notifier.NewUser(u)
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Это магазин цифровых товаров с оплатой через Telegram Stars.\n"+
			"💰 Баланс: %s",
		from.FirstName,
		common.FormatCoins(u.Balance),
	)
	telegram.SendWithKeyboard(h.sender, chatID, text, MainMenu())
}

// HandleMenu показывает главное меню (ответ на любой нераспознанный ввод).
func (h *Handler) HandleMenu(chatID int64) {
	telegram.SendWithKeyboard(h.sender, chatID, "📋 Главное меню:", MainMenu())
}

// HandleProfile показывает карточку профиля со счётчиками.
func (h *Handler) HandleProfile(ctx context.Context, chatID, userID int64) {
	u, err := h.store.Get(ctx, userID)
	if err != nil {
		telegram.SendText(h.sender, chatID, "❌ Профиль не найден. Отправьте /start")
		return
	}

	items := 0
	for i := range u.Inventory {
		if !u.Inventory[i].Withdrawn {
			items++
		}
	}

	text := fmt.Sprintf(
		"👤 Профиль\n\n"+
			"🆔 ID: %d\n"+
			"💰 Баланс: %s\n"+
			"🎒 В инвентаре: %d %s\n\n"+
			"📥 Всего пополнено: %s\n"+
			"📤 Всего потрачено: %s\n"+
			"🏆 Всего выиграно: %s\n\n"+
			"📅 С нами с %s",
		u.UserID,
		common.FormatCoins(u.Balance),
		items, common.PluralizeItems(items),
		common.FormatNumber(u.TotalDeposited),
		common.FormatNumber(u.TotalSpent),
		common.FormatNumber(u.TotalWon),
		common.FormatDateTime(u.JoinedAt),
	)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
		),
	)
	telegram.SendWithKeyboard(h.sender, chatID, text, kb)
}

// HandleAbout показывает экран «О боте».
func (h *Handler) HandleAbout(chatID int64) {
	text := "🤖 О боте:\n\n" +
		"Пополняйте баланс через Telegram Stars, покупайте цифровые товары, " +
		"заказывайте SMM-услуги и испытывайте удачу в казино.\n\n" +
		"Telegram Stars — внутренняя валюта Telegram, курс зачисления 1:1.\n\n" +
		"По всем вопросам — кнопка «Профиль» покажет ваш ID, назовите его оператору."
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
		),
	)
	telegram.SendWithKeyboard(h.sender, chatID, text, kb)
}
