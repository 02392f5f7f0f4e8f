package smm

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

// сколько услуг показываем кнопками, панели отдают сотни позиций
const catalogPageSize = 8

// Handler — каталог SMM-услуг и диалог заказа.
type Handler struct {
	service  *Service
	sessions *session.Tracker
	sender   telegram.Sender
}

// NewHandler создаёт обработчик SMM.
func NewHandler(service *Service, sessions *session.Tracker, sender telegram.Sender) *Handler {
	return &Handler{service: service, sessions: sessions, sender: sender}
}

// HandleCatalog показывает первые услуги каталога.
func (h *Handler) HandleCatalog(ctx context.Context, chatID int64) {
	if !h.service.Enabled() {
		telegram.SendText(h.sender, chatID, "📈 SMM-услуги временно недоступны.")
		return
	}

	services, err := h.service.Catalog(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка каталога SMM")
		telegram.SendText(h.sender, chatID, "❌ Панель услуг недоступна. Попробуйте позже.")
		return
	}

	if len(services) > catalogPageSize {
		services = services[:catalogPageSize]
	}

	var b strings.Builder
	b.WriteString("📈 SMM-услуги:\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for i := range services {
		svc := &services[i]
		price, err := h.service.Price(svc, 1000)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n   %s за 1000\n\n", svc.ID, svc.Name, common.FormatCoins(price))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("№%d · %d за 1000", svc.ID, price),
				fmt.Sprintf("smm_svc_%d", svc.ID),
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Назад", "back_main"),
	))
	telegram.SendWithKeyboard(h.sender, chatID, b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// HandlePick обрабатывает callback smm_svc_<id>: спрашивает ссылку.
func (h *Handler) HandlePick(ctx context.Context, chatID, userID int64, data string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, "smm_svc_"), 10, 64)
	if err != nil {
		return
	}

	svc, err := h.service.FindService(ctx, id)
	if err != nil {
		telegram.SendText(h.sender, chatID, "❌ Услуга не найдена. Откройте каталог заново.")
		return
	}

	h.sessions.Begin(userID, session.StepOrderLink, session.Scratch{ServiceID: id})
	text := fmt.Sprintf(
		"📈 %s\n📦 От %d до %d единиц\n\n"+
			"🔗 Отправьте ссылку на объект продвижения.\n\nДля отмены напишите «отмена».",
		svc.Name, svc.Min, svc.Max,
	)
	telegram.SendText(h.sender, chatID, text)
}

// HandleLinkInput принимает ссылку и спрашивает количество.
func (h *Handler) HandleLinkInput(chatID, userID int64, text string) {
	link := strings.TrimSpace(text)
	if !strings.HasPrefix(link, "https://") && !strings.HasPrefix(link, "http://") {
		telegram.SendText(h.sender, chatID, "❌ Отправьте полную ссылку, начиная с https://")
		return
	}
	h.sessions.Advance(userID, session.StepOrderQuantity, func(s *session.Scratch) {
		s.Link = link
	})
	telegram.SendText(h.sender, chatID, "🔢 Сколько единиц заказать? Отправьте число.")
}

// HandleQuantityInput принимает количество и размещает заказ.
func (h *Handler) HandleQuantityInput(ctx context.Context, chatID, userID int64, text string) {
	quantity, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || quantity <= 0 {
		telegram.SendText(h.sender, chatID, "❌ Отправьте целое число больше нуля.")
		return
	}

	scratch := h.sessions.Scratch(userID)

	svc, err := h.service.FindService(ctx, scratch.ServiceID)
	if err != nil {
		h.sessions.Clear(userID)
		telegram.SendText(h.sender, chatID, "❌ Услуга не найдена. Откройте каталог заново.")
		return
	}
	if quantity < svc.Min || quantity > svc.Max {
		// остаёмся на шаге, даём ввести корректное количество
		telegram.SendText(h.sender, chatID,
			fmt.Sprintf("❌ Для этой услуги количество от %d до %d.", svc.Min, svc.Max))
		return
	}

	h.sessions.Clear(userID)

	orderID, price, err := h.service.Order(ctx, userID, scratch.ServiceID, scratch.Link, quantity)
	switch {
	case errors.Is(err, common.ErrInsufficientBalance):
		telegram.SendText(h.sender, chatID, "❌ Недостаточно монет. Пополните баланс.")
		return
	case errors.Is(err, common.ErrSMMUnavailable):
		telegram.SendText(h.sender, chatID, "❌ Панель отклонила заказ, монеты возвращены. Попробуйте позже.")
		return
	case err != nil:
		log.WithError(err).WithField("user_id", userID).Error("Ошибка SMM-заказа")
		telegram.SendText(h.sender, chatID, "❌ Не удалось разместить заказ. Попробуйте позже.")
		return
	}

	telegram.SendText(h.sender, chatID, fmt.Sprintf(
		"✅ Заказ №%d размещён!\n💸 Списано: %s\n\nВыполнение обычно занимает от часа до суток.",
		orderID, common.FormatCoins(price),
	))
}
