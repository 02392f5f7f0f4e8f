package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/features/smm"
	"starsbot/internal/session"
	"starsbot/internal/telegram"
)

// Handler — команды и диалоги админки.
// Каждый обработчик заново проверяет, что пишет оператор:
// остальным админка отвечает как на неизвестный ввод.
type Handler struct {
	service        *Service
	smm            *smm.Service
	sessions       *session.Tracker
	sender         telegram.Sender
	broadcastPause time.Duration
}

// NewHandler создаёт обработчик админки.
func NewHandler(service *Service, smmSvc *smm.Service, sessions *session.Tracker, sender telegram.Sender, broadcastPause time.Duration) *Handler {
	return &Handler{
		service:        service,
		smm:            smmSvc,
		sessions:       sessions,
		sender:         sender,
		broadcastPause: broadcastPause,
	}
}

func adminMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Выдать монеты", "adm_give"),
			tgbotapi.NewInlineKeyboardButtonData("➖ Списать монеты", "adm_take"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", "adm_stats"),
			tgbotapi.NewInlineKeyboardButtonData("📢 Рассылка", "adm_broadcast"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏹ Остановить рассылку", "adm_stop"),
		),
	)
}

// HandleCommand обрабатывает /admin.
func (h *Handler) HandleCommand(chatID, userID int64) {
	if !h.service.IsOperator(userID) {
		return
	}
	if !h.service.IsAuthed(userID) {
		h.sessions.Begin(userID, session.StepPassword, session.Scratch{})
		telegram.SendText(h.sender, chatID, "🔐 Введите пароль администратора:")
		return
	}
	telegram.SendWithKeyboard(h.sender, chatID, "⚙️ Панель администратора:", adminMenu())
}

// HandlePasswordInput проверяет введённый пароль.
func (h *Handler) HandlePasswordInput(chatID, userID int64, text string) {
	if !h.service.IsOperator(userID) {
		h.sessions.Clear(userID)
		return
	}

	err := h.service.Login(userID, strings.TrimSpace(text))
	switch {
	case errors.Is(err, common.ErrTooManyAttempts):
		h.sessions.Clear(userID)
		telegram.SendText(h.sender, chatID, "⛔ Слишком много попыток. Подождите 15 минут.")
		return
	case errors.Is(err, common.ErrWrongPassword):
		// остаёмся на шаге, даём следующую попытку
		telegram.SendText(h.sender, chatID, "❌ Неверный пароль. Попробуйте ещё раз.")
		return
	case err != nil:
		h.sessions.Clear(userID)
		return
	}

	h.sessions.Clear(userID)
	telegram.SendWithKeyboard(h.sender, chatID, "✅ Доступ открыт.\n\n⚙️ Панель администратора:", adminMenu())
}

// requireAuthed возвращает true, если оператор аутентифицирован,
// иначе запускает парольный диалог.
func (h *Handler) requireAuthed(chatID, userID int64) bool {
	if !h.service.IsOperator(userID) {
		return false
	}
	if !h.service.IsAuthed(userID) {
		h.sessions.Begin(userID, session.StepPassword, session.Scratch{})
		telegram.SendText(h.sender, chatID, "🔐 Сессия истекла. Введите пароль:")
		return false
	}
	return true
}

// HandleAdjustStart обрабатывает adm_give / adm_take: спрашивает ID пользователя.
func (h *Handler) HandleAdjustStart(chatID, userID int64, data string) {
	if !h.requireAuthed(chatID, userID) {
		return
	}
	mode := "give"
	if data == "adm_take" {
		mode = "take"
	}
	h.sessions.Begin(userID, session.StepAdminUserID, session.Scratch{Mode: mode})
	telegram.SendText(h.sender, chatID, "🆔 Отправьте ID пользователя.\n\nДля отмены напишите «отмена».")
}

// HandleUserIDInput принимает ID пользователя и спрашивает сумму.
func (h *Handler) HandleUserIDInput(chatID, userID int64, text string) {
	if !h.service.IsOperator(userID) {
		h.sessions.Clear(userID)
		return
	}
	target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || target <= 0 {
		telegram.SendText(h.sender, chatID, "❌ Отправьте числовой ID пользователя.")
		return
	}
	h.sessions.Advance(userID, session.StepAdminAmount, func(s *session.Scratch) {
		s.TargetUserID = target
	})
	telegram.SendText(h.sender, chatID, "💰 Отправьте сумму в монетах.")
}

// HandleAmountInput принимает сумму и применяет коррекцию.
func (h *Handler) HandleAmountInput(ctx context.Context, chatID, userID int64, text string) {
	if !h.service.IsOperator(userID) {
		h.sessions.Clear(userID)
		return
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || amount <= 0 {
		telegram.SendText(h.sender, chatID, "❌ Отправьте целое число больше нуля.")
		return
	}

	scratch := h.sessions.Scratch(userID)
	h.sessions.Clear(userID)

	if scratch.Mode == "take" {
		amount = -amount
	}

	balance, err := h.service.Adjust(ctx, userID, scratch.TargetUserID, amount)
	switch {
	case errors.Is(err, common.ErrUserNotFound):
		telegram.SendText(h.sender, chatID, "❌ Пользователь с таким ID не найден.")
		return
	case errors.Is(err, common.ErrInsufficientBalance):
		telegram.SendText(h.sender, chatID, "❌ На балансе пользователя нет столько монет.")
		return
	case err != nil:
		log.WithError(err).Error("Ошибка коррекции баланса")
		telegram.SendText(h.sender, chatID, "❌ Не удалось изменить баланс.")
		return
	}

	telegram.SendText(h.sender, chatID, fmt.Sprintf(
		"✅ Готово. Баланс пользователя %d: %s",
		scratch.TargetUserID, common.FormatCoins(balance),
	))
}

// HandleStats показывает агрегаты.
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64) {
	if !h.requireAuthed(chatID, userID) {
		return
	}
	st, err := h.service.CollectStats(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка сбора статистики")
		telegram.SendText(h.sender, chatID, "❌ Не удалось собрать статистику.")
		return
	}
	text := fmt.Sprintf(
		"📊 Статистика\n\n"+
			"👥 Пользователей: %d\n"+
			"💰 Суммарный баланс: %s\n"+
			"📥 Пополнено всего: %s\n"+
			"📤 Потрачено всего: %s\n"+
			"🏆 Выиграно всего: %s",
		st.Users,
		common.FormatNumber(st.TotalBalance),
		common.FormatNumber(st.TotalDeposited),
		common.FormatNumber(st.TotalSpent),
		common.FormatNumber(st.TotalWon),
	)

	if h.smm != nil && h.smm.Enabled() {
		if balance, currency, err := h.smm.ProviderBalance(ctx); err != nil {
			log.WithError(err).Warn("Не удалось получить баланс SMM-панели")
		} else {
			text += fmt.Sprintf("\n\n📈 Баланс SMM-панели: %s %s", balance, currency)
		}
	}

	telegram.SendText(h.sender, chatID, text)
}

// HandleBroadcastStart обрабатывает adm_broadcast: спрашивает текст.
func (h *Handler) HandleBroadcastStart(chatID, userID int64) {
	if !h.requireAuthed(chatID, userID) {
		return
	}
	h.sessions.Begin(userID, session.StepBroadcastText, session.Scratch{})
	telegram.SendText(h.sender, chatID, "📢 Отправьте текст рассылки.\n\nДля отмены напишите «отмена».")
}

// HandleBroadcastInput запускает рассылку с введённым текстом.
func (h *Handler) HandleBroadcastInput(ctx context.Context, chatID, userID int64, text string) {
	if !h.service.IsOperator(userID) {
		h.sessions.Clear(userID)
		return
	}
	h.sessions.Clear(userID)

	text = strings.TrimSpace(text)
	if text == "" {
		telegram.SendText(h.sender, chatID, "❌ Пустой текст, рассылка не запущена.")
		return
	}

	err := h.service.Broadcast(ctx, userID, text, h.broadcastPause,
		func(recipient int64, body string) error {
			_, err := h.sender.Send(tgbotapi.NewMessage(recipient, body))
			return err
		},
		func(sent, failed int) {
			telegram.SendText(h.sender, chatID, fmt.Sprintf(
				"📢 Рассылка завершена.\n✅ Доставлено: %d\n❌ Не доставлено: %d",
				sent, failed,
			))
		},
	)
	switch {
	case errors.Is(err, common.ErrBroadcastRunning):
		telegram.SendText(h.sender, chatID, "❌ Рассылка уже идёт. Остановите её или дождитесь конца.")
	case err != nil:
		log.WithError(err).Error("Ошибка запуска рассылки")
		telegram.SendText(h.sender, chatID, "❌ Не удалось запустить рассылку.")
	default:
		telegram.SendText(h.sender, chatID, "🚀 Рассылка запущена.")
	}
}

// HandleBroadcastStop обрабатывает adm_stop.
func (h *Handler) HandleBroadcastStop(chatID, userID int64) {
	if !h.requireAuthed(chatID, userID) {
		return
	}
	if h.service.StopBroadcast(userID) {
		telegram.SendText(h.sender, chatID, "⏹ Рассылка останавливается.")
	} else {
		telegram.SendText(h.sender, chatID, "ℹ️ Активной рассылки нет.")
	}
}
