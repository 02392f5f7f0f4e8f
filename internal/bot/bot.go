// Package bot — цикл обновлений и маршрутизация.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/bot/middleware"
	"starsbot/internal/config"
	"starsbot/internal/features/admin"
	"starsbot/internal/features/casino"
	"starsbot/internal/features/deposit"
	"starsbot/internal/features/payments"
	"starsbot/internal/features/profile"
	"starsbot/internal/features/shop"
	"starsbot/internal/features/smm"
	"starsbot/internal/session"
	"starsbot/internal/telegram"
)

// Handlers — обработчики всех фич, собираются в app.
type Handlers struct {
	Profile  *profile.Handler
	Deposit  *deposit.Handler
	Payments *payments.Handler
	Shop     *shop.Handler
	Casino   *casino.Handler
	SMM      *smm.Handler
	Admin    *admin.Handler
}

// Bot крутит цикл обновлений и раздаёт их обработчикам.
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   telegram.Sender
	sessions *session.Tracker
	limiter  *middleware.RateLimiter
	handlers Handlers
	cfg      *config.Config
	inflight chan struct{}
}

// New создаёт бота поверх уже авторизованного API-клиента.
func New(api *tgbotapi.BotAPI, sessions *session.Tracker, handlers Handlers, cfg *config.Config) *Bot {
	return &Bot{
		api:      api,
		sender:   api,
		sessions: sessions,
		limiter:  middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		handlers: handlers,
		cfg:      cfg,
		inflight: make(chan struct{}, cfg.BotMaxInflight),
	}
}

// Start запускает цикл обновлений и блокируется до отмены контекста.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)
	log.WithField("bot", b.api.Self.UserName).Info("Бот запущен")

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.limiter.Close()
			wg.Wait()
			log.Info("Бот остановлен")
			return
		case update, ok := <-updates:
			if !ok {
				b.limiter.Close()
				wg.Wait()
				return
			}
			b.inflight <- struct{}{}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				defer func() { <-b.inflight }()
				defer middleware.RecoverFromPanic()
				b.handleUpdate(ctx, &upd)
			}(update)
		}
	}
}

// handleUpdate маршрутизирует одно обновление.
// Порядок проверок фиксирован: pre_checkout, успешная оплата,
// callback, команда, активный шаг диалога, главное меню.
func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	middleware.LogUpdate(update)

	if update.PreCheckoutQuery != nil {
		b.handlers.Payments.HandlePreCheckout(ctx, update.PreCheckoutQuery)
		return
	}

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	// бот работает только в личке
	if !msg.Chat.IsPrivate() {
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID

	// платёжное событие доставляется один раз, лимитер его не касается
	if msg.SuccessfulPayment != nil {
		b.handlers.Payments.HandleSuccessfulPayment(ctx, msg)
		return
	}

	if !b.limiter.Allow(userID) {
		telegram.SendText(b.sender, chatID, "⏳ Слишком много запросов. Подождите минуту.")
		return
	}

	text := strings.TrimSpace(msg.Text)

	// ключевое слово отмены сбрасывает любой диалог
	if low := strings.ToLower(text); low == "отмена" || low == "/cancel" || low == "cancel" {
		b.sessions.Clear(userID)
		b.handlers.Profile.HandleMenu(chatID)
		return
	}

	if strings.HasPrefix(text, "/") {
		b.routeCommand(ctx, chatID, msg.From, text)
		return
	}

	if step := b.sessions.Step(userID); step != session.StepIdle {
		b.routeStep(ctx, chatID, userID, step, text)
		return
	}

	b.handlers.Profile.HandleMenu(chatID)
}

func (b *Bot) routeCommand(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	cmd := text
	if i := strings.IndexAny(cmd, " @"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		b.sessions.Clear(from.ID)
		b.handlers.Profile.HandleStart(ctx, chatID, from)
	case "/admin":
		b.handlers.Admin.HandleCommand(chatID, from.ID)
	default:
		b.handlers.Profile.HandleMenu(chatID)
	}
}

func (b *Bot) routeStep(ctx context.Context, chatID, userID int64, step session.Step, text string) {
	switch step {
	case session.StepDepositAmount:
		b.handlers.Deposit.HandleAmountInput(ctx, chatID, userID, text)
	case session.StepWithdrawQuantity:
		b.handlers.Shop.HandleQuantityInput(ctx, chatID, userID, text)
	case session.StepOrderLink:
		b.handlers.SMM.HandleLinkInput(chatID, userID, text)
	case session.StepOrderQuantity:
		b.handlers.SMM.HandleQuantityInput(ctx, chatID, userID, text)
	case session.StepPassword:
		b.handlers.Admin.HandlePasswordInput(chatID, userID, text)
	case session.StepAdminUserID:
		b.handlers.Admin.HandleUserIDInput(chatID, userID, text)
	case session.StepAdminAmount:
		b.handlers.Admin.HandleAmountInput(ctx, chatID, userID, text)
	case session.StepBroadcastText:
		b.handlers.Admin.HandleBroadcastInput(ctx, chatID, userID, text)
	default:
		b.sessions.Clear(userID)
		b.handlers.Profile.HandleMenu(chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// всегда отвечаем, чтобы у пользователя не крутился спиннер
	telegram.AnswerCallback(b.sender, cq.ID, "")

	if cq.Message == nil || cq.From == nil || !cq.Message.Chat.IsPrivate() {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	data := cq.Data

	if !b.limiter.Allow(userID) {
		return
	}

	// нажатие кнопки обрывает начатый текстовый диалог
	if b.sessions.Step(userID) != session.StepIdle {
		b.sessions.Clear(userID)
	}

	switch data {
	case "back_main":
		b.handlers.Profile.HandleMenu(chatID)
	case "profile":
		b.handlers.Profile.HandleProfile(ctx, chatID, userID)
	case "about":
		b.handlers.Profile.HandleAbout(chatID)
	case "deposit":
		b.handlers.Deposit.HandleMenu(chatID)
	case "dep_custom":
		b.handlers.Deposit.HandleCustomStart(chatID, userID)
	case "shop":
		b.handlers.Shop.HandleCatalog(chatID)
	case "inventory":
		b.handlers.Shop.HandleInventory(ctx, chatID, userID)
	case "casino":
		b.handlers.Casino.HandleMenu(chatID)
	case "smm":
		b.handlers.SMM.HandleCatalog(ctx, chatID)
	case "adm_give", "adm_take":
		b.handlers.Admin.HandleAdjustStart(chatID, userID, data)
	case "adm_stats":
		b.handlers.Admin.HandleStats(ctx, chatID, userID)
	case "adm_broadcast":
		b.handlers.Admin.HandleBroadcastStart(chatID, userID)
	case "adm_stop":
		b.handlers.Admin.HandleBroadcastStop(chatID, userID)
	default:
		b.routeCallbackPrefix(ctx, chatID, userID, data)
	}
}

func (b *Bot) routeCallbackPrefix(ctx context.Context, chatID, userID int64, data string) {
	switch {
	case strings.HasPrefix(data, "dep_"):
		b.handlers.Deposit.HandlePreset(ctx, chatID, userID, data)
	case strings.HasPrefix(data, "buy_"):
		b.handlers.Shop.HandleBuy(ctx, chatID, userID, data)
	case strings.HasPrefix(data, "withdraw_"):
		b.handlers.Shop.HandleWithdrawStart(chatID, userID, data)
	case strings.HasPrefix(data, "dice_"):
		b.handlers.Casino.HandlePlay(ctx, chatID, userID, data)
	case strings.HasPrefix(data, "smm_svc_"):
		b.handlers.SMM.HandlePick(ctx, chatID, userID, data)
	default:
		b.handlers.Profile.HandleMenu(chatID)
	}
}
