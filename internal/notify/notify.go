// Package notify — канал уведомлений оператора.
// Все служебные уведомления (новый пользователь, оплата, крупный выигрыш)
// уходят одному привилегированному пользователю.
package notify

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/store"
	"starsbot/internal/telegram"
)

// Notifier отправляет уведомления оператору.
// Ошибка отправки (оператор заблокировал бота) логируется и глотается:
// уведомление не должно ронять обработку события.
type Notifier struct {
	sender     telegram.Sender
	operatorID int64
}

// New создаёт нотификатор.
func New(sender telegram.Sender, operatorID int64) *Notifier {
	return &Notifier{sender: sender, operatorID: operatorID}
}

// NewUser сообщает о первом контакте нового пользователя.
func (n *Notifier) NewUser(u *store.UserRecord) {
	username := "нет"
	if u.Username != "" {
		username = "@" + u.Username
	}
	text := fmt.Sprintf(
		"👤 Новый пользователь!\n\n"+
			"Имя: %s %s\n"+
			"🆔 ID: %d\n"+
			"📛 Username: %s\n"+
			"📅 Время: %s",
		u.FirstName, u.LastName, u.UserID, username,
		common.FormatDateTime(time.Now()),
	)
	n.send(text, u.UserID)
}

// PaymentReceived сообщает об успешной оплате заказа.
func (n *Notifier) PaymentReceived(o *store.Order, u *store.UserRecord) {
	username := "нет"
	if u.Username != "" {
		username = "@" + u.Username
	}
	text := fmt.Sprintf(
		"🎉 Новая оплата!\n\n"+
			"👤 Пользователь: %s %s\n"+
			"🆔 ID: %d\n"+
			"📛 Username: %s\n"+
			"💰 Сумма: %d %s\n"+
			"📅 Время: %s\n"+
			"🎯 Заказ: %s",
		u.FirstName, u.LastName, u.UserID, username,
		o.Amount, common.PluralizeStars(o.Amount),
		common.FormatDateTime(time.Now()),
		o.ID,
	)
	n.send(text, u.UserID)
}

// BigWin сообщает о крупном выигрыше в казино.
func (n *Notifier) BigWin(userID int64, bet, payout int64) {
	text := fmt.Sprintf(
		"🎲 Крупный выигрыш!\n\n"+
			"🆔 ID: %d\n"+
			"Ставка: %s\n"+
			"Выплата: %s",
		userID,
		common.FormatCoins(bet),
		common.FormatCoins(payout),
	)
	n.send(text, userID)
}

// send отправляет текст оператору с кнопкой «написать пользователю».
func (n *Notifier) send(text string, aboutUserID int64) {
	msg := tgbotapi.NewMessage(n.operatorID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(
				"👤 Написать пользователю",
				fmt.Sprintf("tg://user?id=%d", aboutUserID),
			),
		),
	)
	if _, err := n.sender.Send(msg); err != nil {
		log.WithError(err).WithField("operator_id", n.operatorID).
			Warn("Не удалось отправить уведомление оператору")
	}
}
