// Package telegram — узкий интерфейс к Bot API, через который обработчики
// отправляют ответы. *tgbotapi.BotAPI реализует его напрямую; в тестах
// подставляется фейк, записывающий исходящие сообщения.
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender умеет отправлять сообщения и выполнять запросы к Bot API.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// SendText отправляет простое текстовое сообщение, логируя ошибку отправки.
// Ошибка отправки ответа не фатальна и не прерывает обработку.
func SendText(s Sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendWithKeyboard отправляет текст с инлайн-клавиатурой.
func SendWithKeyboard(s Sender, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := s.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// AnswerCallback подтверждает нажатие кнопки. Подтверждение дёшево
// и безопасно при повторной доставке того же колбэка.
func AnswerCallback(s Sender, callbackID string, text string) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := s.Request(cb); err != nil {
		log.WithError(err).Debug("Не удалось подтвердить callback")
	}
}
