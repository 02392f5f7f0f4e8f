// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// LogUpdate логирует входящее обновление: кто, откуда, что.
// Текст обрезается до 50 символов, чтобы не засорять логи.
func LogUpdate(update *tgbotapi.Update) {
	switch {
	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Chat == nil {
			return
		}
		text := m.Text
		if len(text) > 50 {
			text = text[:50] + "..."
		}
		log.WithFields(log.Fields{
			"user_id":  m.From.ID,
			"chat_id":  m.Chat.ID,
			"username": m.From.UserName,
			"text":     text,
		}).Debug("Входящее сообщение")

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		log.WithFields(log.Fields{
			"user_id": cq.From.ID,
			"data":    cq.Data,
		}).Debug("Нажатие кнопки")

	case update.PreCheckoutQuery != nil:
		pcq := update.PreCheckoutQuery
		log.WithFields(log.Fields{
			"user_id": pcq.From.ID,
			"payload": pcq.InvoicePayload,
			"amount":  pcq.TotalAmount,
		}).Debug("Pre-checkout запрос")
	}
}
