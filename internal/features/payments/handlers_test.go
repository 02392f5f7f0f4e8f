package payments

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsbot/internal/notify"
	"starsbot/internal/store"
)

// fakeSender копит все отправленные в Telegram объекты.
type fakeSender struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) lastPreCheckout(t *testing.T) tgbotapi.PreCheckoutConfig {
	t.Helper()
	require.NotEmpty(t, f.requested)
	answer, ok := f.requested[len(f.requested)-1].(tgbotapi.PreCheckoutConfig)
	require.True(t, ok, "последний запрос не PreCheckoutConfig")
	return answer
}

const operatorID = int64(777)

func newTestHandler(t *testing.T) (*Handler, store.Store, *fakeSender) {
	t.Helper()
	svc, st := newTestService(t)
	sender := &fakeSender{}
	h := NewHandler(svc, st, notify.New(sender, operatorID), sender)
	return h, st, sender
}

func preCheckoutQuery(payload string, amount int) *tgbotapi.PreCheckoutQuery {
	return &tgbotapi.PreCheckoutQuery{
		ID:             "pcq1",
		From:           &tgbotapi.User{ID: 100},
		Currency:       "XTR",
		TotalAmount:    amount,
		InvoicePayload: payload,
	}
}

func TestHandlePreCheckoutAcceptsValidOrder(t *testing.T) {
	h, st, sender := newTestHandler(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	o, err := h.service.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	require.NoError(t, h.service.Activate(ctx, o.ID))

	h.HandlePreCheckout(ctx, preCheckoutQuery(o.ID, 50))

	answer := sender.lastPreCheckout(t)
	assert.True(t, answer.OK)
	assert.Empty(t, answer.ErrorMessage)
}

func TestHandlePreCheckoutRejectsUnknownOrder(t *testing.T) {
	h, _, sender := newTestHandler(t)

	h.HandlePreCheckout(context.Background(), preCheckoutQuery("dep_100_000", 50))

	answer := sender.lastPreCheckout(t)
	assert.False(t, answer.OK)
	assert.NotEmpty(t, answer.ErrorMessage)
}

func TestHandlePreCheckoutRejectsAmountMismatch(t *testing.T) {
	h, st, sender := newTestHandler(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	o, err := h.service.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	require.NoError(t, h.service.Activate(ctx, o.ID))

	h.HandlePreCheckout(ctx, preCheckoutQuery(o.ID, 500))

	answer := sender.lastPreCheckout(t)
	assert.False(t, answer.OK)
}

func successfulPayment(payload string, amount int) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: 100},
		SuccessfulPayment: &tgbotapi.SuccessfulPayment{
			Currency:       "XTR",
			TotalAmount:    amount,
			InvoicePayload: payload,
		},
	}
}

func TestHandleSuccessfulPayment(t *testing.T) {
	h, st, sender := newTestHandler(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	o, err := h.service.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	require.NoError(t, h.service.Activate(ctx, o.ID))

	h.HandleSuccessfulPayment(ctx, successfulPayment(o.ID, 50))

	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.Balance)

	// два сообщения: подтверждение плательщику и уведомление оператору
	require.Len(t, sender.sent, 2)
	confirm := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(100), confirm.ChatID)
	notice := sender.sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, operatorID, notice.ChatID)
}

func TestHandleSuccessfulPaymentRedelivery(t *testing.T) {
	h, st, sender := newTestHandler(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	o, err := h.service.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	require.NoError(t, h.service.Activate(ctx, o.ID))

	h.HandleSuccessfulPayment(ctx, successfulPayment(o.ID, 50))
	sentAfterFirst := len(sender.sent)

	// повторная доставка: баланс не меняется, новых сообщений нет
	h.HandleSuccessfulPayment(ctx, successfulPayment(o.ID, 50))

	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.Balance)
	assert.Len(t, sender.sent, sentAfterFirst)
}
