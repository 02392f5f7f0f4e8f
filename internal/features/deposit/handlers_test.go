package deposit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsbot/internal/config"
	"starsbot/internal/features/payments"
	"starsbot/internal/session"
	"starsbot/internal/store"
	"starsbot/internal/store/jsonfile"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) invoices() []tgbotapi.InvoiceConfig {
	var out []tgbotapi.InvoiceConfig
	for _, c := range f.sent {
		if inv, ok := c.(tgbotapi.InvoiceConfig); ok {
			out = append(out, inv)
		}
	}
	return out
}

func newTestHandler(t *testing.T) (*Handler, store.Store, *session.Tracker, *fakeSender) {
	t.Helper()
	fs, err := jsonfile.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	cfg := &config.Config{DepositMin: 8, DepositMax: 10000}
	sessions := session.NewTracker(time.Minute)
	sender := &fakeSender{}
	h := NewHandler(payments.NewService(fs, cfg), sessions, sender, cfg)

	_, _, err = fs.GetOrCreate(context.Background(), 100, store.Profile{FirstName: "Test"})
	require.NoError(t, err)
	return h, fs, sessions, sender
}

func TestHandlePresetSendsInvoice(t *testing.T) {
	h, st, _, sender := newTestHandler(t)
	ctx := context.Background()

	h.HandlePreset(ctx, 100, 100, "dep_50")

	invoices := sender.invoices()
	require.Len(t, invoices, 1)
	inv := invoices[0]
	assert.Equal(t, "XTR", inv.Currency)
	assert.Empty(t, inv.ProviderToken)
	require.Len(t, inv.Prices, 1)
	assert.Equal(t, 50, inv.Prices[0].Amount)

	// payload инвойса — id заказа, и заказ уже ждёт оплаты
	o, err := st.GetOrder(ctx, inv.Payload)
	require.NoError(t, err)
	assert.Equal(t, store.OrderAwaitingPayment, o.Status)
	assert.Equal(t, int64(50), o.Amount)
}

func TestHandleAmountInputReprompts(t *testing.T) {
	h, _, sessions, sender := newTestHandler(t)
	ctx := context.Background()

	h.HandleCustomStart(100, 100)
	require.Equal(t, session.StepDepositAmount, sessions.Step(100))

	// нечисловой ввод и нарушение границ не сбрасывают шаг
	for _, input := range []string{"abc", "-5", "7", "10001"} {
		h.HandleAmountInput(ctx, 100, 100, input)
		assert.Equal(t, session.StepDepositAmount, sessions.Step(100), "input=%q", input)
	}
	assert.Empty(t, sender.invoices())

	// корректный ввод завершает диалог и отправляет инвойс
	h.HandleAmountInput(ctx, 100, 100, "250")
	assert.Equal(t, session.StepIdle, sessions.Step(100))
	require.Len(t, sender.invoices(), 1)
	assert.Equal(t, 250, sender.invoices()[0].Prices[0].Amount)
}

func TestHandlePresetBadPayload(t *testing.T) {
	h, _, _, sender := newTestHandler(t)

	h.HandlePreset(context.Background(), 100, 100, "dep_abc")
	assert.Empty(t, sender.sent)
}
