package smm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsbot/internal/common"
)

const servicesJSON = `[
	{"service": "101", "name": "Подписчики Telegram", "category": "Telegram", "rate": "0.90", "min": "100", "max": "50000"},
	{"service": "202", "name": "Просмотры поста", "category": "Telegram", "rate": "0.05", "min": "500", "max": "100000"}
]`

func newTestPanel(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", 2*time.Second)
}

func TestServices(t *testing.T) {
	client := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.Form.Get("key"))
		assert.Equal(t, "services", r.Form.Get("action"))
		w.Write([]byte(servicesJSON))
	})

	services, err := client.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)

	assert.Equal(t, int64(101), services[0].ID)
	assert.Equal(t, "Подписчики Telegram", services[0].Name)
	assert.Equal(t, int64(100), services[0].Min)

	rate, err := services[0].RatePer1000()
	require.NoError(t, err)
	assert.InDelta(t, 0.90, rate, 0.0001)
}

func TestAdd(t *testing.T) {
	client := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "add", r.Form.Get("action"))
		assert.Equal(t, "101", r.Form.Get("service"))
		assert.Equal(t, "https://t.me/channel", r.Form.Get("link"))
		assert.Equal(t, "1000", r.Form.Get("quantity"))
		w.Write([]byte(`{"order": 55501}`))
	})

	orderID, err := client.Add(context.Background(), 101, "https://t.me/channel", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(55501), orderID)
}

func TestBalance(t *testing.T) {
	client := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "balance", r.Form.Get("action"))
		w.Write([]byte(`{"balance": "125.40", "currency": "USD"}`))
	})

	balance, currency, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "125.40", balance)
	assert.Equal(t, "USD", currency)
}

func TestAddPanelError(t *testing.T) {
	client := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "not enough funds"}`))
	})

	_, err := client.Add(context.Background(), 101, "https://t.me/channel", 1000)
	assert.ErrorIs(t, err, common.ErrSMMUnavailable)
}

func TestBadStatus(t *testing.T) {
	client := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Services(context.Background())
	assert.ErrorIs(t, err, common.ErrSMMUnavailable)
}

func TestPanelDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, "test-key", time.Second)

	_, err := client.Services(context.Background())
	assert.ErrorIs(t, err, common.ErrSMMUnavailable)
}
