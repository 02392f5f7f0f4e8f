package smm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsbot/internal/common"
	"starsbot/internal/store"
	"starsbot/internal/store/jsonfile"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	fs, err := jsonfile.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	return fs
}

func seedUser(t *testing.T, st store.Store, userID, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := st.GetOrCreate(ctx, userID, store.Profile{FirstName: "Test"})
	require.NoError(t, err)
	if balance > 0 {
		_, err = st.ApplyDelta(ctx, userID, balance, store.BucketNone)
		require.NoError(t, err)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(newTestStore(t), nil, 2.0)

	assert.False(t, svc.Enabled())
	_, err := svc.Catalog(context.Background())
	assert.ErrorIs(t, err, common.ErrSMMDisabled)
	_, _, err = svc.Order(context.Background(), 100, 101, "https://t.me/c", 1000)
	assert.ErrorIs(t, err, common.ErrSMMDisabled)
}

func TestPrice(t *testing.T) {
	svc := NewService(newTestStore(t), nil, 2.0)

	// 0.90 за 1000 × 2.0 наценка = 1.8 → округление вверх до 2
	price, err := svc.Price(&APIService{Rate: "0.90"}, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), price)

	// крупный заказ: 0.90 × 10 × 2.0 = 18
	price, err = svc.Price(&APIService{Rate: "0.90"}, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(18), price)

	// цена никогда не опускается ниже одной монеты
	price, err = svc.Price(&APIService{Rate: "0.01"}, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), price)

	_, err = svc.Price(&APIService{Rate: "мусор"}, 1000)
	assert.ErrorIs(t, err, common.ErrSMMUnavailable)
}

func TestOrderDebitsAndPlaces(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, 100, 500)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("action") {
		case "services":
			w.Write([]byte(servicesJSON))
		case "add":
			w.Write([]byte(`{"order": 777}`))
		}
	}))
	t.Cleanup(srv.Close)

	svc := NewService(st, NewClient(srv.URL, "k", time.Second), 2.0)

	orderID, price, err := svc.Order(context.Background(), 100, 101, "https://t.me/c", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(777), orderID)
	assert.Equal(t, int64(2), price)

	u, err := st.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(498), u.Balance)
	assert.Equal(t, int64(2), u.TotalSpent)
}

func TestOrderRefundsOnPanelFailure(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, 100, 500)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("action") {
		case "services":
			w.Write([]byte(servicesJSON))
		case "add":
			w.Write([]byte(`{"error": "service overloaded"}`))
		}
	}))
	t.Cleanup(srv.Close)

	svc := NewService(st, NewClient(srv.URL, "k", time.Second), 2.0)

	_, _, err := svc.Order(context.Background(), 100, 101, "https://t.me/c", 1000)
	assert.ErrorIs(t, err, common.ErrSMMUnavailable)

	// списанное вернулось, счётчик трат не считает отклонённый заказ
	u, err := st.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(500), u.Balance)
	assert.Equal(t, int64(0), u.TotalSpent)
}

func TestOrderQuantityBounds(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, 100, 500)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(servicesJSON))
	}))
	t.Cleanup(srv.Close)

	svc := NewService(st, NewClient(srv.URL, "k", time.Second), 2.0)

	// услуга 101: min=100, max=50000
	_, _, err := svc.Order(context.Background(), 100, 101, "https://t.me/c", 50)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
	_, _, err = svc.Order(context.Background(), 100, 101, "https://t.me/c", 50001)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestCatalogCaching(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(servicesJSON))
	}))
	t.Cleanup(srv.Close)

	svc := NewService(newTestStore(t), NewClient(srv.URL, "k", time.Second), 2.0)

	_, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	_, err = svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
