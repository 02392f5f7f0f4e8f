package shop

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsbot/internal/common"
	"starsbot/internal/store"
	"starsbot/internal/store/jsonfile"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	fs, err := jsonfile.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	return NewService(fs), fs
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

func TestFindItem(t *testing.T) {
	it, ok := FindItem("proxy")
	assert.True(t, ok)
	assert.Equal(t, int64(150), it.Price)

	_, ok = FindItem("nonexistent")
	assert.False(t, ok)
}

func TestBuy(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100, 200)

	it, balance, err := svc.Buy(ctx, 100, "proxy")
	require.NoError(t, err)
	assert.Equal(t, "proxy", it.Label)
	assert.Equal(t, int64(50), balance)

	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	require.Len(t, u.Inventory, 1)
	assert.Equal(t, "proxy", u.Inventory[0].Label)
	assert.False(t, u.Inventory[0].Withdrawn)
	assert.Equal(t, int64(150), u.TotalSpent)
}

func TestBuyInsufficientBalance(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100, 100)

	_, _, err := svc.Buy(ctx, 100, "proxy")
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// ни списания, ни предмета
	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.Balance)
	assert.Empty(t, u.Inventory)
}

func TestBuyUnknownItem(t *testing.T) {
	svc, st := newTestService(t)
	seedUser(t, st, 100, 1000)

	_, _, err := svc.Buy(context.Background(), 100, "nonexistent")
	assert.ErrorIs(t, err, common.ErrItemNotFound)
}

func TestWithdrawOldestFirst(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100, 1000)

	// три покупки подряд: инвентарь накапливается по порядку
	for i := 0; i < 3; i++ {
		_, _, err := svc.Buy(ctx, 100, "proxy")
		require.NoError(t, err)
	}

	items, err := svc.Withdraw(ctx, 100, "proxy", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.True(t, u.Inventory[0].Withdrawn)
	assert.True(t, u.Inventory[1].Withdrawn)
	assert.False(t, u.Inventory[2].Withdrawn)
	// выданные позиции — именно первые две по времени покупки
	assert.False(t, items[0].AcquiredAt.After(items[1].AcquiredAt))
}

func TestWithdrawNotEnough(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100, 1000)

	_, _, err := svc.Buy(ctx, 100, "proxy")
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, 100, "proxy", 2)
	assert.ErrorIs(t, err, common.ErrNotEnoughItems)

	_, err = svc.Withdraw(ctx, 100, "proxy", 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestUnwithdrawn(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100, 1000)

	_, _, err := svc.Buy(ctx, 100, "proxy")
	require.NoError(t, err)
	_, _, err = svc.Buy(ctx, 100, "proxy")
	require.NoError(t, err)
	_, _, err = svc.Buy(ctx, 100, "vpn_key")
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, 100, "proxy", 1)
	require.NoError(t, err)

	counts, err := svc.Unwithdrawn(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["proxy"])
	assert.Equal(t, 1, counts["vpn_key"])
}
