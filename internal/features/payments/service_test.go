package payments

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsbot/internal/common"
	"starsbot/internal/config"
	"starsbot/internal/store"
	"starsbot/internal/store/jsonfile"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	fs, err := jsonfile.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	cfg := &config.Config{DepositMin: 8, DepositMax: 10000}
	return NewService(fs, cfg), fs
}

func seedUser(t *testing.T, st store.Store, userID int64) {
	t.Helper()
	_, _, err := st.GetOrCreate(context.Background(), userID, store.Profile{FirstName: "Test"})
	require.NoError(t, err)
}

func TestCreateDepositBounds(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	_, err := svc.CreateDeposit(ctx, 100, 7)
	assert.ErrorIs(t, err, common.ErrDepositTooSmall)

	_, err = svc.CreateDeposit(ctx, 100, 10001)
	assert.ErrorIs(t, err, common.ErrDepositTooLarge)

	_, err = svc.CreateDeposit(ctx, 100, 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	o, err := svc.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), o.Amount)
	assert.Equal(t, store.OrderCreated, o.Status)
	assert.Contains(t, o.ID, "dep_100_")
}

func TestValidatePreCheckout(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	o, err := svc.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, o.ID))

	// корректный запрос проходит
	assert.NoError(t, svc.ValidatePreCheckout(ctx, o.ID, 50))

	// несуществующий payload отклоняется
	err = svc.ValidatePreCheckout(ctx, "dep_100_000", 50)
	assert.ErrorIs(t, err, common.ErrOrderNotFound)

	// расхождение суммы отклоняется
	err = svc.ValidatePreCheckout(ctx, o.ID, 49)
	assert.ErrorIs(t, err, common.ErrAmountMismatch)
}

func TestValidatePreCheckoutTerminalStates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	paid, err := svc.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	_, _, err = svc.Confirm(ctx, paid.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ValidatePreCheckout(ctx, paid.ID, 50), common.ErrOrderAlreadyPaid)

	cancelled, err := svc.CreateDeposit(ctx, 100, 60)
	require.NoError(t, err)
	require.NoError(t, st.CancelOrder(ctx, cancelled.ID))
	assert.ErrorIs(t, svc.ValidatePreCheckout(ctx, cancelled.ID, 60), common.ErrOrderCancelled)
}

func TestConfirmCreditsOnce(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, 100)

	o, err := svc.CreateDeposit(ctx, 100, 50)
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, o.ID))

	confirmed, credited, err := svc.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, store.OrderPaid, confirmed.Status)

	// повторная доставка того же события: без второго начисления
	_, credited, err = svc.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, credited)

	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.Balance)
	assert.Equal(t, int64(50), u.TotalDeposited)
}
