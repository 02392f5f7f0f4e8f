package casino

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

// fixedRoll отдаёт заранее заданную последовательность бросков.
func fixedRoll(rolls ...int) RollFunc {
	i := 0
	return func() int {
		r := rolls[i%len(rolls)]
		i++
		return r
	}
}

func newTestService(t *testing.T, roll RollFunc) (*Service, store.Store) {
	t.Helper()
	fs, err := jsonfile.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	return NewService(fs, roll, 94, 98, 500), fs
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

func TestMultiplierTable(t *testing.T) {
	tests := []struct {
		sum      int
		expected int64
	}{
		{12, 8},
		{11, 4},
		{10, 2},
		{2, 4},
		{3, 1},
		{7, 1},
		{4, 0},
		{5, 0},
		{6, 0},
		{8, 0},
		{9, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, multiplier(tt.sum, TierNormal), "sum=%d", tt.sum)
	}
}

func TestMultiplierTiers(t *testing.T) {
	// boost: появляется выплата на 9, старшие множители растут
	assert.Equal(t, int64(2), multiplier(9, TierBoost))
	assert.Equal(t, int64(9), multiplier(12, TierBoost))

	// cut: выплаты на 10 и 3 пропадают
	assert.Equal(t, int64(0), multiplier(10, TierCut))
	assert.Equal(t, int64(0), multiplier(3, TierCut))
	assert.Equal(t, int64(8), multiplier(12, TierCut))
}

func TestPlayWin(t *testing.T) {
	svc, st := newTestService(t, fixedRoll(6, 6))
	ctx := context.Background()
	seedUser(t, st, 100, 100)

	res, err := svc.Play(ctx, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Sum)
	assert.Equal(t, int64(80), res.Payout)
	assert.Equal(t, int64(170), res.Balance)

	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.TotalSpent)
	assert.Equal(t, int64(80), u.TotalWon)
}

func TestPlayLoss(t *testing.T) {
	svc, st := newTestService(t, fixedRoll(2, 3))
	ctx := context.Background()
	seedUser(t, st, 100, 100)

	res, err := svc.Play(ctx, 100, 30)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Sum)
	assert.Zero(t, res.Payout)
	assert.Equal(t, int64(70), res.Balance)
}

func TestPlayRefund(t *testing.T) {
	svc, st := newTestService(t, fixedRoll(3, 4))
	ctx := context.Background()
	seedUser(t, st, 100, 100)

	res, err := svc.Play(ctx, 100, 25)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Sum)
	assert.Equal(t, int64(25), res.Payout)
	assert.Equal(t, int64(100), res.Balance)
}

func TestPlayInsufficientBalance(t *testing.T) {
	svc, st := newTestService(t, fixedRoll(6, 6))
	ctx := context.Background()
	seedUser(t, st, 100, 20)

	_, err := svc.Play(ctx, 100, 21)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// раунд не состоялся, баланс не тронут
	u, err := st.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.Balance)
	assert.Zero(t, u.TotalSpent)
}

func TestPlayInvalidBet(t *testing.T) {
	svc, st := newTestService(t, fixedRoll(1, 1))
	seedUser(t, st, 100, 100)

	_, err := svc.Play(context.Background(), 100, 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Play(context.Background(), 100, -5)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestTierAdapts(t *testing.T) {
	// сплошные проигрыши: после 500 поставленных монет RTP = 0 → boost
	svc, st := newTestService(t, fixedRoll(2, 3))
	ctx := context.Background()
	seedUser(t, st, 100, 10000)

	for i := 0; i < 5; i++ {
		_, err := svc.Play(ctx, 100, 100)
		require.NoError(t, err)
	}
	assert.Equal(t, TierBoost, svc.tierFor(100))

	// новый игрок без истории играет в обычном режиме
	seedUser(t, st, 200, 100)
	assert.Equal(t, TierNormal, svc.tierFor(200))
}

func TestIsBigWin(t *testing.T) {
	svc, _ := newTestService(t, nil)

	assert.False(t, svc.IsBigWin(499))
	assert.True(t, svc.IsBigWin(500))
	assert.True(t, svc.IsBigWin(5000))
}
