// Package casino — игра в две кости со ставкой монетами.
package casino

import (
	"context"
	"math/rand"
	"sync"

	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/store"
)

// RollFunc бросает одну кость (1..6). Подменяется в тестах.
type RollFunc func() int

func defaultRoll() int {
	return rand.Intn(6) + 1
}

// Tier — режим выплат. Выбирается по фактическому RTP игрока,
// чтобы удерживать его в заданном коридоре.
type Tier int

const (
	TierNormal Tier = iota
	TierBoost       // RTP ниже коридора, выплаты щедрее
	TierCut         // RTP выше коридора, выплаты скромнее
)

// multiplier возвращает множитель выплаты для суммы двух костей.
// Сумма 7 — возврат ставки. Обычный режим даёт RTP около 94%.
func multiplier(sum int, tier Tier) int64 {
	base := map[int]int64{
		12: 8,
		11: 4,
		10: 2,
		2:  4,
		3:  1,
		7:  1,
	}
	m := base[sum]
	switch tier {
	case TierBoost:
		if sum == 9 {
			return 2
		}
		if m > 1 {
			m++
		}
	case TierCut:
		if sum == 10 || sum == 3 {
			return 0
		}
	}
	return m
}

type playerStats struct {
	wagered int64
	won     int64
}

// Service — ставки, выплаты и адаптивные режимы.
type Service struct {
	store  store.Store
	roll   RollFunc
	minRTP float64
	maxRTP float64
	bigWin int64

	mu    sync.Mutex
	stats map[int64]*playerStats
}

// Result — итог одного раунда.
type Result struct {
	Die1, Die2 int
	Sum        int
	Bet        int64
	Payout     int64
	Balance    int64
	Tier       Tier
}

// NewService создаёт сервис казино. roll == nil — честный бросок.
func NewService(st store.Store, roll RollFunc, minRTP, maxRTP float64, bigWin int64) *Service {
	if roll == nil {
		roll = defaultRoll
	}
	return &Service{
		store:  st,
		roll:   roll,
		minRTP: minRTP,
		maxRTP: maxRTP,
		bigWin: bigWin,
		stats:  make(map[int64]*playerStats),
	}
}

// tierFor выбирает режим выплат по накопленному RTP игрока.
// Пока сыграно меньше 500 монет, режим всегда обычный.
func (s *Service) tierFor(userID int64) Tier {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.stats[userID]
	if !ok || p.wagered < 500 {
		return TierNormal
	}
	rtp := float64(p.won) / float64(p.wagered) * 100
	switch {
	case rtp < s.minRTP:
		return TierBoost
	case rtp > s.maxRTP:
		return TierCut
	default:
		return TierNormal
	}
}

func (s *Service) record(userID, bet, payout int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.stats[userID]
	if !ok {
		p = &playerStats{}
		s.stats[userID] = p
	}
	p.wagered += bet
	p.won += payout
}

// Play проводит раунд: списывает ставку, бросает кости, начисляет выигрыш.
// Ставка списывается до броска, при недостатке монет раунд не начинается.
func (s *Service) Play(ctx context.Context, userID, bet int64) (*Result, error) {
	if bet <= 0 {
		return nil, common.ErrInvalidAmount
	}

	balance, err := s.store.ApplyDelta(ctx, userID, -bet, store.BucketSpent)
	if err != nil {
		return nil, err
	}

	tier := s.tierFor(userID)
	d1, d2 := s.roll(), s.roll()
	sum := d1 + d2
	payout := bet * multiplier(sum, tier)

	if payout > 0 {
		balance, err = s.store.ApplyDelta(ctx, userID, payout, store.BucketWon)
		if err != nil {
			// ставка уже списана, выигрыш не зачислился: логируем на разбор
			log.WithError(err).WithFields(log.Fields{
				"user_id": userID,
				"payout":  payout,
			}).Error("Не удалось зачислить выигрыш")
			return nil, err
		}
	}

	s.record(userID, bet, payout)

	log.WithFields(log.Fields{
		"user_id": userID,
		"bet":     bet,
		"dice":    sum,
		"payout":  payout,
		"tier":    tier,
	}).Info("Раунд казино")

	return &Result{
		Die1: d1, Die2: d2, Sum: sum,
		Bet: bet, Payout: payout, Balance: balance,
		Tier: tier,
	}, nil
}

// IsBigWin сообщает, надо ли уведомить оператора о выплате.
func (s *Service) IsBigWin(payout int64) bool {
	return s.bigWin > 0 && payout >= s.bigWin
}
