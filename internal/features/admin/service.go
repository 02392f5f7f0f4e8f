// Package admin — панель оператора: выдача и списание монет,
// статистика и рассылка. Доступ только одному пользователю.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"starsbot/internal/common"
	"starsbot/internal/store"
)

const (
	sessionLifetime = 24 * time.Hour
	maxAttempts     = 5
	attemptsWindow  = 15 * time.Minute
)

// Stats — агрегаты по всем пользователям.
type Stats struct {
	Users          int
	TotalBalance   int64
	TotalDeposited int64
	TotalSpent     int64
	TotalWon       int64
}

// Service — проверка прав, пароль и операции оператора.
type Service struct {
	store        store.Store
	operatorID   int64
	passwordHash string

	mu            sync.Mutex
	authedUntil   time.Time
	attempts      int
	attemptsReset time.Time

	broadcastMu   sync.Mutex
	broadcastStop chan struct{}
}

// NewService создаёт сервис админки.
func NewService(st store.Store, operatorID int64, passwordHash string) *Service {
	return &Service{store: st, operatorID: operatorID, passwordHash: passwordHash}
}

// IsOperator проверяет, что userID — оператор.
// Вызывается в каждом админ-обработчике заново.
func (s *Service) IsOperator(userID int64) bool {
	return userID == s.operatorID
}

// IsAuthed сообщает, действует ли парольная сессия оператора.
func (s *Service) IsAuthed(userID int64) bool {
	if !s.IsOperator(userID) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.authedUntil)
}

// Login проверяет пароль и открывает сессию на 24 часа.
// После пяти неверных попыток вход блокируется на 15 минут.
func (s *Service) Login(userID int64, password string) error {
	if !s.IsOperator(userID) {
		return common.ErrNotOperator
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.After(s.attemptsReset) {
		s.attempts = 0
		s.attemptsReset = now.Add(attemptsWindow)
	}
	if s.attempts >= maxAttempts {
		return common.ErrTooManyAttempts
	}

	ok, err := verifyArgon2id(password, s.passwordHash)
	if err != nil {
		log.WithError(err).Error("Некорректный хэш админ-пароля в конфигурации")
		return common.ErrWrongPassword
	}
	if !ok {
		s.attempts++
		return common.ErrWrongPassword
	}

	s.attempts = 0
	s.authedUntil = now.Add(sessionLifetime)
	log.WithField("user_id", userID).Info("Оператор вошёл в админку")
	return nil
}

// Logout закрывает парольную сессию.
func (s *Service) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authedUntil = time.Time{}
}

// Adjust выдаёт (amount > 0) или списывает (amount < 0) монеты пользователю.
// Служебная операция, счётчики пополнений и трат не трогает.
func (s *Service) Adjust(ctx context.Context, operatorID, targetID, amount int64) (int64, error) {
	if !s.IsOperator(operatorID) {
		return 0, common.ErrNotOperator
	}
	if amount == 0 {
		return 0, common.ErrInvalidAmount
	}
	if _, err := s.store.Get(ctx, targetID); err != nil {
		return 0, err
	}

	balance, err := s.store.ApplyDelta(ctx, targetID, amount, store.BucketNone)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"target": targetID,
		"amount": amount,
	}).Info("Ручная коррекция баланса")
	return balance, nil
}

// CollectStats собирает агрегаты по всем записям.
func (s *Service) CollectStats(ctx context.Context, operatorID int64) (*Stats, error) {
	if !s.IsOperator(operatorID) {
		return nil, common.ErrNotOperator
	}

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{Users: len(ids)}
	for _, id := range ids {
		u, err := s.store.Get(ctx, id)
		if err != nil {
			continue
		}
		st.TotalBalance += u.Balance
		st.TotalDeposited += u.TotalDeposited
		st.TotalSpent += u.TotalSpent
		st.TotalWon += u.TotalWon
	}
	return st, nil
}

// Broadcast рассылает текст всем пользователям в фоне.
// Одновременно идёт не больше одной рассылки. send вызывается
// для каждого получателя, пауза между отправками — pause.
func (s *Service) Broadcast(ctx context.Context, operatorID int64, text string,
	pause time.Duration, send func(userID int64, text string) error,
	done func(sent, failed int)) error {

	if !s.IsOperator(operatorID) {
		return common.ErrNotOperator
	}

	s.broadcastMu.Lock()
	if s.broadcastStop != nil {
		s.broadcastMu.Unlock()
		return common.ErrBroadcastRunning
	}
	stop := make(chan struct{})
	s.broadcastStop = stop
	s.broadcastMu.Unlock()

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		s.finishBroadcast()
		return err
	}

	go func() {
		defer s.finishBroadcast()

		sent, failed := 0, 0
		for _, id := range ids {
			select {
			case <-stop:
				log.Info("Рассылка остановлена оператором")
				done(sent, failed)
				return
			case <-ctx.Done():
				done(sent, failed)
				return
			default:
			}

			if err := send(id, text); err != nil {
				failed++
			} else {
				sent++
			}
			time.Sleep(pause)
		}

		log.WithFields(log.Fields{"sent": sent, "failed": failed}).Info("Рассылка завершена")
		done(sent, failed)
	}()

	return nil
}

// StopBroadcast останавливает идущую рассылку.
// Возвращает false, если рассылки нет.
func (s *Service) StopBroadcast(operatorID int64) bool {
	if !s.IsOperator(operatorID) {
		return false
	}
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()
	if s.broadcastStop == nil {
		return false
	}
	close(s.broadcastStop)
	s.broadcastStop = nil
	return true
}

func (s *Service) finishBroadcast() {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()
	s.broadcastStop = nil
}

// verifyArgon2id сверяет пароль с хэшем в формате
// $argon2id$v=19$m=...,t=...,p=...$<salt b64>$<hash b64>.
func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("неверный формат хэша")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("версия хэша: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("неподдерживаемая версия argon2: %d", version)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("параметры хэша: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("соль: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("хэш: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
