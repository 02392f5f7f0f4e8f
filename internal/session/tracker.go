// Package session отслеживает позицию пользователя в многошаговом диалоге.
// Состояние эфемерно: живёт в памяти процесса и теряется при рестарте.
package session

import (
	"sync"
	"time"
)

// Step — шаг диалога. Закрытое множество: новые шаги добавляются
// константой здесь, а не строкой по месту.
type Step string

const (
	StepIdle Step = ""

	// Пополнение
	StepDepositAmount Step = "awaiting_deposit_amount"

	// Магазин
	StepWithdrawQuantity Step = "awaiting_withdraw_quantity"

	// SMM-заказ
	StepOrderLink     Step = "awaiting_order_link"
	StepOrderQuantity Step = "awaiting_order_quantity"

	// Админка
	StepPassword      Step = "awaiting_password"
	StepAdminUserID   Step = "awaiting_admin_user_id"
	StepAdminAmount   Step = "awaiting_admin_amount"
	StepBroadcastText Step = "awaiting_broadcast_text"
)

// Scratch — частично собранные поля текущего диалога.
// Живут только до завершения или отмены шага.
type Scratch struct {
	Amount       int64  // введённая сумма
	ItemLabel    string // выбранный товар
	TargetUserID int64  // выбранный пользователь (админка)
	ServiceID    int64  // выбранная SMM-услуга
	Link         string // ссылка для SMM-заказа
	Mode         string // режим админ-операции: "give" / "take"
}

type entry struct {
	step      Step
	scratch   Scratch
	expiresAt time.Time
}

// Tracker хранит состояния диалогов всех чатов.
// Общий для процесса, защищён RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	ttl     time.Duration
}

// NewTracker создаёт трекер с заданным временем жизни шага.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Tracker{
		entries: make(map[int64]*entry),
		ttl:     ttl,
	}
}

// Begin входит в шаг с чистыми scratch-полями.
func (t *Tracker) Begin(userID int64, step Step, scratch Scratch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[userID] = &entry{
		step:      step,
		scratch:   scratch,
		expiresAt: time.Now().Add(t.ttl),
	}
}

// Step возвращает текущий шаг пользователя (StepIdle, если шага нет
// или он истёк). Истёкший шаг удаляется лениво при следующей записи.
func (t *Tracker) Step(userID int64) Step {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		return StepIdle
	}
	return e.step
}

// Scratch возвращает копию scratch-полей текущего шага.
func (t *Tracker) Scratch(userID int64) Scratch {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		return Scratch{}
	}
	return e.scratch
}

// Advance переводит пользователя на следующий шаг, сохраняя и дополняя
// scratch-поля. Таймер шага растягивается заново.
func (t *Tracker) Advance(userID int64, step Step, mutate func(*Scratch)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		e = &entry{}
		t.entries[userID] = e
	}
	if mutate != nil {
		mutate(&e.scratch)
	}
	e.step = step
	e.expiresAt = time.Now().Add(t.ttl)
}

// Clear безусловно сбрасывает состояние диалога.
// Вызывается при завершении, отмене и по ключевому слову отмены.
func (t *Tracker) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
}

// Sweep удаляет истёкшие состояния. Вызывается фоновой задачей.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range t.entries {
		if now.After(e.expiresAt) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}
