// Package store определяет модель данных бота и контракт хранилища.
// models.go описывает запись пользователя, инвентарь и заказы на оплату.
package store

import "time"

// UserRecord — персистентная запись пользователя.
// Создаётся лениво при первом обращении, никогда не удаляется.
type UserRecord struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`

	// Баланс в монетах. Никогда не уходит в минус:
	// списание, которое сделало бы его отрицательным, отклоняется.
	Balance int64 `json:"balance"`

	// Накопительные счётчики. Монотонно неубывающие.
	TotalDeposited int64 `json:"total_deposited"`
	TotalSpent     int64 `json:"total_spent"`
	TotalWon       int64 `json:"total_won"`

	// Инвентарь: append-only, кроме флага Withdrawn,
	// который выставляется ровно один раз на запись.
	Inventory []InventoryItem `json:"inventory,omitempty"`

	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnwithdrawnCount возвращает число невыданных предметов с данной меткой.
func (u *UserRecord) UnwithdrawnCount(label string) int {
	n := 0
	for i := range u.Inventory {
		if u.Inventory[i].Label == label && !u.Inventory[i].Withdrawn {
			n++
		}
	}
	return n
}

// InventoryItem — одна позиция инвентаря.
type InventoryItem struct {
	Label      string    `json:"label"`
	AcquiredAt time.Time `json:"acquired_at"`
	Withdrawn  bool      `json:"withdrawn"`
}

// Profile — метаданные профиля из Telegram.
// Обновляются при каждом контакте (username может меняться).
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// OrderStatus — статус заказа на оплату.
//
// Машина состояний заказа:
//
//	created → awaiting_payment → paid       (терминальное)
//	created → cancelled                     (терминальное)
//	awaiting_payment → cancelled            (терминальное, по TTL)
//
// Других переходов нет. Повторное подтверждение оплаты
// уже оплаченного заказа — no-op, не двойное начисление.
type OrderStatus string

const (
	OrderCreated         OrderStatus = "created"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderCancelled       OrderStatus = "cancelled"
)

// Order — заказ на пополнение через Telegram Stars.
// ID совпадает с invoice payload: dep_<user_id>_<unix_nano>.
type Order struct {
	ID          string      `json:"id"`
	UserID      int64       `json:"user_id"`
	Amount      int64       `json:"amount"` // в звёздах; начисляется 1:1 в монеты
	Description string      `json:"description"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
}

// StatBucket указывает, какой накопительный счётчик обновить
// вместе с изменением баланса.
type StatBucket string

const (
	// BucketNone — изменить только баланс (админские корректировки).
	BucketNone StatBucket = ""
	// BucketDeposited — пополнение: растёт total_deposited.
	BucketDeposited StatBucket = "deposited"
	// BucketSpent — трата: растёт total_spent.
	BucketSpent StatBucket = "spent"
	// BucketWon — выигрыш: растёт total_won.
	BucketWon StatBucket = "won"
)
