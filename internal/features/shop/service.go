package shop

import (
	"context"

	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/store"
)

// Service — покупка товаров и вывод из инвентаря.
type Service struct {
	store store.Store
}

// NewService создаёт сервис магазина.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Buy списывает цену и кладёт товар в инвентарь одной операцией.
// Возвращает купленную позицию и новый баланс.
func (s *Service) Buy(ctx context.Context, userID int64, label string) (Item, int64, error) {
	it, ok := FindItem(label)
	if !ok {
		return Item{}, 0, common.ErrItemNotFound
	}

	balance, err := s.store.Purchase(ctx, userID, it.Price, it.Label)
	if err != nil {
		return Item{}, 0, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"item":    it.Label,
		"price":   it.Price,
	}).Info("Покупка")

	return it, balance, nil
}

// Withdraw помечает count единиц товара выведенными, от старых к новым.
// Возвращает помеченные позиции для выдачи пользователю.
func (s *Service) Withdraw(ctx context.Context, userID int64, label string, count int) ([]store.InventoryItem, error) {
	if count <= 0 {
		return nil, common.ErrInvalidAmount
	}
	items, err := s.store.MarkWithdrawn(ctx, userID, label, count)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"item":    label,
		"count":   count,
	}).Info("Вывод из инвентаря")

	return items, nil
}

// Unwithdrawn возвращает число невыведенных единиц по каждой метке.
func (s *Service) Unwithdrawn(ctx context.Context, userID int64) (map[string]int, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for i := range u.Inventory {
		if !u.Inventory[i].Withdrawn {
			counts[u.Inventory[i].Label]++
		}
	}
	return counts, nil
}
