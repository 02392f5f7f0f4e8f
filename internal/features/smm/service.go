package smm

import (
	"context"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/store"
)

const catalogTTL = 10 * time.Minute

// Service — каталог услуг с кэшем и размещение заказов за монеты.
type Service struct {
	store  store.Store
	client *Client
	markup float64

	mu        sync.Mutex
	catalog   []APIService
	fetchedAt time.Time
}

// NewService создаёт SMM-сервис. client == nil означает, что панель
// не настроена и все операции возвращают ErrSMMDisabled.
func NewService(st store.Store, client *Client, markup float64) *Service {
	if markup < 1 {
		markup = 1
	}
	return &Service{store: st, client: client, markup: markup}
}

// Enabled сообщает, настроена ли панель.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Catalog возвращает каталог услуг, освежая кэш не чаще раза в 10 минут.
// При недоступной панели отдаётся устаревший кэш, если он есть.
func (s *Service) Catalog(ctx context.Context) ([]APIService, error) {
	if s.client == nil {
		return nil, common.ErrSMMDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil && time.Since(s.fetchedAt) < catalogTTL {
		return s.catalog, nil
	}

	services, err := s.client.Services(ctx)
	if err != nil {
		if s.catalog != nil {
			log.WithError(err).Warn("Панель недоступна, отдаём кэш каталога")
			return s.catalog, nil
		}
		return nil, err
	}

	s.catalog = services
	s.fetchedAt = time.Now()
	return services, nil
}

// ProviderBalance возвращает остаток на счёте панели (для оператора).
func (s *Service) ProviderBalance(ctx context.Context) (string, string, error) {
	if s.client == nil {
		return "", "", common.ErrSMMDisabled
	}
	return s.client.Balance(ctx)
}

// FindService ищет услугу каталога по номеру.
func (s *Service) FindService(ctx context.Context, serviceID int64) (*APIService, error) {
	services, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range services {
		if services[i].ID == serviceID {
			return &services[i], nil
		}
	}
	return nil, common.ErrItemNotFound
}

// Price считает цену заказа в монетах: ставка панели за 1000 единиц
// с наценкой, округление вверх, минимум одна монета.
func (s *Service) Price(svc *APIService, quantity int64) (int64, error) {
	rate, err := svc.RatePer1000()
	if err != nil {
		return 0, common.ErrSMMUnavailable
	}
	price := int64(math.Ceil(rate * float64(quantity) / 1000 * s.markup))
	if price < 1 {
		price = 1
	}
	return price, nil
}

// Order размещает заказ: списывает монеты, затем обращается к панели.
// Если панель отклонила заказ, списанное возвращается.
func (s *Service) Order(ctx context.Context, userID int64, serviceID int64, link string, quantity int64) (int64, int64, error) {
	if s.client == nil {
		return 0, 0, common.ErrSMMDisabled
	}

	svc, err := s.FindService(ctx, serviceID)
	if err != nil {
		return 0, 0, err
	}
	if quantity < svc.Min || quantity > svc.Max {
		return 0, 0, common.ErrInvalidAmount
	}

	price, err := s.Price(svc, quantity)
	if err != nil {
		return 0, 0, err
	}

	if _, err := s.store.ApplyDelta(ctx, userID, -price, store.BucketSpent); err != nil {
		return 0, 0, err
	}

	orderID, err := s.client.Add(ctx, serviceID, link, quantity)
	if err != nil {
		// панель отказала: возвращаем списанное, счётчик трат откатывается
		if _, rerr := s.store.ApplyDelta(ctx, userID, price, store.BucketSpent); rerr != nil {
			log.WithError(rerr).WithFields(log.Fields{
				"user_id": userID,
				"price":   price,
			}).Error("Не удалось вернуть монеты за отклонённый SMM-заказ")
		}
		return 0, 0, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"service":  serviceID,
		"quantity": quantity,
		"price":    price,
		"panel_id": orderID,
	}).Info("SMM-заказ размещён")

	return orderID, price, nil
}
