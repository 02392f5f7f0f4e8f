// Package jsonfile реализует Store поверх JSON-снапшота на диске.
// Вся таблица сериализуется целиком при каждой мутации: таблица мала,
// и простота здесь важнее пропускной способности.
//
// Запись идёт через временный файл с последующим rename — при падении
// посреди записи на диске остаётся либо старый, либо новый снапшот,
// но никогда не обрезанный.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"starsbot/internal/common"
	"starsbot/internal/store"
)

// snapshot — содержимое файла данных целиком.
type snapshot struct {
	Version   int                         `json:"version"`
	Users     map[int64]*store.UserRecord `json:"users"`
	Orders    map[string]*store.Order     `json:"orders"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// FileStore — файловая реализация store.Store.
//
// Один мьютекс сериализует все мутации. Этого достаточно для корректности
// per-user операций (и строже): двойной тап по кнопке не потеряет
// обновление. Блокировка держится только на время мутации и записи файла,
// длительные операции (рассылка) её не захватывают.
type FileStore struct {
	mu   sync.RWMutex
	path string
	snap *snapshot
}

// Open загружает снапшот из файла (или создаёт пустой) и возвращает стор.
func Open(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог данных: %w", err)
	}

	fs := &FileStore{path: path}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		now := time.Now()
		fs.snap = &snapshot{
			Version:   1,
			Users:     map[int64]*store.UserRecord{},
			Orders:    map[string]*store.Order{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return fs.flushLocked()
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл данных: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("повреждён файл данных %s: %w", fs.path, err)
	}
	if snap.Users == nil {
		snap.Users = map[int64]*store.UserRecord{}
	}
	if snap.Orders == nil {
		snap.Orders = map[string]*store.Order{}
	}
	fs.snap = &snap

	log.WithFields(log.Fields{
		"users":  len(snap.Users),
		"orders": len(snap.Orders),
		"path":   fs.path,
	}).Info("Снапшот загружен")
	return nil
}

// flushLocked пишет снапшот на диск. Вызывается под fs.mu.
// temp-файл + rename: замена атомарна на уровне файловой системы.
func (fs *FileStore) flushLocked() error {
	fs.snap.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(fs.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации снапшота: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".starsbot-*.tmp")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи снапшота: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка замены файла данных: %w", err)
	}
	return nil
}

// withWrite выполняет мутацию под блокировкой и сбрасывает снапшот на диск.
// Если fn вернула ошибку — файл не трогаем.
func (fs *FileStore) withWrite(ctx context.Context, fn func(*snapshot) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(fs.snap); err != nil {
		return err
	}
	return fs.flushLocked()
}

// GetOrCreate возвращает запись пользователя, создавая её при первом контакте.
func (fs *FileStore) GetOrCreate(ctx context.Context, userID int64, p store.Profile) (*store.UserRecord, bool, error) {
	var out *store.UserRecord
	var created bool

	err := fs.withWrite(ctx, func(s *snapshot) error {
		u, ok := s.Users[userID]
		if !ok {
			now := time.Now()
			u = &store.UserRecord{
				UserID:    userID,
				JoinedAt:  now,
				UpdatedAt: now,
			}
			s.Users[userID] = u
			created = true
		}
		// Метаданные профиля освежаем при каждом контакте
		u.Username = p.Username
		u.FirstName = p.FirstName
		u.LastName = p.LastName
		u.UpdatedAt = time.Now()

		cp := copyRecord(u)
		out = cp
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// Get возвращает копию записи пользователя.
func (fs *FileStore) Get(ctx context.Context, userID int64) (*store.UserRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	u, ok := fs.snap.Users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return copyRecord(u), nil
}

// ApplyDelta изменяет баланс и накопительный счётчик атомарно.
func (fs *FileStore) ApplyDelta(ctx context.Context, userID int64, delta int64, bucket store.StatBucket) (int64, error) {
	var newBalance int64
	err := fs.withWrite(ctx, func(s *snapshot) error {
		u, ok := s.Users[userID]
		if !ok {
			return common.ErrUserNotFound
		}
		nb, err := applyDeltaRecord(u, delta, bucket)
		if err != nil {
			return err
		}
		newBalance = nb
		return nil
	})
	return newBalance, err
}

// AppendInventory добавляет предмет в инвентарь пользователя.
func (fs *FileStore) AppendInventory(ctx context.Context, userID int64, label string) error {
	return fs.withWrite(ctx, func(s *snapshot) error {
		u, ok := s.Users[userID]
		if !ok {
			return common.ErrUserNotFound
		}
		appendItemRecord(u, label)
		return nil
	})
}

// Purchase списывает цену и добавляет предмет одной мутацией.
func (fs *FileStore) Purchase(ctx context.Context, userID int64, price int64, label string) (int64, error) {
	var newBalance int64
	err := fs.withWrite(ctx, func(s *snapshot) error {
		u, ok := s.Users[userID]
		if !ok {
			return common.ErrUserNotFound
		}
		nb, err := applyDeltaRecord(u, -price, store.BucketSpent)
		if err != nil {
			return err
		}
		appendItemRecord(u, label)
		newBalance = nb
		return nil
	})
	return newBalance, err
}

// MarkWithdrawn помечает count самых старых невыданных предметов метки label.
func (fs *FileStore) MarkWithdrawn(ctx context.Context, userID int64, label string, count int) ([]store.InventoryItem, error) {
	if count <= 0 {
		return nil, common.ErrInvalidAmount
	}

	var withdrawn []store.InventoryItem
	err := fs.withWrite(ctx, func(s *snapshot) error {
		u, ok := s.Users[userID]
		if !ok {
			return common.ErrUserNotFound
		}
		if u.UnwithdrawnCount(label) < count {
			return common.ErrNotEnoughItems
		}

		// Инвентарь append-only, поэтому обход по порядку = oldest-first
		marked := 0
		for i := range u.Inventory {
			if marked == count {
				break
			}
			if u.Inventory[i].Label == label && !u.Inventory[i].Withdrawn {
				u.Inventory[i].Withdrawn = true
				withdrawn = append(withdrawn, u.Inventory[i])
				marked++
			}
		}
		u.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// ListUserIDs возвращает все user id в стабильном порядке.
func (fs *FileStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	ids := make([]int64, 0, len(fs.snap.Users))
	for id := range fs.snap.Users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CreateOrder сохраняет заказ в статусе created.
func (fs *FileStore) CreateOrder(ctx context.Context, o *store.Order) error {
	return fs.withWrite(ctx, func(s *snapshot) error {
		if _, exists := s.Orders[o.ID]; exists {
			return fmt.Errorf("заказ %s уже существует", o.ID)
		}
		cp := *o
		cp.Status = store.OrderCreated
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		s.Orders[cp.ID] = &cp
		return nil
	})
}

// GetOrder возвращает копию заказа.
func (fs *FileStore) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	o, ok := fs.snap.Orders[id]
	if !ok {
		return nil, common.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// MarkOrderAwaiting переводит заказ created → awaiting_payment.
func (fs *FileStore) MarkOrderAwaiting(ctx context.Context, id string) error {
	return fs.withWrite(ctx, func(s *snapshot) error {
		o, ok := s.Orders[id]
		if !ok {
			return common.ErrOrderNotFound
		}
		switch o.Status {
		case store.OrderCreated:
			o.Status = store.OrderAwaitingPayment
			return nil
		case store.OrderAwaitingPayment:
			return nil // повторная отправка инвойса — не ошибка
		case store.OrderPaid:
			return common.ErrOrderAlreadyPaid
		default:
			return common.ErrOrderCancelled
		}
	})
}

// MarkOrderPaid помечает заказ оплаченным и начисляет монеты одной мутацией.
// Повторный вызов для уже оплаченного заказа — no-op (credited=false).
func (fs *FileStore) MarkOrderPaid(ctx context.Context, id string) (*store.Order, bool, error) {
	var out *store.Order
	var credited bool

	err := fs.withWrite(ctx, func(s *snapshot) error {
		o, ok := s.Orders[id]
		if !ok {
			return common.ErrOrderNotFound
		}
		if o.Status == store.OrderPaid {
			cp := *o
			out = &cp
			return nil
		}
		if o.Status == store.OrderCancelled {
			return common.ErrOrderCancelled
		}

		u, ok := s.Users[o.UserID]
		if !ok {
			return common.ErrUserNotFound
		}
		if _, err := applyDeltaRecord(u, o.Amount, store.BucketDeposited); err != nil {
			return err
		}

		now := time.Now()
		o.Status = store.OrderPaid
		o.PaidAt = &now
		credited = true

		cp := *o
		out = &cp
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, credited, nil
}

// CancelOrder переводит неоплаченный заказ в cancelled.
func (fs *FileStore) CancelOrder(ctx context.Context, id string) error {
	return fs.withWrite(ctx, func(s *snapshot) error {
		o, ok := s.Orders[id]
		if !ok {
			return common.ErrOrderNotFound
		}
		switch o.Status {
		case store.OrderPaid:
			return common.ErrOrderAlreadyPaid
		case store.OrderCancelled:
			return nil
		default:
			o.Status = store.OrderCancelled
			return nil
		}
	})
}

// PruneOrders удаляет неоплаченные заказы старше cutoff.
func (fs *FileStore) PruneOrders(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := fs.withWrite(ctx, func(s *snapshot) error {
		for id, o := range s.Orders {
			if o.Status != store.OrderPaid && o.CreatedAt.Before(cutoff) {
				delete(s.Orders, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// PaidTotals суммирует оплаченные заказы по пользователям.
func (fs *FileStore) PaidTotals(ctx context.Context) (map[int64]int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	totals := make(map[int64]int64)
	for _, o := range fs.snap.Orders {
		if o.Status == store.OrderPaid {
			totals[o.UserID] += o.Amount
		}
	}
	return totals, nil
}

// Close ничего не держит открытым: каждый flush самодостаточен.
func (fs *FileStore) Close() error {
	return nil
}

// --- внутренние помощники (выполняются под fs.mu) ---

func applyDeltaRecord(u *store.UserRecord, delta int64, bucket store.StatBucket) (int64, error) {
	next := u.Balance + delta
	if next < 0 {
		return 0, common.ErrInsufficientBalance
	}
	u.Balance = next

	switch bucket {
	case store.BucketDeposited:
		u.TotalDeposited += delta
	case store.BucketSpent:
		u.TotalSpent -= delta
	case store.BucketWon:
		u.TotalWon += delta
	}
	u.UpdatedAt = time.Now()
	return next, nil
}

func appendItemRecord(u *store.UserRecord, label string) {
	u.Inventory = append(u.Inventory, store.InventoryItem{
		Label:      label,
		AcquiredAt: time.Now(),
	})
	u.UpdatedAt = time.Now()
}

func copyRecord(u *store.UserRecord) *store.UserRecord {
	cp := *u
	if len(u.Inventory) > 0 {
		cp.Inventory = make([]store.InventoryItem, len(u.Inventory))
		copy(cp.Inventory, u.Inventory)
	}
	return &cp
}
