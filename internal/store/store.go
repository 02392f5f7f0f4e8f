// store.go — контракт хранилища записей и заказов.
// Реализации: jsonfile (снапшот на диске) и postgres (pgx).
package store

import (
	"context"
	"time"
)

// Store — единая точка доступа к персистентным данным бота.
//
// Каждый метод атомарен относительно конкурентных вызовов для одного
// user id: реализация обязана сериализовать read-modify-write
// (мьютекс у файлового бэкенда, блокировки строк у postgres).
// Мутация долговечна к моменту возврата без ошибки — обработчик
// не сообщает пользователю об успехе раньше, чем данные на диске.
type Store interface {
	// GetOrCreate возвращает запись пользователя, создавая её при первом
	// обращении (баланс 0). Второе возвращаемое значение — true, если
	// запись только что создана. Метаданные профиля обновляются.
	GetOrCreate(ctx context.Context, userID int64, p Profile) (*UserRecord, bool, error)

	// Get возвращает копию записи или ErrUserNotFound.
	Get(ctx context.Context, userID int64) (*UserRecord, error)

	// ApplyDelta изменяет баланс на delta (может быть отрицательной)
	// и двигает соответствующий счётчик: total_deposited и total_won
	// растут при зачислении, total_spent — при списании; движение в
	// обратную сторону (возврат списанного) счётчик уменьшает.
	// Списание, делающее баланс отрицательным, отклоняется с
	// ErrInsufficientBalance, баланс не меняется.
	// Возвращает новый баланс.
	ApplyDelta(ctx context.Context, userID int64, delta int64, bucket StatBucket) (int64, error)

	// AppendInventory добавляет предмет в инвентарь.
	AppendInventory(ctx context.Context, userID int64, label string) error

	// Purchase атомарно списывает price (total_spent) и добавляет предмет.
	// Либо происходит и то и другое, либо ничего.
	Purchase(ctx context.Context, userID int64, price int64, label string) (int64, error)

	// MarkWithdrawn помечает выданными ровно count невыданных предметов
	// с данной меткой, начиная с самых старых. Если невыданных меньше,
	// чем count — ErrNotEnoughItems и ни один предмет не помечается.
	// Возвращает помеченные записи.
	MarkWithdrawn(ctx context.Context, userID int64, label string, count int) ([]InventoryItem, error)

	// ListUserIDs возвращает все известные user id (для рассылки).
	ListUserIDs(ctx context.Context) ([]int64, error)

	// CreateOrder сохраняет новый заказ в статусе created.
	CreateOrder(ctx context.Context, o *Order) error

	// GetOrder возвращает заказ или ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (*Order, error)

	// MarkOrderAwaiting переводит заказ created → awaiting_payment
	// (инвойс отправлен пользователю).
	MarkOrderAwaiting(ctx context.Context, id string) error

	// MarkOrderPaid атомарно помечает заказ оплаченным И начисляет
	// сумму на баланс пользователя (total_deposited). Если заказ уже
	// оплачен — no-op, credited=false. Частичное применение (начисление
	// без пометки или наоборот) невозможно наблюдать снаружи.
	MarkOrderPaid(ctx context.Context, id string) (o *Order, credited bool, err error)

	// CancelOrder переводит неоплаченный заказ в cancelled.
	// Оплаченный заказ отменить нельзя — ErrOrderAlreadyPaid.
	CancelOrder(ctx context.Context, id string) error

	// PruneOrders отменяет и удаляет неоплаченные заказы, созданные
	// раньше cutoff. Возвращает число удалённых.
	PruneOrders(ctx context.Context, cutoff time.Time) (int, error)

	// PaidTotals возвращает сумму оплаченных заказов по каждому
	// пользователю (для сверки с total_deposited).
	PaidTotals(ctx context.Context) (map[int64]int64, error)

	Close() error
}
