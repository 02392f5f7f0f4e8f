// store.go — реализация контракта store.Store поверх pgxpool.
// Все денежные операции выполняются в транзакциях БД с блокировкой
// строки пользователя (FOR UPDATE) для целостности данных.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"starsbot/internal/common"
	"starsbot/internal/store"
)

// PgStore — реализация store.Store на PostgreSQL.
type PgStore struct {
	db *pgxpool.Pool
}

// New создаёт стор поверх готового пула.
func New(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// GetOrCreate возвращает запись пользователя, создавая её при первом контакте.
func (p *PgStore) GetOrCreate(ctx context.Context, userID int64, prof store.Profile) (*store.UserRecord, bool, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// INSERT … ON CONFLICT: создание и освежение профиля одним запросом.
	// xmax = 0 — признак того, что строка была только что вставлена.
	var created bool
	err = tx.QueryRow(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = $2, first_name = $3, last_name = $4, updated_at = NOW()
		RETURNING (xmax = 0)
	`, userID, nullIfEmpty(prof.Username), prof.FirstName, nullIfEmpty(prof.LastName)).Scan(&created)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	u, err := scanUser(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return u, created, nil
}

// Get возвращает запись пользователя с инвентарём.
func (p *PgStore) Get(ctx context.Context, userID int64) (*store.UserRecord, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := scanUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return u, tx.Commit(ctx)
}

// ApplyDelta изменяет баланс с блокировкой строки.
func (p *PgStore) ApplyDelta(ctx context.Context, userID int64, delta int64, bucket store.StatBucket) (int64, error) {
	var newBalance int64
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		nb, err := applyDeltaTx(ctx, tx, userID, delta, bucket)
		if err != nil {
			return err
		}
		newBalance = nb
		return nil
	})
	return newBalance, err
}

// AppendInventory добавляет предмет в инвентарь.
func (p *PgStore) AppendInventory(ctx context.Context, userID int64, label string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO inventory (user_id, label) VALUES ($1, $2)
	`, userID, label)
	if err != nil {
		return fmt.Errorf("ошибка добавления предмета: %w", err)
	}
	return nil
}

// Purchase списывает цену и добавляет предмет в одной транзакции.
func (p *PgStore) Purchase(ctx context.Context, userID int64, price int64, label string) (int64, error) {
	var newBalance int64
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		nb, err := applyDeltaTx(ctx, tx, userID, -price, store.BucketSpent)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory (user_id, label) VALUES ($1, $2)
		`, userID, label); err != nil {
			return fmt.Errorf("ошибка добавления предмета: %w", err)
		}
		newBalance = nb
		return nil
	})
	return newBalance, err
}

// MarkWithdrawn помечает count самых старых невыданных предметов.
func (p *PgStore) MarkWithdrawn(ctx context.Context, userID int64, label string, count int) ([]store.InventoryItem, error) {
	if count <= 0 {
		return nil, common.ErrInvalidAmount
	}

	var out []store.InventoryItem
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		// Блокируем кандидатов, oldest-first.
		rows, err := tx.Query(ctx, `
			SELECT id, label, acquired_at
			FROM inventory
			WHERE user_id = $1 AND label = $2 AND NOT withdrawn
			ORDER BY acquired_at, id
			FOR UPDATE
		`, userID, label)
		if err != nil {
			return fmt.Errorf("ошибка выборки инвентаря: %w", err)
		}

		type row struct {
			id         int64
			label      string
			acquiredAt time.Time
		}
		var candidates []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.label, &r.acquiredAt); err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(candidates) < count {
			return common.ErrNotEnoughItems
		}

		for _, c := range candidates[:count] {
			if _, err := tx.Exec(ctx, `
				UPDATE inventory SET withdrawn = TRUE WHERE id = $1
			`, c.id); err != nil {
				return fmt.Errorf("ошибка пометки предмета: %w", err)
			}
			out = append(out, store.InventoryItem{
				Label:      c.label,
				AcquiredAt: c.acquiredAt,
				Withdrawn:  true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListUserIDs возвращает все user id.
func (p *PgStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.db.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateOrder сохраняет заказ в статусе created.
func (p *PgStore) CreateOrder(ctx context.Context, o *store.Order) error {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO orders (id, user_id, amount, description, status, created_at)
		VALUES ($1, $2, $3, $4, 'created', $5)
	`, o.ID, o.UserID, o.Amount, o.Description, createdAt)
	if err != nil {
		return fmt.Errorf("ошибка создания заказа: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (p *PgStore) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	var o store.Order
	err := p.db.QueryRow(ctx, `
		SELECT id, user_id, amount, description, status, created_at, paid_at
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.UserID, &o.Amount, &o.Description, &o.Status, &o.CreatedAt, &o.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заказа: %w", err)
	}
	return &o, nil
}

// MarkOrderAwaiting переводит заказ created → awaiting_payment.
func (p *PgStore) MarkOrderAwaiting(ctx context.Context, id string) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		status, err := lockOrderStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		switch status {
		case store.OrderCreated:
			_, err := tx.Exec(ctx, `UPDATE orders SET status = 'awaiting_payment' WHERE id = $1`, id)
			return err
		case store.OrderAwaitingPayment:
			return nil
		case store.OrderPaid:
			return common.ErrOrderAlreadyPaid
		default:
			return common.ErrOrderCancelled
		}
	})
}

// MarkOrderPaid помечает заказ оплаченным и начисляет монеты атомарно.
func (p *PgStore) MarkOrderPaid(ctx context.Context, id string) (*store.Order, bool, error) {
	var credited bool
	err := p.inTx(ctx, func(tx pgx.Tx) error {
		status, err := lockOrderStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		switch status {
		case store.OrderPaid:
			return nil // идемпотентность: уже оплачен
		case store.OrderCancelled:
			return common.ErrOrderCancelled
		}

		var userID, amount int64
		if err := tx.QueryRow(ctx,
			`SELECT user_id, amount FROM orders WHERE id = $1`, id,
		).Scan(&userID, &amount); err != nil {
			return err
		}

		if _, err := applyDeltaTx(ctx, tx, userID, amount, store.BucketDeposited); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = 'paid', paid_at = NOW() WHERE id = $1`, id,
		); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	o, err := p.GetOrder(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return o, credited, nil
}

// CancelOrder переводит неоплаченный заказ в cancelled.
func (p *PgStore) CancelOrder(ctx context.Context, id string) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		status, err := lockOrderStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		switch status {
		case store.OrderPaid:
			return common.ErrOrderAlreadyPaid
		case store.OrderCancelled:
			return nil
		default:
			_, err := tx.Exec(ctx, `UPDATE orders SET status = 'cancelled' WHERE id = $1`, id)
			return err
		}
	})
}

// PruneOrders удаляет неоплаченные заказы старше cutoff.
func (p *PgStore) PruneOrders(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := p.db.Exec(ctx, `
		DELETE FROM orders WHERE status <> 'paid' AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки заказов: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PaidTotals суммирует оплаченные заказы по пользователям.
func (p *PgStore) PaidTotals(ctx context.Context) (map[int64]int64, error) {
	rows, err := p.db.Query(ctx, `
		SELECT user_id, COALESCE(SUM(amount), 0)
		FROM orders WHERE status = 'paid'
		GROUP BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[int64]int64)
	for rows.Next() {
		var id, sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		totals[id] = sum
	}
	return totals, rows.Err()
}

// Close закрывает пул соединений.
func (p *PgStore) Close() error {
	p.db.Close()
	return nil
}

// --- внутренние помощники ---

func (p *PgStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// applyDeltaTx изменяет баланс внутри открытой транзакции.
// Строка пользователя блокируется FOR UPDATE на время проверки и записи.
func applyDeltaTx(ctx context.Context, tx pgx.Tx, userID, delta int64, bucket store.StatBucket) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	next := balance + delta
	if next < 0 {
		return 0, common.ErrInsufficientBalance
	}

	// total_spent растёт при списании, остальные счётчики при зачислении
	bump := delta
	column := ""
	switch bucket {
	case store.BucketDeposited:
		column = "total_deposited"
	case store.BucketSpent:
		column = "total_spent"
		bump = -delta
	case store.BucketWon:
		column = "total_won"
	}

	query := `UPDATE users SET balance = $2, updated_at = NOW() WHERE user_id = $1`
	if column != "" {
		query = fmt.Sprintf(
			`UPDATE users SET balance = $2, %s = %s + $3, updated_at = NOW() WHERE user_id = $1`,
			column, column,
		)
		_, err = tx.Exec(ctx, query, userID, next, bump)
	} else {
		_, err = tx.Exec(ctx, query, userID, next)
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления баланса: %w", err)
	}
	return next, nil
}

func lockOrderStatus(ctx context.Context, tx pgx.Tx, id string) (store.OrderStatus, error) {
	var status store.OrderStatus
	err := tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", common.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("ошибка получения заказа: %w", err)
	}
	return status, nil
}

func scanUser(ctx context.Context, tx pgx.Tx, userID int64) (*store.UserRecord, error) {
	var u store.UserRecord
	var username, lastName *string
	err := tx.QueryRow(ctx, `
		SELECT user_id, username, first_name, last_name,
		       balance, total_deposited, total_spent, total_won,
		       joined_at, updated_at
		FROM users WHERE user_id = $1
	`, userID).Scan(
		&u.UserID, &username, &u.FirstName, &lastName,
		&u.Balance, &u.TotalDeposited, &u.TotalSpent, &u.TotalWon,
		&u.JoinedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if username != nil {
		u.Username = *username
	}
	if lastName != nil {
		u.LastName = *lastName
	}

	rows, err := tx.Query(ctx, `
		SELECT label, acquired_at, withdrawn
		FROM inventory WHERE user_id = $1
		ORDER BY acquired_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item store.InventoryItem
		if err := rows.Scan(&item.Label, &item.AcquiredAt, &item.Withdrawn); err != nil {
			return nil, err
		}
		u.Inventory = append(u.Inventory, item)
	}
	return &u, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
