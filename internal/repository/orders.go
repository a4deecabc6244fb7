package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
)

const orderColumns = `id::text, username, platform, rank_name, price::text, proof_path,
	status, notes, created_at, processed_at, processed_by`

// DefaultOrderLimit ограничивает размер страницы списка заказов.
const DefaultOrderLimit = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o        model.Order
		id       string
		platform string
		price    string
		status   string
	)

	err := row.Scan(
		&id, &o.Username, &platform, &o.RankName, &price, &o.ProofPath,
		&status, &o.Notes, &o.CreatedAt, &o.ProcessedAt, &o.ProcessedBy,
	)
	if err != nil {
		return nil, err
	}

	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse order price: %w", err)
	}
	o.Platform = model.Platform(platform)
	o.Status = model.OrderStatus(status)

	return &o, nil
}

// CreateOrder сохраняет новый заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO orders (id, username, platform, rank_name, price, proof_path, status, created_at)
			 VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			o.ID.String(), o.Username, string(o.Platform), o.RankName, o.Price.String(),
			o.ProofPath, string(o.Status), o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1::uuid`,
		id.String(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает заказы по фильтру, начиная с самых новых.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultOrderLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1::text = '' OR status = $1::text)
		   AND ($2::text = '' OR username ILIKE '%' || $2::text || '%')
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		string(f.Status), likeEscaper.Replace(f.Query), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus меняет статус заказа и фиксирует сотрудника, выполнившего действие.
// Пустой notes сохраняет прежние заметки.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes *string, staffID int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders
		 SET status = $2, notes = COALESCE($3, notes), processed_at = now(), processed_by = $4
		 WHERE id = $1::uuid
		 RETURNING `+orderColumns,
		id.String(), string(status), notes, staffID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}

// OrderStats возвращает количество заказов в каждом статусе.
func (r *PostgresRepository) OrderStats(ctx context.Context) (model.OrderStats, error) {
	var stats model.OrderStats

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("select order stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan order stats: %w", err)
		}

		switch model.OrderStatus(status) {
		case model.OrderStatusPending:
			stats.Pending = count
		case model.OrderStatusCompleted:
			stats.Completed = count
		case model.OrderStatusRejected:
			stats.Rejected = count
		}
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}
