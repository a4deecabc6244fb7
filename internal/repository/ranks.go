package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
)

const rankColumns = `id, name, price::text, color, image_url, description,
	discount_percent, discount_expires_at, created_at, updated_at`

func scanRank(row pgx.Row) (*model.Rank, error) {
	var (
		rk    model.Rank
		price string
	)

	err := row.Scan(
		&rk.ID, &rk.Name, &price, &rk.Color, &rk.ImageURL, &rk.Description,
		&rk.DiscountPercent, &rk.DiscountExpiresAt, &rk.CreatedAt, &rk.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rk.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse rank price: %w", err)
	}

	return &rk, nil
}

// ListRanks возвращает все ранги, упорядоченные по цене.
func (r *PostgresRepository) ListRanks(ctx context.Context) ([]model.Rank, error) {
	var ranks []model.Rank

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+rankColumns+` FROM ranks ORDER BY price, name`,
		)
		if err != nil {
			return fmt.Errorf("select ranks: %w", err)
		}
		defer rows.Close()

		ranks = ranks[:0]
		for rows.Next() {
			rk, err := scanRank(rows)
			if err != nil {
				return fmt.Errorf("scan rank: %w", err)
			}
			ranks = append(ranks, *rk)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ranks, nil
}

// GetRankByName возвращает ранг по названию.
func (r *PostgresRepository) GetRankByName(ctx context.Context, name string) (*model.Rank, error) {
	rk, err := scanRank(r.pool.QueryRow(ctx,
		`SELECT `+rankColumns+` FROM ranks WHERE name = $1`,
		name,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("get rank: %w", err)
	}
	return rk, nil
}

// GetRankByID возвращает ранг по идентификатору.
func (r *PostgresRepository) GetRankByID(ctx context.Context, id int64) (*model.Rank, error) {
	rk, err := scanRank(r.pool.QueryRow(ctx,
		`SELECT `+rankColumns+` FROM ranks WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("get rank: %w", err)
	}
	return rk, nil
}

// CreateRank создаёт новый ранг.
func (r *PostgresRepository) CreateRank(ctx context.Context, rk model.Rank) (*model.Rank, error) {
	created, err := scanRank(r.pool.QueryRow(ctx,
		`INSERT INTO ranks (name, price, color, image_url, description, discount_percent, discount_expires_at)
		 VALUES ($1, $2::numeric, $3, $4, $5, $6, $7)
		 RETURNING `+rankColumns,
		rk.Name, rk.Price.String(), rk.Color, rk.ImageURL, rk.Description, rk.DiscountPercent, rk.DiscountExpiresAt,
	))
	if err != nil {
		return nil, mapRankError(err, rk.Name, "create rank")
	}
	return created, nil
}

// UpdateRank обновляет все редактируемые поля ранга.
func (r *PostgresRepository) UpdateRank(ctx context.Context, rk model.Rank) (*model.Rank, error) {
	updated, err := scanRank(r.pool.QueryRow(ctx,
		`UPDATE ranks
		 SET name = $2, price = $3::numeric, color = $4, image_url = $5, description = $6,
		     discount_percent = $7, discount_expires_at = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING `+rankColumns,
		rk.ID, rk.Name, rk.Price.String(), rk.Color, rk.ImageURL, rk.Description, rk.DiscountPercent, rk.DiscountExpiresAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, mapRankError(err, rk.Name, "update rank")
	}
	return updated, nil
}

func mapRankError(err error, name, op string) error {
	switch pgErrorCode(err) {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", ErrRankExists, name)
	case pgerrcode.CheckViolation:
		return fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// SetRankImage обновляет ссылку на изображение ранга.
func (r *PostgresRepository) SetRankImage(ctx context.Context, id int64, imageURL string) (*model.Rank, error) {
	rk, err := scanRank(r.pool.QueryRow(ctx,
		`UPDATE ranks SET image_url = $2, updated_at = now() WHERE id = $1 RETURNING `+rankColumns,
		id, imageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("set rank image: %w", err)
	}
	return rk, nil
}

// DeleteRank удаляет ранг. Уже оформленные заказы сохраняют название ранга.
func (r *PostgresRepository) DeleteRank(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ranks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rank: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRankNotFound
	}
	return nil
}

// ApplyGlobalDiscount применяет скидку ко всем рангам одной хранимой процедурой.
// Возвращает количество изменённых рангов.
func (r *PostgresRepository) ApplyGlobalDiscount(ctx context.Context, percent int, expiresAt *time.Time) (int64, error) {
	var affected int64
	err := r.pool.QueryRow(ctx,
		`SELECT apply_global_discount($1, $2)`,
		percent, expiresAt,
	).Scan(&affected)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.CheckViolation {
			return 0, fmt.Errorf("%w: %d", ErrInvalidDiscount, percent)
		}
		return 0, fmt.Errorf("apply global discount: %w", err)
	}
	return affected, nil
}
