package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
)

// GetSetting возвращает значение настройки магазина.
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (*model.StoreSetting, error) {
	var s model.StoreSetting
	err := r.pool.QueryRow(ctx,
		`SELECT key, value, updated_at FROM store_settings WHERE key = $1`,
		key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &s, nil
}

// UpsertSetting создаёт или перезаписывает настройку магазина.
func (r *PostgresRepository) UpsertSetting(ctx context.Context, key, value string) (*model.StoreSetting, error) {
	var s model.StoreSetting
	err := r.pool.QueryRow(ctx,
		`INSERT INTO store_settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		 RETURNING key, value, updated_at`,
		key, value,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert setting: %w", err)
	}
	return &s, nil
}
