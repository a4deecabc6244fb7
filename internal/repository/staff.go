package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
)

// CreateStaff добавляет сотрудника в список допуска.
func (r *PostgresRepository) CreateStaff(ctx context.Context, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO staff (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrStaffExists, email)
		}
		return 0, fmt.Errorf("create staff: %w", err)
	}
	return id, nil
}

// GetStaffByEmail возвращает сотрудника по адресу почты.
func (r *PostgresRepository) GetStaffByEmail(ctx context.Context, email string) (*model.Staff, error) {
	return r.getStaff(ctx, `SELECT id, email, password_hash, created_at FROM staff WHERE email = $1`, email)
}

// GetStaffByID возвращает сотрудника по идентификатору.
func (r *PostgresRepository) GetStaffByID(ctx context.Context, id int64) (*model.Staff, error) {
	return r.getStaff(ctx, `SELECT id, email, password_hash, created_at FROM staff WHERE id = $1`, id)
}

func (r *PostgresRepository) getStaff(ctx context.Context, query string, arg any) (*model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, query, arg).Scan(&s.ID, &s.Email, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return &s, nil
}
