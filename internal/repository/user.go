package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

const userColumns = `id, display_name, balance, wins, losses, last_active, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	db DBTX
}

var _ store.UserStore = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row scanner) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.DisplayName,
		&user.Balance,
		&user.Wins,
		&user.Losses,
		&user.LastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user with the given starting balance.
// Returns store.ErrConflict if the user already exists.
func (r *UserRepository) Create(ctx context.Context, id int64, displayName string, balance int64) (*model.User, error) {
	const query = `
		INSERT INTO users (id, display_name, balance, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, displayName, balance))
	if err != nil {
		return nil, wrapErr("create user", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
// Returns store.ErrNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Touch records activity and refreshes the display name when one is given.
func (r *UserRepository) Touch(ctx context.Context, id int64, displayName string) error {
	const query = `
		UPDATE users
		SET display_name = CASE WHEN $2::TEXT = '' THEN display_name ELSE $2::TEXT END,
		    last_active = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, displayName)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateBalance adds delta (which may be negative) to the balance.
// A delta that would take the balance below zero returns store.ErrInsufficientBalance.
func (r *UserRepository) UpdateBalance(ctx context.Context, id int64, delta int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, delta))
	if err != nil {
		return nil, wrapErr("update balance", err)
	}
	return user, nil
}

// Debit subtracts amount if and only if the balance covers it.
// The check and the subtraction are one statement, so concurrent debits
// can never overdraw the account.
func (r *UserRepository) Debit(ctx context.Context, id int64, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, amount))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapErr("debit balance", err)
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrInsufficientBalance
}

// ApplyResult credits a settlement payout and bumps the win or loss counter.
func (r *UserRepository) ApplyResult(ctx context.Context, id int64, credit int64, won bool) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2,
		    wins = wins + CASE WHEN $3::BOOLEAN THEN 1 ELSE 0 END,
		    losses = losses + CASE WHEN $3::BOOLEAN THEN 0 ELSE 1 END,
		    last_active = NOW(),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, credit, won))
	if err != nil {
		return nil, wrapErr("apply result", err)
	}
	return user, nil
}

// SetBalance sets a user's balance to an exact value.
// Used for admin resets.
func (r *UserRepository) SetBalance(ctx context.Context, id int64, balance int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, balance))
	if err != nil {
		return nil, wrapErr("set balance", err)
	}
	return user, nil
}

// TopByBalance retrieves the top N users by balance.
func (r *UserRepository) TopByBalance(ctx context.Context, limit int) ([]*model.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY balance DESC, id ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// ActiveSince returns the IDs of users active at or after since.
func (r *UserRepository) ActiveSince(ctx context.Context, since time.Time) ([]int64, error) {
	const query = `SELECT id FROM users WHERE last_active >= $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan active users: %w", err)
	}
	return ids, nil
}

// Exists checks if a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}
