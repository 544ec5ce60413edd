package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"story-server/internal/domain"
	"story-server/internal/model"
)

// Compile-time check to ensure PgUserRepository implements UserRepository
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository представляет репозиторий для работы с пользователями
type PgUserRepository struct {
	pool *pgxpool.Pool
}

// NewPgUserRepository создает новый экземпляр репозитория пользователей
func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

// Create создает нового пользователя в базе данных
func (r *PgUserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, password_hash, created_at
	`

	row := r.pool.QueryRow(ctx, query, user.ID, user.Username, user.Password, time.Now())

	var created model.User
	if err := row.Scan(&created.ID, &created.Username, &created.Password, &created.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.User{}, domain.ErrUserAlreadyExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// GetByID получает пользователя по ID
func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`

	var user model.User
	row := r.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, domain.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// GetByUsername получает пользователя по имени
func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	query := `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`

	var user model.User
	row := r.pool.QueryRow(ctx, query, username)
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, domain.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// Delete удаляет пользователя. Записи каталога остаются "осиротевшими" до
// явного прохода сверки (см. service.Maintenance).
func (r *PgUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
