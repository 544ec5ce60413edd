package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"story-server/internal/domain"
	"story-server/internal/model"
)

// Compile-time check to ensure PgStoryCatalog implements StoryCatalog
var _ StoryCatalog = (*PgStoryCatalog)(nil)

// PgStoryCatalog - реализация каталога историй на PostgreSQL.
type PgStoryCatalog struct {
	pool *pgxpool.Pool
}

// NewPgStoryCatalog создает новый экземпляр каталога историй.
func NewPgStoryCatalog(pool *pgxpool.Pool) *PgStoryCatalog {
	return &PgStoryCatalog{pool: pool}
}

const storyColumns = `id, user_id, title, path, is_public, created_at`

// Add создает запись каталога. Вызывается ровно один раз на успешный прогон
// конвейера, после того как все файлы записаны.
func (r *PgStoryCatalog) Add(ctx context.Context, story model.Story) (uuid.UUID, error) {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO stories (id, user_id, title, path, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		story.ID, story.UserID, story.Title, story.Path, story.IsPublic, story.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("story path %q already catalogued: %w", story.Path, err)
		}
		return uuid.Nil, fmt.Errorf("failed to insert story: %w", err)
	}
	return id, nil
}

// GetByID возвращает запись каталога по ID.
func (r *PgStoryCatalog) GetByID(ctx context.Context, id uuid.UUID) (model.Story, error) {
	var story model.Story
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`
	if err := pgxscan.Get(ctx, r.pool, &story, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Story{}, domain.ErrStoryNotFound
		}
		return model.Story{}, fmt.Errorf("failed to get story by id: %w", err)
	}
	return story, nil
}

// GetByPath возвращает запись каталога по уникальному пути.
func (r *PgStoryCatalog) GetByPath(ctx context.Context, path string) (model.Story, error) {
	var story model.Story
	query := `SELECT ` + storyColumns + ` FROM stories WHERE path = $1`
	if err := pgxscan.Get(ctx, r.pool, &story, query, path); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Story{}, domain.ErrStoryNotFound
		}
		return model.Story{}, fmt.Errorf("failed to get story by path: %w", err)
	}
	return story, nil
}

// FindByTitleAndOwner возвращает ID самой свежей истории пользователя с таким
// заголовком. Уникальность заголовков не навязывается.
func (r *PgStoryCatalog) FindByTitleAndOwner(ctx context.Context, title string, ownerID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	query := `
		SELECT id FROM stories
		WHERE title = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.pool.QueryRow(ctx, query, title, ownerID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, domain.ErrStoryNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to find story by title: %w", err)
	}
	return id, nil
}

// SetVisibility переключает флаг публичности истории.
func (r *PgStoryCatalog) SetVisibility(ctx context.Context, id uuid.UUID, public bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stories SET is_public = $2 WHERE id = $1`, id, public)
	if err != nil {
		return fmt.Errorf("failed to update story visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

// ListPublic возвращает публичные истории, новые первыми. Границы страницы
// нормализует вызывающий слой (service.ListPublic).
func (r *PgStoryCatalog) ListPublic(ctx context.Context, limit, offset int) ([]model.Story, error) {
	var stories []model.Story
	query := `
		SELECT ` + storyColumns + ` FROM stories
		WHERE is_public
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	if err := pgxscan.Select(ctx, r.pool, &stories, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list public stories: %w", err)
	}
	return stories, nil
}

// ListByOwner возвращает все истории пользователя, новые первыми.
func (r *PgStoryCatalog) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Story, error) {
	var stories []model.Story
	query := `
		SELECT ` + storyColumns + ` FROM stories
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	if err := pgxscan.Select(ctx, r.pool, &stories, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list stories by owner: %w", err)
	}
	return stories, nil
}

// ListAll возвращает все записи каталога. Используется сверкой каталога и
// файлового хранилища.
func (r *PgStoryCatalog) ListAll(ctx context.Context) ([]model.Story, error) {
	var stories []model.Story
	query := `SELECT ` + storyColumns + ` FROM stories ORDER BY created_at`
	if err := pgxscan.Select(ctx, r.pool, &stories, query); err != nil {
		return nil, fmt.Errorf("failed to list all stories: %w", err)
	}
	return stories, nil
}

// Delete удаляет запись каталога.
func (r *PgStoryCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

// NextStoryIndex атомарно выделяет следующий индекс директории истории для
// пользователя. Счетчик в story_seq заменяет подсчет существующих директорий:
// два конкурентных вызова никогда не получат одинаковый индекс.
func (r *PgStoryCatalog) NextStoryIndex(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		INSERT INTO story_seq (user_id, next_index) VALUES ($1, 2)
		ON CONFLICT (user_id) DO UPDATE SET next_index = story_seq.next_index + 1
		RETURNING next_index - 1
	`
	var index int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&index); err != nil {
		return 0, fmt.Errorf("failed to allocate story index: %w", err)
	}
	return index, nil
}
