package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"story-server/internal/model"
)

// StoryCatalog определяет методы для взаимодействия с каталогом историй.
// Каталог хранит только метаданные; источником правды для сгенерированных
// файлов является файловое хранилище.
type StoryCatalog interface {
	// Add создает запись каталога. ID доступен сразу после вставки.
	Add(ctx context.Context, story model.Story) (uuid.UUID, error)
	// GetByID возвращает запись по ID. Отсутствие -> domain.ErrStoryNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (model.Story, error)
	// GetByPath возвращает запись по уникальному пути в файловом хранилище.
	GetByPath(ctx context.Context, path string) (model.Story, error)
	// FindByTitleAndOwner возвращает ID последней истории с этим заголовком.
	FindByTitleAndOwner(ctx context.Context, title string, ownerID uuid.UUID) (uuid.UUID, error)
	// SetVisibility переключает флаг публичности.
	SetVisibility(ctx context.Context, id uuid.UUID, public bool) error
	// ListPublic возвращает публичные истории.
	ListPublic(ctx context.Context, limit, offset int) ([]model.Story, error)
	// ListByOwner возвращает все истории пользователя.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Story, error)
	// ListAll возвращает все записи каталога (для сверки с хранилищем).
	ListAll(ctx context.Context) ([]model.Story, error)
	// Delete удаляет запись каталога.
	Delete(ctx context.Context, id uuid.UUID) error
	// NextStoryIndex атомарно выделяет следующий индекс директории истории
	// для пользователя.
	NextStoryIndex(ctx context.Context, userID uuid.UUID) (int, error)
}

// UserRepository определяет методы для работы с пользователями.
type UserRepository interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TokenStore хранит выданные access-токены; удаление записи отзывает токен.
type TokenStore interface {
	Set(ctx context.Context, tokenUUID string, userID uuid.UUID, ttl time.Duration) error
	Get(ctx context.Context, tokenUUID string) (uuid.UUID, error)
	Delete(ctx context.Context, tokenUUID string) error
}
