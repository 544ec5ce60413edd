package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User представляет модель пользователя в системе
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password_hash"` // Не возвращаем пароль в JSON
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RegisterRequest содержит данные для создания пользователя
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest содержит данные для входа пользователя
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse содержит токен аутентификации и данные пользователя
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Claims - полезная нагрузка access-токена.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	TokenUUID string    `json:"token_uuid"`
	jwt.RegisteredClaims
}

// Identity описывает аутентифицированного инициатора запроса. Nil-указатель
// означает анонимный запрос.
type Identity struct {
	UserID   uuid.UUID
	Username string
}
