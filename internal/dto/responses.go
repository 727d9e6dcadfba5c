package dto

import (
	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// AuthResponse представляет ответ на регистрацию или вход.
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// PaginatedOrdersResponse представляет страницу списка заказов.
type PaginatedOrdersResponse struct {
	Data       []models.Order `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// PaginatedServicesResponse представляет страницу каталога услуг.
type PaginatedServicesResponse struct {
	Data       []models.Service `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination содержит метаданные пагинации.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ErrorResponse представляет стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse представляет стандартный успешный ответ.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
