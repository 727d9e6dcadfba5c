package dto

import "github.com/google/uuid"

// RegisterRequest представляет запрос регистрации.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginRequest представляет запрос входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest представляет запрос обновления токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateServiceRequest представляет запрос публикации услуги.
type CreateServiceRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required"`
}

// SetServiceActiveRequest включает или выключает услугу в каталоге.
type SetServiceActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// CreateOrderRequest представляет запрос создания черновика заказа.
type CreateOrderRequest struct {
	ServiceID    uuid.UUID `json:"service_id" binding:"required"`
	Requirements *string   `json:"requirements"`
}

// RevisionRequest представляет запрос на доработку.
type RevisionRequest struct {
	Comment string `json:"comment"`
}

// CancelRequest представляет запрос отмены заказа продавцом.
type CancelRequest struct {
	Reason string `json:"reason"`
}
