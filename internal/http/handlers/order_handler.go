package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// OrderHandler предоставляет HTTP слой жизненного цикла заказов.
type OrderHandler struct {
	orders      *service.OrderService
	attachments *storage.AttachmentStorage
}

// NewOrderHandler создаёт хэндлер.
func NewOrderHandler(orders *service.OrderService, attachments *storage.AttachmentStorage) *OrderHandler {
	return &OrderHandler{
		orders:      orders,
		attachments: attachments,
	}
}

// currentActor собирает инициатора операции из контекста запроса.
func currentActor(c *gin.Context) (service.Actor, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		return service.Actor{}, false
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Role: role}, true
}

// Create обрабатывает POST /api/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateRequirements(req.Requirements); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), userID, service.CreateOrderInput{
		ServiceID:    req.ServiceID,
		Requirements: req.Requirements,
	})
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// Get обрабатывает GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// List обрабатывает GET /api/orders.
func (h *OrderHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	limit, offset := common.GetPagination(c)
	result, err := h.orders.ListOrders(c.Request.Context(), actor, repository.ListFilterParams{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedOrdersResponse{
		Data: result.Orders,
		Pagination: dto.Pagination{
			Total:   result.Total,
			Limit:   result.Limit,
			Offset:  result.Offset,
			HasMore: result.HasMore,
		},
	})
}

// transition выполняет переход без дополнительного тела запроса.
func (h *OrderHandler) transition(c *gin.Context, fn func(ctx context.Context, actor service.Actor, orderID uuid.UUID) (*models.Order, error)) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Confirm обрабатывает POST /api/orders/:id/confirm.
func (h *OrderHandler) Confirm(c *gin.Context) {
	h.transition(c, h.orders.Confirm)
}

// Start обрабатывает POST /api/orders/:id/start.
func (h *OrderHandler) Start(c *gin.Context) {
	h.transition(c, h.orders.StartWork)
}

// Deliver обрабатывает POST /api/orders/:id/deliver.
func (h *OrderHandler) Deliver(c *gin.Context) {
	h.transition(c, h.orders.Deliver)
}

// Approve обрабатывает POST /api/orders/:id/approve.
func (h *OrderHandler) Approve(c *gin.Context) {
	h.transition(c, h.orders.Approve)
}

// CancelByBuyer обрабатывает POST /api/orders/:id/cancel/buyer.
func (h *OrderHandler) CancelByBuyer(c *gin.Context) {
	h.transition(c, h.orders.CancelByBuyer)
}

// RequestRevision обрабатывает POST /api/orders/:id/revision.
func (h *OrderHandler) RequestRevision(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.RequestRevision(c.Request.Context(), actor, id, req.Comment)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// CancelBySeller обрабатывает POST /api/orders/:id/cancel/seller.
func (h *OrderHandler) CancelBySeller(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateCancelReason(req.Reason); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.CancelBySeller(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// AddProgress обрабатывает POST /api/orders/:id/progress.
// Принимает multipart-форму с текстом отметки и опциональным вложением.
func (h *OrderHandler) AddProgress(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	note := c.PostForm("note")
	if err := validation.ValidateProgressNote(note); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	entry := &models.ProgressEntry{
		OrderID: id,
		Note:    note,
	}

	if fileHeader, err := c.FormFile("attachment"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			common.RespondBadRequest(c, "не удалось прочитать вложение")
			return
		}
		defer file.Close()

		path, mimeType, size, err := h.attachments.Save(c.Request.Context(), id, fileHeader.Filename, file)
		if err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}

		entry.AttachmentPath = &path
		entry.AttachmentType = &mimeType
		entry.AttachmentSize = &size
	}

	created, err := h.orders.AddProgress(c.Request.Context(), actor, entry)
	if err != nil {
		// Сохранённое вложение без записи в БД не оставляем
		if entry.AttachmentPath != nil {
			_ = h.attachments.Delete(c.Request.Context(), *entry.AttachmentPath)
		}
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListProgress обрабатывает GET /api/orders/:id/progress.
func (h *OrderHandler) ListProgress(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	entries, err := h.orders.ListProgress(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// ListAudit обрабатывает GET /api/orders/:id/audit.
func (h *OrderHandler) ListAudit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	events, err := h.orders.ListAudit(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetEscrow обрабатывает GET /api/orders/:id/escrow.
func (h *OrderHandler) GetEscrow(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	hold, err := h.orders.GetEscrow(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, hold)
}
