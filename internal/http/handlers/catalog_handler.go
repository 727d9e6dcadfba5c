package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// CatalogHandler предоставляет HTTP слой каталога услуг.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler создаёт хэндлер.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Create обрабатывает POST /api/services. Публиковать услуги может только продавец.
func (h *CatalogHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	role, err := common.CurrentUserRole(c)
	if err != nil || role != models.RoleSeller {
		common.RespondForbidden(c, "публиковать услуги может только продавец")
		return
	}

	var req dto.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	svc, err := h.catalog.CreateService(c.Request.Context(), userID, service.CreateServiceInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, svc)
}

// Get обрабатывает GET /api/services/:id.
func (h *CatalogHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	svc, err := h.catalog.GetService(c.Request.Context(), id)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}

// List обрабатывает GET /api/services.
func (h *CatalogHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	params := repository.ServiceFilterParams{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}

	if v := c.Query("price_min"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.PriceMin = &parsed
		}
	}
	if v := c.Query("price_max"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.PriceMax = &parsed
		}
	}

	services, total, err := h.catalog.ListServices(c.Request.Context(), params)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedServicesResponse{
		Data: services,
		Pagination: dto.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < total,
		},
	})
}

// SetActive обрабатывает PATCH /api/services/:id/active.
func (h *CatalogHandler) SetActive(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SetServiceActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.catalog.SetServiceActive(c.Request.Context(), id, userID, *req.IsActive); err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "услуга обновлена"})
}
