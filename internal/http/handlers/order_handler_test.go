package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// withUser подставляет аутентифицированного пользователя в контекст запроса.
func withUser(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Set(middleware.ContextRoleKey, role)
		c.Next()
	}
}

func TestOrderHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OrderHandler{}
	r.POST("/orders", handler.Create)

	req, _ := http.NewRequest("POST", "/orders", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderHandler_Get_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OrderHandler{}
	r.GET("/orders/:id", withUser(uuid.New(), models.RoleBuyer), middleware.UUIDValidator("id"), handler.Get)

	req, _ := http.NewRequest("GET", "/orders/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_Create_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OrderHandler{}
	r.POST("/orders", withUser(uuid.New(), models.RoleBuyer), handler.Create)

	req, _ := http.NewRequest("POST", "/orders", strings.NewReader(`{"service_id": "not-a-uuid"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_CancelBySeller_ReasonRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &OrderHandler{}
	r.POST("/orders/:id/cancel/seller", withUser(uuid.New(), models.RoleSeller), middleware.UUIDValidator("id"), handler.CancelBySeller)

	req, _ := http.NewRequest("POST", "/orders/"+uuid.NewString()+"/cancel/seller", strings.NewReader(`{"reason": ""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_Transitions_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &OrderHandler{}

	routes := map[string]gin.HandlerFunc{
		"/orders/:id/confirm": handler.Confirm,
		"/orders/:id/start":   handler.Start,
		"/orders/:id/deliver": handler.Deliver,
		"/orders/:id/approve": handler.Approve,
	}

	for path, fn := range routes {
		r := gin.New()
		r.POST(path, fn)

		url := strings.Replace(path, ":id", uuid.NewString(), 1)
		req, _ := http.NewRequest("POST", url, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}
