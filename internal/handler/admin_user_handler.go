package handler

import (
	"net/http"
	"time"

	"ecorder/internal/config"
	"ecorder/internal/middleware"
	"ecorder/internal/repository"
	"ecorder/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /admin/discounts と /admin/users/:id/discounts
type AdminUserHandler struct {
	uc *usecase.DiscountUsecase
}

func NewAdminUserHandler(uc *usecase.DiscountUsecase) *AdminUserHandler {
	return &AdminUserHandler{uc: uc}
}

type DiscountCreateRequest struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Type        string          `json:"type"`
	ValidFrom   *time.Time      `json:"valid_from"`
	ValidTo     *time.Time      `json:"valid_to"`
}

type DiscountGrantRequest struct {
	DiscountID int64 `json:"discount_id"`
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(cfg),
		middleware.ActiveUserGuard(userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.POST("/discounts", h.CreateDiscount)
	admin.POST("/users/:id/discounts", h.GrantDiscount)
}

func (h *AdminUserHandler) CreateDiscount(c echo.Context) error {
	var req DiscountCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	d, err := h.uc.AdminCreateDiscount(c.Request().Context(), adminID, usecase.CreateDiscountInput{
		Code:        req.Code,
		Description: req.Description,
		Value:       req.Value,
		Type:        req.Type,
		ValidFrom:   req.ValidFrom,
		ValidTo:     req.ValidTo,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *AdminUserHandler) GrantDiscount(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	var req DiscountGrantRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	ud, err := h.uc.AdminGrantDiscount(c.Request().Context(), adminID, userID, req.DiscountID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ud)
}
