package handler

import (
	"context"
	"net/http"

	"ecorder/internal/config"
	"ecorder/internal/domain/model"
	"ecorder/internal/middleware"
	"ecorder/internal/repository"
	"ecorder/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /admin/orders と /admin/returns
type AdminOrderHandler struct {
	uc      *usecase.AdminOrderUsecase
	returns *usecase.ReturnUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase, returns *usecase.ReturnUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc, returns: returns}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type PaymentRequest struct {
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaymentDate   string          `json:"payment_date"`
}

type ShipmentRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	ShipmentDate   string `json:"shipment_date"`
}

type ReturnListResponse struct {
	Items []usecase.ReturnOutput `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}

type AuditLogListResponse struct {
	Items []model.AuditLog `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.ActiveUserGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.POST("/orders/:id/payments", h.recordPayment)
	admin.POST("/orders/:id/shipments", h.recordShipment)

	admin.GET("/returns", h.listReturns)
	admin.POST("/returns/:id/approve", h.approveReturn)
	admin.POST("/returns/:id/reject", h.rejectReturn)
	admin.POST("/returns/:id/refund", h.refundReturn)

	admin.GET("/audit-logs", h.listAuditLogs)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	userID, ok := queryInt64Ptr(c, "user_id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	from, err := usecase.ParseDateTimeRFC3339(c.QueryParam("from"))
	if err != nil {
		return writeError(c, err)
	}
	to, err := usecase.ParseDateTimeRFC3339(c.QueryParam("to"))
	if err != nil {
		return writeError(c, err)
	}

	items, total, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
		From:   from,
		To:     to,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, OrderListResponse{Items: items, Total: total, Page: page, Limit: limit})
}

func (h *AdminOrderHandler) listAuditLogs(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	resourceID, ok := queryInt64Ptr(c, "resource_id")
	if !ok {
		return badRequest(c, "invalid resource_id")
	}
	from, err := usecase.ParseDateTimeRFC3339(c.QueryParam("from"))
	if err != nil {
		return writeError(c, err)
	}
	to, err := usecase.ParseDateTimeRFC3339(c.QueryParam("to"))
	if err != nil {
		return writeError(c, err)
	}

	logs, err := h.uc.ListAuditLogs(c.Request().Context(), usecase.AuditLogQuery{
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   resourceID,
		Action:       c.QueryParam("action"),
		From:         from,
		To:           to,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AuditLogListResponse{Items: logs, Page: page, Limit: limit})
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	//操作した管理者IDを取得（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.UpdateStatus(
		c.Request().Context(),
		adminID,
		orderID,
		usecase.AdminUpdateOrderStatusInput{Status: req.Status},
	); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminOrderHandler) recordPayment(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	paidAt, err := usecase.ParseDateTimeRFC3339(req.PaymentDate)
	if err != nil {
		return writeError(c, err)
	}
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	p, err := h.uc.RecordPayment(c.Request().Context(), adminID, orderID, usecase.RecordPaymentInput{
		Method:        req.PaymentMethod,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		PaidAt:        paidAt,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *AdminOrderHandler) recordShipment(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req ShipmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	shippedAt, err := usecase.ParseDateTimeRFC3339(req.ShipmentDate)
	if err != nil {
		return writeError(c, err)
	}
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	sh, err := h.uc.RecordShipment(c.Request().Context(), adminID, orderID, usecase.RecordShipmentInput{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		ShippedAt:      shippedAt,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sh)
}

func (h *AdminOrderHandler) listReturns(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	items, total, err := h.returns.AdminList(c.Request().Context(), c.QueryParam("status"), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ReturnListResponse{Items: items, Total: total, Page: page, Limit: limit})
}

func (h *AdminOrderHandler) approveReturn(c echo.Context) error {
	return h.returnAction(c, h.returns.Approve, "approved")
}

func (h *AdminOrderHandler) rejectReturn(c echo.Context) error {
	return h.returnAction(c, h.returns.Reject, "rejected")
}

func (h *AdminOrderHandler) refundReturn(c echo.Context) error {
	return h.returnAction(c, h.returns.MarkRefunded, "refunded")
}

func (h *AdminOrderHandler) returnAction(
	c echo.Context,
	action func(ctx context.Context, adminUserID int64, returnID int64) error,
	message string,
) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := action(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: message})
}
