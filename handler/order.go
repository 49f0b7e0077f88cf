package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/infra/logger"
	"github.com/coursehub/paygate/infra/response"
	"github.com/coursehub/paygate/order"
)

// OrderServiceInterface defines the interface for order operations
type OrderServiceInterface interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.CreateResult, error)
	AttachSourceToken(ctx context.Context, driver, externalID string) (*order.AttachResult, error)
	GetStatus(ctx context.Context, driver, externalID string) (*order.StatusResult, error)
}

// OrderHandler handles order related HTTP requests
type OrderHandler struct {
	orderService  OrderServiceInterface
	validate      *validator.Validate
	defaultDriver string
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService OrderServiceInterface, validate *validator.Validate, defaultDriver string) *OrderHandler {
	return &OrderHandler{
		orderService:  orderService,
		validate:      validate,
		defaultDriver: defaultDriver,
	}
}

// CreateOrderRequest is the inbound payload for opening an order
type CreateOrderRequest struct {
	Driver      string `json:"driver"`
	TypeRid     string `json:"typeRid" validate:"omitempty,oneof=Order_SMS Order_DMS Order_REC DMSN3D OCT"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=500"`
}

// CreateOrder handles order creation requests
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	if req.Driver == "" {
		req.Driver = h.defaultDriver
	}
	if req.TypeRid == "" {
		req.TypeRid = string(gateway.TypePurchase)
	}

	result, err := h.orderService.Create(ctx, order.CreateRequest{
		Driver:      req.Driver,
		TypeRid:     gateway.OrderTypeRid(req.TypeRid),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusCreated, "Order created", map[string]any{
		"orderId": result.Order.ExternalID,
		"driver":  result.Order.Driver,
		"typeRid": result.Order.TypeRid,
		"amount":  result.Order.Amount,
		"status":  result.Order.Status,
		"formUrl": result.FormURL,
	})
}

// GetOrderStatus handles order status requests
func (h *OrderHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	driver := r.URL.Query().Get("driver")
	if driver == "" {
		driver = h.defaultDriver
	}

	result, err := h.orderService.GetStatus(ctx, driver, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Order status retrieved", map[string]any{
		"orderId": result.Order.ExternalID,
		"driver":  result.Order.Driver,
		"status":  string(result.Status),
		"paid":    result.Paid,
		"remote":  result.Remote,
	})
}

// AttachSourceToken handles requests to bind the stored payment instrument
// to an order
func (h *OrderHandler) AttachSourceToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	driver := r.URL.Query().Get("driver")
	if driver == "" {
		driver = h.defaultDriver
	}

	result, err := h.orderService.AttachSourceToken(ctx, driver, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Source token attached", map[string]any{
		"orderId": result.Order.ExternalID,
		"driver":  result.Order.Driver,
		"status":  result.Order.Status,
		"order":   result.Response.Order,
		"token":   result.Response.Token,
	})
}

// writeError maps service errors to caller-facing responses. Internal
// details and transport causes stay in the log.
func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ge, ok := gateway.AsError(err); ok {
		switch ge.Kind {
		case gateway.KindTransportFailure:
			response.Error(w, ge.HTTPStatus(), string(ge.Kind), errors.New("payment gateway unreachable"))
		case gateway.KindConfiguration:
			response.Error(w, ge.HTTPStatus(), string(ge.Kind), errors.New("payment driver configuration error"))
		default:
			response.Error(w, ge.HTTPStatus(), string(ge.Kind), errors.New(ge.Description))
		}
		return
	}

	logger.Error("order operation failed", err, logger.LogContext{
		Fields: map[string]any{
			"method": r.Method,
			"url":    r.URL.String(),
		},
	})
	response.Error(w, http.StatusInternalServerError, "Internal server error", nil)
}
