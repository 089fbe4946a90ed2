package sandbox

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/hudumalabs/storefront-pay/app/factory"
	"github.com/hudumalabs/storefront-pay/app/types"
	"github.com/hudumalabs/storefront-pay/config"
)

// Controller serves the gateway HTTP surface against the in-memory store.
// Every response is wrapped in the shared envelope; Message on a failed
// response is shown to the buyer verbatim, so it is written for them.
type Controller struct {
	store  *Store
	cfg    config.SandboxConfig
	logger logrus.FieldLogger
}

func NewController(store *Store, cfg config.SandboxConfig) *Controller {
	return &Controller{
		store:  store,
		cfg:    cfg,
		logger: factory.NewModuleLogger("sandbox-controller"),
	}
}

// Register mounts all gateway routes on the echo instance.
func (c *Controller) Register(e *echo.Echo) {
	e.GET("/health", c.Health)
	e.GET("/payments/settings", c.PaymentSettings)
	e.POST("/orders/push", c.CreatePushOrder)
	e.POST("/orders/manual", c.CreateManualOrder)
	e.GET("/orders/:id/payment-status", c.PaymentStatus)
	e.POST("/orders/:id/payment-timeout", c.PaymentTimeout)
	e.GET("/services", c.ListServices)
	e.GET("/orders", c.ListOrders)
}

func (c *Controller) Health(ctx echo.Context) error {
	return c.writeData(ctx, http.StatusOK, "ok", nil)
}

func (c *Controller) PaymentSettings(ctx echo.Context) error {
	data := &types.PaymentSettingsData{
		USSDEnabled:        c.cfg.USSDEnabled,
		ManualEnabled:      c.cfg.ManualEnabled,
		ManualPayoutPhone:  c.cfg.PayoutPhone,
		ManualPayoutName:   c.cfg.PayoutName,
		ManualInstructions: c.cfg.Instructions,
	}
	return c.writeData(ctx, http.StatusOK, "", data)
}

func (c *Controller) CreatePushOrder(ctx echo.Context) error {
	var req types.CreatePushOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, validationMessage(err))
	}

	order, err := c.store.CreatePushOrder(req.ServiceID, req.PaymentPhone)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "The selected service is no longer available")
		}
		c.logger.WithError(err).Error("Create push order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "Something went wrong, please try again")
	}

	data := &types.CreatePushOrderData{OrderID: order.ID, PaymentNetwork: order.PaymentNetwork}
	return c.writeData(ctx, http.StatusCreated, "Payment request sent to your phone", data)
}

func (c *Controller) CreateManualOrder(ctx echo.Context) error {
	var req types.CreateManualOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, validationMessage(err))
	}

	order, err := c.store.CreateManualOrder(req.ServiceID, req.PaymentPhone, req.ProofText)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "The selected service is no longer available")
		}
		c.logger.WithError(err).Error("Create manual order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "Something went wrong, please try again")
	}

	data := &types.CreateManualOrderData{OrderID: order.ID}
	return c.writeData(ctx, http.StatusCreated, "Order received, payment pending verification", data)
}

func (c *Controller) PaymentStatus(ctx echo.Context) error {
	order, err := c.store.Order(ctx.Param("id"))
	if err != nil {
		return c.writeError(ctx, http.StatusNotFound, "Order not found")
	}
	data := &types.PaymentStatusData{PaymentStatus: order.PaymentStatus, OrderStatus: order.OrderStatus}
	return c.writeData(ctx, http.StatusOK, "", data)
}

func (c *Controller) PaymentTimeout(ctx echo.Context) error {
	if err := c.store.MarkTimeout(ctx.Param("id")); err != nil {
		return c.writeError(ctx, http.StatusNotFound, "Order not found")
	}
	return c.writeData(ctx, http.StatusOK, "Timeout recorded", nil)
}

func (c *Controller) ListServices(ctx echo.Context) error {
	data := &types.ListServicesData{Services: c.store.Services()}
	return c.writeData(ctx, http.StatusOK, "", data)
}

func (c *Controller) ListOrders(ctx echo.Context) error {
	orders := c.store.Orders()
	out := make([]types.Order, 0, len(orders))
	for _, order := range orders {
		out = append(out, types.Order{
			ID:             order.ID,
			ServiceID:      order.ServiceID,
			ServiceName:    order.ServiceName,
			Amount:         order.Amount,
			Currency:       order.Currency,
			Method:         order.Method,
			PaymentPhone:   order.PaymentPhone,
			PaymentNetwork: order.PaymentNetwork,
			PaymentStatus:  order.PaymentStatus,
			OrderStatus:    order.OrderStatus,
			CreatedAt:      order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return c.writeData(ctx, http.StatusOK, "", &types.ListOrdersData{Orders: out})
}

func (c *Controller) writeData(ctx echo.Context, statusCode int, message string, data any) error {
	envelope := &types.Envelope{Success: true, Message: message}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			c.logger.WithError(err).Error("Encode response failed")
			return c.writeError(ctx, http.StatusInternalServerError, "Something went wrong, please try again")
		}
		envelope.Data = encoded
	}
	return ctx.JSON(statusCode, envelope)
}

func (c *Controller) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.Envelope{Success: false, Message: message})
}

// validationMessage turns a validator error into the buyer-facing message
// the storefront will display.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid request"
	}
	fieldErr := fieldErrs[0]
	switch {
	case fieldErr.Tag() == "tzphone":
		return "Enter a valid Tanzanian phone number"
	case fieldErr.Field() == "ProofText":
		return "The confirmation message looks incomplete, paste the full message"
	case fieldErr.Field() == "ServiceID":
		return "A service must be selected"
	case fieldErr.Field() == "PaymentPhone":
		return "A payment phone number is required"
	default:
		return "Invalid request"
	}
}
