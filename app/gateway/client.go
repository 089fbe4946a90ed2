package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hudumalabs/storefront-pay/app/entity"
	"github.com/hudumalabs/storefront-pay/app/types"
)

// APIError is a gateway response with success=false. Its Message is what
// the user sees, verbatim.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return "gateway request rejected"
	}
	return e.Message
}

var ErrEmptyOrderID = errors.New("order id is required")

type Config struct {
	BaseURL     string
	AuthToken   string
	HTTPTimeout time.Duration
}

// Client talks to the remote order gateway over HTTP. All durable state
// (orders, payment status) lives on the gateway side.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) PaymentSettings(ctx context.Context) (*entity.PaymentSettings, error) {
	var data types.PaymentSettingsData
	if err := c.doJSON(ctx, http.MethodGet, "/payments/settings", nil, &data); err != nil {
		return nil, err
	}
	return data.ToSettings(), nil
}

func (c *Client) CreatePushOrder(ctx context.Context, serviceID, phone string) (orderID, network string, err error) {
	body := &types.CreatePushOrderRequest{ServiceID: serviceID, PaymentPhone: phone}
	var data types.CreatePushOrderData
	if err := c.doJSON(ctx, http.MethodPost, "/orders/push", body, &data); err != nil {
		return "", "", err
	}
	return data.OrderID, data.PaymentNetwork, nil
}

func (c *Client) CreateManualOrder(ctx context.Context, serviceID, phone, proofText string) (string, error) {
	body := &types.CreateManualOrderRequest{ServiceID: serviceID, PaymentPhone: phone, ProofText: proofText}
	var data types.CreateManualOrderData
	if err := c.doJSON(ctx, http.MethodPost, "/orders/manual", body, &data); err != nil {
		return "", err
	}
	return data.OrderID, nil
}

func (c *Client) PaymentStatus(ctx context.Context, orderID string) (entity.PaymentStatus, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", ErrEmptyOrderID
	}
	var data types.PaymentStatusData
	if err := c.doJSON(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payment-status", nil, &data); err != nil {
		return "", err
	}
	return data.PaymentStatus, nil
}

func (c *Client) NotifyTimeout(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return ErrEmptyOrderID
	}
	return c.doJSON(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/payment-timeout", nil, nil)
}

func (c *Client) ListServices(ctx context.Context) ([]entity.Service, error) {
	var data types.ListServicesData
	if err := c.doJSON(ctx, http.MethodGet, "/services", nil, &data); err != nil {
		return nil, err
	}
	return data.Services, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]types.Order, error) {
	var data types.ListOrdersData
	if err := c.doJSON(ctx, http.MethodGet, "/orders", nil, &data); err != nil {
		return nil, err
	}
	return data.Orders, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope types.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("gateway returned malformed response: status=%d", resp.StatusCode)
	}
	if !envelope.Success {
		return &APIError{Message: envelope.Message}
	}
	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}
