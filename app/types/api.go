package types

import (
	"encoding/json"

	"github.com/hudumalabs/storefront-pay/app/entity"
)

// Envelope is the response wrapper every gateway endpoint uses. Clients
// inspect Success and Data; Message is surfaced to the user verbatim when
// Success is false.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type CreatePushOrderRequest struct {
	ServiceID    string `json:"service_id" validate:"required"`
	PaymentPhone string `json:"payment_phone" validate:"required,tzphone"`
}

type CreatePushOrderData struct {
	OrderID        string `json:"order_id"`
	PaymentNetwork string `json:"payment_network,omitempty"`
}

type CreateManualOrderRequest struct {
	ServiceID    string `json:"service_id" validate:"required"`
	PaymentPhone string `json:"payment_phone" validate:"required,tzphone"`
	ProofText    string `json:"proof_text" validate:"required,min=10"`
}

type CreateManualOrderData struct {
	OrderID string `json:"order_id"`
}

type PaymentStatusData struct {
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	OrderStatus   string               `json:"order_status"`
}

type PaymentSettingsData struct {
	USSDEnabled        bool   `json:"ussd_enabled"`
	ManualEnabled      bool   `json:"manual_enabled"`
	ManualPayoutPhone  string `json:"manual_payout_phone"`
	ManualPayoutName   string `json:"manual_payout_name"`
	ManualInstructions string `json:"manual_instructions"`
}

func (d *PaymentSettingsData) ToSettings() *entity.PaymentSettings {
	return &entity.PaymentSettings{
		USSDEnabled:        d.USSDEnabled,
		ManualEnabled:      d.ManualEnabled,
		ManualPayoutPhone:  d.ManualPayoutPhone,
		ManualPayoutName:   d.ManualPayoutName,
		ManualInstructions: d.ManualInstructions,
	}
}

// Order is the gateway's view of a placed order, used by the order-list
// surface the storefront refreshes after a terminal flow state.
type Order struct {
	ID             string               `json:"id"`
	ServiceID      string               `json:"service_id"`
	ServiceName    string               `json:"service_name,omitempty"`
	Amount         int64                `json:"amount"`
	Currency       string               `json:"currency"`
	Method         entity.PaymentMethod `json:"method"`
	PaymentPhone   string               `json:"payment_phone"`
	PaymentNetwork string               `json:"payment_network,omitempty"`
	PaymentStatus  entity.PaymentStatus `json:"payment_status"`
	OrderStatus    string               `json:"order_status"`
	CreatedAt      string               `json:"created_at"`
}

type ListServicesData struct {
	Services []entity.Service `json:"services"`
}

type ListOrdersData struct {
	Orders []Order `json:"orders"`
}
