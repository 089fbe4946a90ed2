package entity

import "time"

type PaymentMethod string

const (
	MethodUSSD   PaymentMethod = "ussd"
	MethodManual PaymentMethod = "manual"
)

// FlowState is the step a purchase attempt is currently in. The set is
// closed; legal movements between steps are defined by flowTransitions.
type FlowState string

const (
	StateLoadingSettings FlowState = "loading_settings"
	StateMethodSelect    FlowState = "method_select"
	StatePhoneEntry      FlowState = "phone_entry"
	StateManualEntry     FlowState = "manual_entry"
	StateSubmitting      FlowState = "submitting"
	StateWaiting         FlowState = "waiting"
	StateSuccess         FlowState = "success"
	StateFailed          FlowState = "failed"
)

// flowTransitions lists the valid forward transitions for each state.
// failed -> method_select/phone_entry/manual_entry is the retry path;
// success has no outgoing transitions.
var flowTransitions = map[FlowState][]FlowState{
	StateLoadingSettings: {StateMethodSelect, StatePhoneEntry, StateManualEntry},
	StateMethodSelect:    {StatePhoneEntry, StateManualEntry},
	StatePhoneEntry:      {StateSubmitting},
	StateManualEntry:     {StateSubmitting},
	StateSubmitting:      {StateWaiting, StateSuccess, StatePhoneEntry, StateManualEntry},
	StateWaiting:         {StateSuccess, StateFailed},
	StateFailed:          {StateMethodSelect, StatePhoneEntry, StateManualEntry},
	StateSuccess:         {},
}

// CanTransition reports whether moving from s to next is legal.
func (s FlowState) CanTransition(next FlowState) bool {
	for _, allowed := range flowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends an attempt. failed is terminal
// for the attempt's order even though a retry may start a fresh one.
func (s FlowState) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Service is the catalog item being purchased. Owned by the caller and
// read-only to the flow engine.
type Service struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// PurchaseAttempt is the single mutable record of one purchase-flow
// session. One attempt is active per flow; it is reset on retry and
// discarded on close, never persisted.
type PurchaseAttempt struct {
	Service Service
	Method  PaymentMethod
	State   FlowState

	OrderID   string
	Phone     string
	ProofText string
	Network   string

	RemainingSeconds int
	StartedAt        time.Time
}

// ResetForRetry clears everything the retry transition must discard.
// The service reference and phone survive so the user does not re-enter them.
func (a *PurchaseAttempt) ResetForRetry(initial FlowState, method PaymentMethod) {
	a.State = initial
	a.Method = method
	a.OrderID = ""
	a.ProofText = ""
	a.Network = ""
	a.RemainingSeconds = 0
	a.StartedAt = time.Time{}
}
