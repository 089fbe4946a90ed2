// Package flow drives a single purchase attempt through method selection,
// submission, confirmation polling, and a terminal success or failed state.
// A Flow owns exactly one attempt at a time; all durable order state lives
// on the remote gateway.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hudumalabs/storefront-pay/app/entity"
	"github.com/hudumalabs/storefront-pay/app/factory"
	"github.com/hudumalabs/storefront-pay/app/types"
	"github.com/hudumalabs/storefront-pay/config"
)

// Gateway is the surface of the remote order gateway the flow consumes.
type Gateway interface {
	PaymentSettings(ctx context.Context) (*entity.PaymentSettings, error)
	CreatePushOrder(ctx context.Context, serviceID, phone string) (orderID, network string, err error)
	CreateManualOrder(ctx context.Context, serviceID, phone, proofText string) (string, error)
	PaymentStatus(ctx context.Context, orderID string) (entity.PaymentStatus, error)
	NotifyTimeout(ctx context.Context, orderID string) error
}

// Flow is the payment orchestration state machine for one purchase-flow
// session. Event handling is serialized by the mutex; timer and network
// callbacks never run flow logic concurrently.
type Flow struct {
	mu     sync.Mutex
	gw     Gateway
	cfg    config.FlowConfig
	logger logrus.FieldLogger

	attempt  *entity.PurchaseAttempt
	settings *entity.PaymentSettings
	poller   *poller

	successTimer *time.Timer
	notified     bool

	onSuccess   func(orderID string)
	onClose     func()
	onCountdown func(seconds int)
}

func New(gw Gateway, cfg config.FlowConfig) *Flow {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PaymentBudget <= 0 {
		cfg.PaymentBudget = 90 * time.Second
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = time.Second
	}

	return &Flow{
		gw:     gw,
		cfg:    cfg,
		logger: factory.NewModuleLogger("payment-flow"),
	}
}

// OnSuccess registers the callback fired exactly once when the attempt
// reaches success, after the display delay.
func (f *Flow) OnSuccess(cb func(orderID string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSuccess = cb
}

// OnClose registers the callback fired when the flow is torn down.
func (f *Flow) OnClose(cb func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onClose = cb
}

// OnCountdown registers the callback fired on every countdown tick while
// the attempt is waiting for confirmation.
func (f *Flow) OnCountdown(cb func(seconds int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCountdown = cb
}

// Open starts (or, after a failed settings fetch, restarts) the flow for a
// catalog service. The attempt stays in loading_settings until the settings
// fetch succeeds, so Open can be called again to retry the fetch.
func (f *Flow) Open(ctx context.Context, service entity.Service) error {
	f.mu.Lock()
	if f.attempt == nil {
		f.attempt = &entity.PurchaseAttempt{Service: service, State: entity.StateLoadingSettings}
	} else if f.attempt.State != entity.StateLoadingSettings {
		f.mu.Unlock()
		return ErrAlreadyOpen
	}
	f.mu.Unlock()

	settings, err := f.gw.PaymentSettings(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("payment_settings_fetch_failed")
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil || f.attempt.State != entity.StateLoadingSettings {
		return nil
	}
	f.settings = settings
	initial, method := settings.InitialState()
	f.attempt.State = initial
	f.attempt.Method = method
	f.logger.WithFields(logrus.Fields{
		"service_id": service.ID,
		"state":      initial,
	}).Info("flow_opened")
	return nil
}

// SelectMethod records the user's choice of payment rail.
func (f *Flow) SelectMethod(method entity.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return ErrFlowNotOpen
	}
	if f.attempt.State != entity.StateMethodSelect {
		return ErrInvalidState
	}

	switch method {
	case entity.MethodUSSD:
		if !f.settings.USSDEnabled {
			return ErrMethodDisabled
		}
		f.attempt.Method = method
		f.attempt.State = entity.StatePhoneEntry
	case entity.MethodManual:
		if !f.settings.ManualEnabled {
			return ErrMethodDisabled
		}
		f.attempt.Method = method
		f.attempt.State = entity.StateManualEntry
	default:
		return fmt.Errorf("%w: unknown method %q", ErrMethodDisabled, method)
	}
	return nil
}

// SubmitPush validates the phone, creates a push order, and moves the
// attempt to waiting with the confirmation poller running. On a rejected
// submission the attempt reverts to phone_entry.
func (f *Flow) SubmitPush(ctx context.Context, phone string) error {
	f.mu.Lock()
	if f.attempt == nil {
		f.mu.Unlock()
		return ErrFlowNotOpen
	}
	if f.attempt.State != entity.StatePhoneEntry {
		f.mu.Unlock()
		return ErrInvalidState
	}
	normalized, err := types.CheckPhone(phone)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.attempt.Phone = normalized
	f.attempt.State = entity.StateSubmitting
	serviceID := f.attempt.Service.ID
	f.mu.Unlock()

	orderID, network, err := f.gw.CreatePushOrder(ctx, serviceID, normalized)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil || f.attempt.State != entity.StateSubmitting {
		return nil
	}
	if err == nil && orderID == "" {
		err = ErrEmptyOrderID
	}
	if err != nil {
		f.attempt.State = entity.StatePhoneEntry
		f.logger.WithError(err).Warn("push_order_create_failed")
		return err
	}

	f.attempt.OrderID = orderID
	f.attempt.Network = network
	f.attempt.State = entity.StateWaiting
	f.startPollerLocked()
	f.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"network":  network,
	}).Info("push_order_created")
	return nil
}

// SubmitManual validates the phone and proof text, creates a manual order,
// and moves the attempt directly to success: manual orders are verified by
// a human and are never polled. On a rejected submission the attempt
// reverts to manual_entry.
func (f *Flow) SubmitManual(ctx context.Context, phone, proofText string) error {
	f.mu.Lock()
	if f.attempt == nil {
		f.mu.Unlock()
		return ErrFlowNotOpen
	}
	if f.attempt.State != entity.StateManualEntry {
		f.mu.Unlock()
		return ErrInvalidState
	}
	normalized, err := types.CheckPhone(phone)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	proof, err := types.CheckProof(proofText)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.attempt.Phone = normalized
	f.attempt.ProofText = proof
	f.attempt.State = entity.StateSubmitting
	serviceID := f.attempt.Service.ID
	f.mu.Unlock()

	orderID, err := f.gw.CreateManualOrder(ctx, serviceID, normalized, proof)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil || f.attempt.State != entity.StateSubmitting {
		return nil
	}
	if err == nil && orderID == "" {
		err = ErrEmptyOrderID
	}
	if err != nil {
		f.attempt.State = entity.StateManualEntry
		f.logger.WithError(err).Warn("manual_order_create_failed")
		return err
	}

	f.attempt.OrderID = orderID
	f.attempt.State = entity.StateSuccess
	f.scheduleSuccessNotifyLocked()
	f.logger.WithField("order_id", orderID).Info("manual_order_created")
	return nil
}

// Retry resets a failed attempt back to its initial entry state, discarding
// the order id and proof text. Any residual polling is stopped first.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return ErrFlowNotOpen
	}
	if f.attempt.State != entity.StateFailed {
		return ErrInvalidState
	}

	f.stopPollerLocked()
	initial, method := f.settings.InitialState()
	f.attempt.ResetForRetry(initial, method)
	f.logger.WithField("state", initial).Info("flow_retry")
	return nil
}

// Close tears the flow down. It is a blocked no-op while a submission is in
// flight, and from waiting it demands explicit confirmation because the
// push payment may still complete out of band; call ConfirmClose for that.
func (f *Flow) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return ErrFlowNotOpen
	}
	switch f.attempt.State {
	case entity.StateSubmitting:
		return ErrCloseBlocked
	case entity.StateWaiting:
		return ErrCloseNeedsConfirm
	}
	f.teardownLocked()
	return nil
}

// ConfirmClose closes the flow from waiting after the user has confirmed.
// Close during submitting stays blocked.
func (f *Flow) ConfirmClose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return ErrFlowNotOpen
	}
	if f.attempt.State == entity.StateSubmitting {
		return ErrCloseBlocked
	}
	f.teardownLocked()
	return nil
}

// State returns the current machine state.
func (f *Flow) State() entity.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return ""
	}
	return f.attempt.State
}

// Attempt returns a copy of the active attempt.
func (f *Flow) Attempt() (entity.PurchaseAttempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return entity.PurchaseAttempt{}, false
	}
	return *f.attempt, true
}

// Settings returns a copy of the resolved payment settings.
func (f *Flow) Settings() (entity.PaymentSettings, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return entity.PaymentSettings{}, false
	}
	return *f.settings, true
}

// RemainingSeconds reports the countdown value while waiting.
func (f *Flow) RemainingSeconds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return 0
	}
	return f.attempt.RemainingSeconds
}

func (f *Flow) scheduleSuccessNotifyLocked() {
	if f.notified {
		return
	}
	f.notified = true

	cb := f.onSuccess
	orderID := f.attempt.OrderID
	delay := f.cfg.SuccessDisplayDelay
	if cb == nil {
		return
	}
	if delay <= 0 {
		go cb(orderID)
		return
	}
	f.successTimer = time.AfterFunc(delay, func() { cb(orderID) })
}

func (f *Flow) teardownLocked() {
	f.stopPollerLocked()
	if f.successTimer != nil {
		f.successTimer.Stop()
		f.successTimer = nil
	}
	f.attempt = nil
	f.settings = nil

	if cb := f.onClose; cb != nil {
		go cb()
	}
	f.logger.Info("flow_closed")
}
