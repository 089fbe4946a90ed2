package entity

import (
	"errors"
	"strings"
)

// PaymentSettings controls which payment rails the flow offers and carries
// the payout directions the manual rail displays. Fetched once per flow.
type PaymentSettings struct {
	USSDEnabled   bool   `json:"ussd_enabled"`
	ManualEnabled bool   `json:"manual_enabled"`

	ManualPayoutPhone  string `json:"manual_payout_phone"`
	ManualPayoutName   string `json:"manual_payout_name"`
	ManualInstructions string `json:"manual_instructions"`
}

var (
	ErrNoMethodsEnabled    = errors.New("no payment methods enabled")
	ErrManualPayoutMissing = errors.New("manual payout details missing")
)

// Validate rejects settings the flow cannot act on. Manual payout phone and
// name are inputs the user must act on, so their absence is a hard error
// whenever the manual rail is enabled.
func (s *PaymentSettings) Validate() error {
	if !s.USSDEnabled && !s.ManualEnabled {
		return ErrNoMethodsEnabled
	}
	if s.ManualEnabled {
		if strings.TrimSpace(s.ManualPayoutPhone) == "" || strings.TrimSpace(s.ManualPayoutName) == "" {
			return ErrManualPayoutMissing
		}
	}
	return nil
}

// InitialState resolves the state a new attempt starts in and the method
// preselected for it, per the method-availability rules.
func (s *PaymentSettings) InitialState() (FlowState, PaymentMethod) {
	switch {
	case s.USSDEnabled && !s.ManualEnabled:
		return StatePhoneEntry, MethodUSSD
	case s.ManualEnabled && !s.USSDEnabled:
		return StateManualEntry, MethodManual
	default:
		return StateMethodSelect, ""
	}
}
