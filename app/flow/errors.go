package flow

import "errors"

var (
	ErrFlowNotOpen       = errors.New("flow is not open")
	ErrAlreadyOpen       = errors.New("flow is already open")
	ErrInvalidState      = errors.New("action not allowed in current state")
	ErrMethodDisabled    = errors.New("payment method is not available")
	ErrEmptyOrderID      = errors.New("gateway returned an empty order id")
	ErrCloseBlocked      = errors.New("close is blocked while a submission is in flight")
	ErrCloseNeedsConfirm = errors.New("a pending payment may still complete; confirm before closing")
)
