package flow

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hudumalabs/storefront-pay/app/entity"
)

// poller supervises the two repeating timers of the waiting state: the
// status-check timer and the countdown timer. Both are owned as explicit
// handles and are torn down together by a single idempotent stop.
type poller struct {
	orderID   string
	startedAt time.Time

	interval time.Duration
	tick     time.Duration
	budget   time.Duration

	statusTicker    *time.Ticker
	countdownTicker *time.Ticker
	done            chan struct{}
	stopOnce        sync.Once
}

func (p *poller) stop() {
	p.stopOnce.Do(func() {
		p.statusTicker.Stop()
		p.countdownTicker.Stop()
		close(p.done)
	})
}

// remaining recomputes the countdown from the captured start timestamp so
// the value stays accurate under tick delivery jitter.
func (p *poller) remaining(now time.Time) int {
	left := p.budget - now.Sub(p.startedAt)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// startPollerLocked replaces any active poller with a fresh one for the
// attempt's order. Callers hold f.mu and have already set state to waiting.
func (f *Flow) startPollerLocked() {
	f.stopPollerLocked()

	p := &poller{
		orderID:   f.attempt.OrderID,
		startedAt: time.Now(),
		interval:  f.cfg.PollInterval,
		tick:      f.cfg.CountdownTick,
		budget:    f.cfg.PaymentBudget,
		done:      make(chan struct{}),
	}
	p.statusTicker = time.NewTicker(p.interval)
	p.countdownTicker = time.NewTicker(p.tick)

	f.poller = p
	f.attempt.StartedAt = p.startedAt
	f.attempt.RemainingSeconds = p.remaining(p.startedAt)

	go f.runPoller(p, p.statusTicker.C, p.countdownTicker.C)
}

// stopPollerLocked cancels both timers. Safe to call when no poller is
// running; called on every exit path from waiting.
func (f *Flow) stopPollerLocked() {
	if f.poller == nil {
		return
	}
	f.poller.stop()
	f.poller = nil
}

func (f *Flow) runPoller(p *poller, statusC, countdownC <-chan time.Time) {
	for {
		select {
		case <-p.done:
			return
		case now := <-countdownC:
			f.handleCountdownTick(p, now)
		case <-statusC:
			f.handleStatusTick(p)
		}
	}
}

// handleStatusTick issues one status query. A failed check is treated as
// still pending and retried on the next tick.
func (f *Flow) handleStatusTick(p *poller) {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	status, err := f.gw.PaymentStatus(ctx, p.orderID)
	if err != nil {
		f.logger.WithError(err).WithField("order_id", p.orderID).Debug("payment_status_check_failed")
		return
	}

	switch status {
	case entity.PaymentCompleted:
		f.pollCompleted(p)
	case entity.PaymentFailed:
		f.pollFailed(p)
	}
}

func (f *Flow) handleCountdownTick(p *poller, now time.Time) {
	remaining := p.remaining(now)

	f.mu.Lock()
	if !f.pollerCurrentLocked(p) {
		f.mu.Unlock()
		return
	}
	f.attempt.RemainingSeconds = remaining
	cb := f.onCountdown
	f.mu.Unlock()

	if cb != nil {
		cb(remaining)
	}
	if remaining <= 0 {
		f.pollTimedOut(p)
	}
}

func (f *Flow) pollCompleted(p *poller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pollerCurrentLocked(p) {
		return
	}
	f.stopPollerLocked()
	f.attempt.State = entity.StateSuccess
	f.scheduleSuccessNotifyLocked()
	f.logger.WithField("order_id", p.orderID).Info("payment_completed")
}

func (f *Flow) pollFailed(p *poller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pollerCurrentLocked(p) {
		return
	}
	f.stopPollerLocked()
	f.attempt.State = entity.StateFailed
	f.logger.WithField("order_id", p.orderID).Info("payment_failed")
}

// pollTimedOut flips the attempt to failed and notifies the gateway on a
// best-effort basis; the local transition does not depend on that call.
func (f *Flow) pollTimedOut(p *poller) {
	f.mu.Lock()
	if !f.pollerCurrentLocked(p) {
		f.mu.Unlock()
		return
	}
	f.stopPollerLocked()
	f.attempt.State = entity.StateFailed
	f.attempt.RemainingSeconds = 0
	f.mu.Unlock()

	f.logger.WithField("order_id", p.orderID).Info("payment_timed_out")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		defer cancel()
		if err := f.gw.NotifyTimeout(ctx, p.orderID); err != nil {
			f.logger.WithError(err).WithField("order_id", p.orderID).Debug("timeout_notify_failed")
		}
	}()
}

// pollerCurrentLocked guards against late ticks from a stopped poller: a
// tick may only act if its poller is still the active one and the attempt
// is still waiting.
func (f *Flow) pollerCurrentLocked(p *poller) bool {
	return f.attempt != nil && f.poller == p && f.attempt.State == entity.StateWaiting
}
