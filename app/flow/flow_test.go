package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hudumalabs/storefront-pay/app/entity"
	"github.com/hudumalabs/storefront-pay/app/types"
	"github.com/hudumalabs/storefront-pay/config"
)

type fakeGateway struct {
	mu sync.Mutex

	settings    *entity.PaymentSettings
	settingsErr error

	pushOrderID string
	pushNetwork string
	pushErr     error
	pushCalls   int
	pushPhone   string
	pushGate    chan struct{}

	manualOrderID string
	manualErr     error
	manualCalls   int

	statuses    []entity.PaymentStatus
	statusErr   error
	statusCalls int

	timeoutErr   error
	timeoutCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		settings: &entity.PaymentSettings{
			USSDEnabled:       true,
			ManualEnabled:     true,
			ManualPayoutPhone: "0755000111",
			ManualPayoutName:  "Huduma Store Ltd",
		},
		pushOrderID:   "ord-push-1",
		pushNetwork:   "vodacom",
		manualOrderID: "ord-manual-1",
	}
}

func (g *fakeGateway) PaymentSettings(context.Context) (*entity.PaymentSettings, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.settingsErr != nil {
		return nil, g.settingsErr
	}
	copySettings := *g.settings
	return &copySettings, nil
}

func (g *fakeGateway) CreatePushOrder(_ context.Context, _, phone string) (string, string, error) {
	g.mu.Lock()
	g.pushCalls++
	g.pushPhone = phone
	gate := g.pushGate
	err := g.pushErr
	orderID, network := g.pushOrderID, g.pushNetwork
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", "", err
	}
	return orderID, network, nil
}

func (g *fakeGateway) CreateManualOrder(_ context.Context, _, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manualCalls++
	if g.manualErr != nil {
		return "", g.manualErr
	}
	return g.manualOrderID, nil
}

func (g *fakeGateway) PaymentStatus(context.Context, string) (entity.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return "", g.statusErr
	}
	if len(g.statuses) == 0 {
		return entity.PaymentPending, nil
	}
	status := g.statuses[0]
	if len(g.statuses) > 1 {
		g.statuses = g.statuses[1:]
	}
	return status, nil
}

func (g *fakeGateway) NotifyTimeout(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeoutCalls++
	return g.timeoutErr
}

func (g *fakeGateway) statusCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

func (g *fakeGateway) pushCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pushCalls
}

func (g *fakeGateway) timeoutCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timeoutCalls
}

func testFlowConfig() config.FlowConfig {
	return config.FlowConfig{
		PollInterval:        15 * time.Millisecond,
		PaymentBudget:       2 * time.Second,
		CountdownTick:       10 * time.Millisecond,
		SuccessDisplayDelay: 40 * time.Millisecond,
	}
}

func testService() entity.Service {
	return entity.Service{ID: "svc-1", Name: "TV Bundle", Price: 5000, Currency: "TZS"}
}

func openedFlow(t *testing.T, gw *fakeGateway, cfg config.FlowConfig) *Flow {
	t.Helper()
	f := New(gw, cfg)
	if err := f.Open(context.Background(), testService()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return f
}

func waitForState(t *testing.T, f *Flow, want entity.FlowState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, current %s", want, f.State())
}

func TestOpenWithOnlyUSSDStartsInPhoneEntry(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}

	f := openedFlow(t, gw, testFlowConfig())

	if f.State() != entity.StatePhoneEntry {
		t.Fatalf("expected phone_entry, got %s", f.State())
	}
	attempt, _ := f.Attempt()
	if attempt.Method != entity.MethodUSSD {
		t.Fatalf("expected preselected ussd method, got %s", attempt.Method)
	}
}

func TestOpenWithBothMethodsStartsInMethodSelect(t *testing.T) {
	f := openedFlow(t, newFakeGateway(), testFlowConfig())
	if f.State() != entity.StateMethodSelect {
		t.Fatalf("expected method_select, got %s", f.State())
	}
}

func TestOpenSettingsFailureKeepsLoadingAndIsRetryable(t *testing.T) {
	gw := newFakeGateway()
	gw.settingsErr = errors.New("gateway unreachable")

	f := New(gw, testFlowConfig())
	if err := f.Open(context.Background(), testService()); err == nil {
		t.Fatal("expected settings fetch error")
	}
	if f.State() != entity.StateLoadingSettings {
		t.Fatalf("expected loading_settings, got %s", f.State())
	}

	gw.mu.Lock()
	gw.settingsErr = nil
	gw.mu.Unlock()

	if err := f.Open(context.Background(), testService()); err != nil {
		t.Fatalf("retry open failed: %v", err)
	}
	if f.State() != entity.StateMethodSelect {
		t.Fatalf("expected method_select after retry, got %s", f.State())
	}
}

func TestOpenTwiceIsRejected(t *testing.T) {
	f := openedFlow(t, newFakeGateway(), testFlowConfig())
	if err := f.Open(context.Background(), testService()); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestSelectMethodRespectsEnabledRails(t *testing.T) {
	f := openedFlow(t, newFakeGateway(), testFlowConfig())

	if err := f.SelectMethod("card"); err == nil {
		t.Fatal("expected unknown method to be rejected")
	}
	if err := f.SelectMethod(entity.MethodManual); err != nil {
		t.Fatalf("select manual failed: %v", err)
	}
	if f.State() != entity.StateManualEntry {
		t.Fatalf("expected manual_entry, got %s", f.State())
	}
}

func TestSubmitPushCreatesOrderAndStartsCountdown(t *testing.T) {
	gw := newFakeGateway()
	cfg := testFlowConfig()
	cfg.PaymentBudget = 1100 * time.Millisecond
	f := openedFlow(t, gw, cfg)

	if err := f.SelectMethod(entity.MethodUSSD); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if err := f.SubmitPush(context.Background(), "0712 345 678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}

	if f.State() != entity.StateWaiting {
		t.Fatalf("expected waiting, got %s", f.State())
	}
	if gw.pushPhone != "0712345678" {
		t.Fatalf("expected normalized phone sent to gateway, got %q", gw.pushPhone)
	}
	attempt, _ := f.Attempt()
	if attempt.OrderID != "ord-push-1" || attempt.Network != "vodacom" {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
	if attempt.RemainingSeconds != 2 {
		t.Fatalf("expected initial countdown of 2s for a 1.1s budget, got %d", attempt.RemainingSeconds)
	}

	time.Sleep(400 * time.Millisecond)
	if got := f.RemainingSeconds(); got > 1 {
		t.Fatalf("expected countdown to decrease, still %d", got)
	}

	_ = f.ConfirmClose()
}

func TestInvalidPhoneBlocksSubmission(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SubmitPush(context.Background(), "0712"); !errors.Is(err, types.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if gw.pushCallCount() != 0 {
		t.Fatal("expected no gateway call for invalid phone")
	}
	if f.State() != entity.StatePhoneEntry {
		t.Fatalf("expected to stay in phone_entry, got %s", f.State())
	}
}

func TestShortProofBlocksManualSubmission(t *testing.T) {
	f := openedFlow(t, newFakeGateway(), testFlowConfig())
	if err := f.SelectMethod(entity.MethodManual); err != nil {
		t.Fatalf("select manual failed: %v", err)
	}

	if err := f.SubmitManual(context.Background(), "0712345678", "short"); !errors.Is(err, types.ErrShortProof) {
		t.Fatalf("expected ErrShortProof, got %v", err)
	}
	if f.State() != entity.StateManualEntry {
		t.Fatalf("expected to stay in manual_entry, got %s", f.State())
	}
}

func TestSubmitFailureRevertsToEntryState(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.pushErr = errors.New("Service temporarily unavailable")
	f := openedFlow(t, gw, testFlowConfig())

	err := f.SubmitPush(context.Background(), "0712345678")
	if err == nil || err.Error() != "Service temporarily unavailable" {
		t.Fatalf("expected gateway error surfaced, got %v", err)
	}
	if f.State() != entity.StatePhoneEntry {
		t.Fatalf("expected revert to phone_entry, got %s", f.State())
	}

	gw.mu.Lock()
	gw.pushErr = nil
	gw.mu.Unlock()

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}
	waitForState(t, f, entity.StateWaiting)
	_ = f.ConfirmClose()
}

func TestPollCompletedReachesSuccessAfterDisplayDelay(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.statuses = []entity.PaymentStatus{entity.PaymentPending, entity.PaymentCompleted}
	f := openedFlow(t, gw, testFlowConfig())

	var notifyMu sync.Mutex
	var notifiedOrder string
	notifyCount := 0
	f.OnSuccess(func(orderID string) {
		notifyMu.Lock()
		defer notifyMu.Unlock()
		notifiedOrder = orderID
		notifyCount++
	})

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	waitForState(t, f, entity.StateSuccess)

	notifyMu.Lock()
	firedAtSuccess := notifyCount
	notifyMu.Unlock()
	if firedAtSuccess != 0 {
		t.Fatal("expected success callback to wait for the display delay")
	}

	time.Sleep(120 * time.Millisecond)
	notifyMu.Lock()
	defer notifyMu.Unlock()
	if notifyCount != 1 {
		t.Fatalf("expected exactly one success notification, got %d", notifyCount)
	}
	if notifiedOrder != "ord-push-1" {
		t.Fatalf("expected order id in notification, got %q", notifiedOrder)
	}
}

func TestPollerStopsAfterLeavingWaiting(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.statuses = []entity.PaymentStatus{entity.PaymentCompleted}
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	waitForState(t, f, entity.StateSuccess)

	calls := gw.statusCallCount()
	time.Sleep(6 * testFlowConfig().PollInterval)
	if gw.statusCallCount() != calls {
		t.Fatalf("expected no status checks after success, went from %d to %d", calls, gw.statusCallCount())
	}
}

func TestPollFailedReachesFailed(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.statuses = []entity.PaymentStatus{entity.PaymentFailed}
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	waitForState(t, f, entity.StateFailed)

	if gw.timeoutCallCount() != 0 {
		t.Fatal("explicit failure must not send a timeout notification")
	}
}

func TestTransientPollErrorsAreRetried(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.statusErr = errors.New("connection reset")
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}

	time.Sleep(5 * testFlowConfig().PollInterval)
	if f.State() != entity.StateWaiting {
		t.Fatalf("transient poll errors must not end the attempt, got %s", f.State())
	}
	if gw.statusCallCount() < 2 {
		t.Fatalf("expected retried status checks, got %d", gw.statusCallCount())
	}

	gw.mu.Lock()
	gw.statusErr = nil
	gw.statuses = []entity.PaymentStatus{entity.PaymentCompleted}
	gw.mu.Unlock()
	waitForState(t, f, entity.StateSuccess)
}

func TestTimeoutFlipsToFailedAndNotifiesGateway(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.timeoutErr = errors.New("notify endpoint down")
	cfg := testFlowConfig()
	cfg.PaymentBudget = 150 * time.Millisecond
	f := openedFlow(t, gw, cfg)

	var countdownMu sync.Mutex
	lastSeen := -1
	f.OnCountdown(func(seconds int) {
		countdownMu.Lock()
		defer countdownMu.Unlock()
		lastSeen = seconds
	})

	start := time.Now()
	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	waitForState(t, f, entity.StateFailed)

	if elapsed := time.Since(start); elapsed > cfg.PaymentBudget+cfg.PollInterval+200*time.Millisecond {
		t.Fatalf("timeout took too long: %v", elapsed)
	}

	deadline := time.Now().Add(time.Second)
	for gw.timeoutCallCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if gw.timeoutCallCount() == 0 {
		t.Fatal("expected best-effort timeout notification")
	}

	countdownMu.Lock()
	defer countdownMu.Unlock()
	if lastSeen != 0 {
		t.Fatalf("expected countdown to end at zero, got %d", lastSeen)
	}
	if f.RemainingSeconds() != 0 {
		t.Fatalf("expected zero remaining seconds, got %d", f.RemainingSeconds())
	}
}

func TestRetryResetsAttempt(t *testing.T) {
	gw := newFakeGateway()
	gw.statuses = []entity.PaymentStatus{entity.PaymentFailed}
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SelectMethod(entity.MethodUSSD); err != nil {
		t.Fatalf("select method failed: %v", err)
	}
	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	waitForState(t, f, entity.StateFailed)

	if err := f.Retry(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	attempt, _ := f.Attempt()
	if attempt.State != entity.StateMethodSelect {
		t.Fatalf("expected method_select after retry, got %s", attempt.State)
	}
	if attempt.OrderID != "" || attempt.ProofText != "" {
		t.Fatalf("expected order id and proof cleared, got %+v", attempt)
	}

	calls := gw.statusCallCount()
	time.Sleep(5 * testFlowConfig().PollInterval)
	if gw.statusCallCount() != calls {
		t.Fatal("expected residual polling to be stopped by retry")
	}
}

func TestRetryWithSingleRailReturnsToEntryState(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.statuses = []entity.PaymentStatus{entity.PaymentFailed}
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	waitForState(t, f, entity.StateFailed)

	if err := f.Retry(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	attempt, _ := f.Attempt()
	if attempt.State != entity.StatePhoneEntry || attempt.Method != entity.MethodUSSD {
		t.Fatalf("expected preselected phone_entry after retry, got %+v", attempt)
	}
}

func TestSingleOrderPerAttempt(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	f := openedFlow(t, gw, testFlowConfig())

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	if err := f.SubmitPush(context.Background(), "0712345678"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected resubmission to be rejected, got %v", err)
	}
	if gw.pushCallCount() != 1 {
		t.Fatalf("expected exactly one create-order call, got %d", gw.pushCallCount())
	}
	_ = f.ConfirmClose()
}

func TestManualOrderSucceedsWithoutPolling(t *testing.T) {
	gw := newFakeGateway()
	f := openedFlow(t, gw, testFlowConfig())

	notified := make(chan string, 1)
	f.OnSuccess(func(orderID string) { notified <- orderID })

	if err := f.SelectMethod(entity.MethodManual); err != nil {
		t.Fatalf("select manual failed: %v", err)
	}
	if err := f.SubmitManual(context.Background(), "0712345678", "TXN 9F2A confirmed TZS 5,000 sent"); err != nil {
		t.Fatalf("submit manual failed: %v", err)
	}

	if f.State() != entity.StateSuccess {
		t.Fatalf("expected direct success, got %s", f.State())
	}

	select {
	case orderID := <-notified:
		if orderID != "ord-manual-1" {
			t.Fatalf("unexpected notified order %q", orderID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected success notification")
	}

	time.Sleep(4 * testFlowConfig().PollInterval)
	if gw.statusCallCount() != 0 {
		t.Fatal("manual orders must never be polled")
	}
}

func TestCloseIsBlockedWhileSubmitting(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	gw.pushGate = make(chan struct{})
	f := openedFlow(t, gw, testFlowConfig())

	submitDone := make(chan error, 1)
	go func() { submitDone <- f.SubmitPush(context.Background(), "0712345678") }()

	waitForState(t, f, entity.StateSubmitting)
	if err := f.Close(); !errors.Is(err, ErrCloseBlocked) {
		t.Fatalf("expected ErrCloseBlocked, got %v", err)
	}
	if err := f.ConfirmClose(); !errors.Is(err, ErrCloseBlocked) {
		t.Fatalf("expected ErrCloseBlocked from confirm, got %v", err)
	}

	close(gw.pushGate)
	if err := <-submitDone; err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	_ = f.ConfirmClose()
}

func TestCloseFromWaitingNeedsConfirmation(t *testing.T) {
	gw := newFakeGateway()
	gw.settings = &entity.PaymentSettings{USSDEnabled: true}
	f := openedFlow(t, gw, testFlowConfig())

	closed := make(chan struct{}, 1)
	f.OnClose(func() { closed <- struct{}{} })

	if err := f.SubmitPush(context.Background(), "0712345678"); err != nil {
		t.Fatalf("submit push failed: %v", err)
	}
	if err := f.Close(); !errors.Is(err, ErrCloseNeedsConfirm) {
		t.Fatalf("expected ErrCloseNeedsConfirm, got %v", err)
	}
	if f.State() != entity.StateWaiting {
		t.Fatalf("unconfirmed close must not change state, got %s", f.State())
	}

	if err := f.ConfirmClose(); err != nil {
		t.Fatalf("confirm close failed: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected close notification")
	}

	calls := gw.statusCallCount()
	time.Sleep(5 * testFlowConfig().PollInterval)
	if gw.statusCallCount() != calls {
		t.Fatal("expected polling to stop after confirmed close")
	}
}
