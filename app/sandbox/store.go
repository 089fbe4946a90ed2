// Package sandbox is an in-memory stand-in for the production order gateway.
// It serves the same HTTP surface the flow engine consumes, with simulated
// push-payment confirmation, so purchases can be exercised end to end
// without the real backend.
package sandbox

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hudumalabs/storefront-pay/app/entity"
	"github.com/hudumalabs/storefront-pay/app/factory"
	"github.com/hudumalabs/storefront-pay/config"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// Order statuses beyond the payment status the flow polls. Manual orders
// park in pending_verification until a human completes them.
const (
	OrderStatusProcessing          = "processing"
	OrderStatusPendingVerification = "pending_verification"
	OrderStatusCompleted           = "completed"
	OrderStatusFailed              = "failed"
	OrderStatusPaymentTimeout      = "payment_timeout"
)

// failingSuffix is a reserved test phone ending: push orders paid from such
// a number are declined instead of confirmed.
const failingSuffix = "000000"

// Order is a placed order as the sandbox stores it.
type Order struct {
	ID             string
	ServiceID      string
	ServiceName    string
	Amount         int64
	Currency       string
	Method         entity.PaymentMethod
	PaymentPhone   string
	PaymentNetwork string
	ProofText      string
	PaymentStatus  entity.PaymentStatus
	OrderStatus    string
	CreatedAt      time.Time
}

// Store holds sandbox orders and the service catalog in memory. Push orders
// auto-resolve after confirmIn; nothing survives a restart.
type Store struct {
	mu        sync.Mutex
	orders    map[string]*Order
	sequence  []string
	services  []entity.Service
	confirmIn time.Duration
	logger    logrus.FieldLogger
}

func NewStore(cfg config.SandboxConfig) *Store {
	confirmIn := cfg.PushConfirmIn
	if confirmIn <= 0 {
		confirmIn = 15 * time.Second
	}
	return &Store{
		orders:    make(map[string]*Order),
		services:  defaultCatalog(),
		confirmIn: confirmIn,
		logger:    factory.NewModuleLogger("sandbox-store"),
	}
}

func defaultCatalog() []entity.Service {
	return []entity.Service{
		{ID: "svc-tv-week", Name: "TV Bundle (7 days)", Price: 5000, Currency: "TZS"},
		{ID: "svc-tv-month", Name: "TV Bundle (30 days)", Price: 18000, Currency: "TZS"},
		{ID: "svc-music-month", Name: "Music Streaming (30 days)", Price: 8000, Currency: "TZS"},
		{ID: "svc-data-10gb", Name: "Data Pack 10GB", Price: 12000, Currency: "TZS"},
	}
}

// Services returns the catalog.
func (s *Store) Services() []entity.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Service, len(s.services))
	copy(out, s.services)
	return out
}

func (s *Store) serviceLocked(id string) (entity.Service, bool) {
	for _, svc := range s.services {
		if svc.ID == id {
			return svc, true
		}
	}
	return entity.Service{}, false
}

// CreatePushOrder places a push order and schedules its simulated outcome:
// confirmed after confirmIn, or declined when the phone carries the
// reserved failing suffix.
func (s *Store) CreatePushOrder(serviceID, phone string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.serviceLocked(serviceID)
	if !ok {
		return Order{}, ErrServiceNotFound
	}

	order := &Order{
		ID:             uuid.NewString(),
		ServiceID:      svc.ID,
		ServiceName:    svc.Name,
		Amount:         svc.Price,
		Currency:       svc.Currency,
		Method:         entity.MethodUSSD,
		PaymentPhone:   phone,
		PaymentNetwork: NetworkForPhone(phone),
		PaymentStatus:  entity.PaymentPending,
		OrderStatus:    OrderStatusProcessing,
		CreatedAt:      time.Now(),
	}
	s.orders[order.ID] = order
	s.sequence = append(s.sequence, order.ID)

	outcome := entity.PaymentCompleted
	if strings.HasSuffix(phone, failingSuffix) {
		outcome = entity.PaymentFailed
	}
	time.AfterFunc(s.confirmIn, func() { s.resolvePush(order.ID, outcome) })

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"network":  order.PaymentNetwork,
	}).Info("push_order_placed")
	return *order, nil
}

// resolvePush applies the simulated payment outcome. Orders that already
// left pending (timeout notification) are left alone.
func (s *Store) resolvePush(orderID string, outcome entity.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.PaymentStatus != entity.PaymentPending {
		return
	}
	order.PaymentStatus = outcome
	if outcome == entity.PaymentCompleted {
		order.OrderStatus = OrderStatusCompleted
	} else {
		order.OrderStatus = OrderStatusFailed
	}
	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   outcome,
	}).Info("push_order_resolved")
}

// CreateManualOrder places a manual-payment order. Manual orders wait for a
// human verifier and are never auto-resolved.
func (s *Store) CreateManualOrder(serviceID, phone, proofText string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.serviceLocked(serviceID)
	if !ok {
		return Order{}, ErrServiceNotFound
	}

	order := &Order{
		ID:            uuid.NewString(),
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		Amount:        svc.Price,
		Currency:      svc.Currency,
		Method:        entity.MethodManual,
		PaymentPhone:  phone,
		ProofText:     proofText,
		PaymentStatus: entity.PaymentPending,
		OrderStatus:   OrderStatusPendingVerification,
		CreatedAt:     time.Now(),
	}
	s.orders[order.ID] = order
	s.sequence = append(s.sequence, order.ID)

	s.logger.WithField("order_id", order.ID).Info("manual_order_placed")
	return *order, nil
}

// Order returns a copy of the order with the given id.
func (s *Store) Order(id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return *order, nil
}

// Orders returns all orders in placement order.
func (s *Store) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.sequence))
	for _, id := range s.sequence {
		out = append(out, *s.orders[id])
	}
	return out
}

// MarkTimeout records a client-side confirmation timeout. Only orders still
// pending are touched; a payment that already resolved keeps its outcome.
func (s *Store) MarkTimeout(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.PaymentStatus != entity.PaymentPending {
		return nil
	}
	order.PaymentStatus = entity.PaymentFailed
	order.OrderStatus = OrderStatusPaymentTimeout
	s.logger.WithField("order_id", id).Info("order_marked_timed_out")
	return nil
}

// CompleteManual resolves a pending manual order as paid, standing in for
// the human verification step.
func (s *Store) CompleteManual(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Method != entity.MethodManual || order.PaymentStatus != entity.PaymentPending {
		return nil
	}
	order.PaymentStatus = entity.PaymentCompleted
	order.OrderStatus = OrderStatusCompleted
	return nil
}
