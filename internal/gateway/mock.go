package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Mock is an in-process gateway used in development and tests. Orders
// start pending; Confirm moves them, mirroring what a sandbox payment
// page would do.
type Mock struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]*mockOrder // by token
}

type mockOrder struct {
	token         string
	commerceOrder string
	flowOrderID   string
	amount        int64
	status        Status
}

func NewMock() *Mock {
	return &Mock{orders: make(map[string]*mockOrder)}
}

func (m *Mock) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	token := fmt.Sprintf("mock-token-%06d", m.seq)
	order := &mockOrder{
		token:         token,
		commerceOrder: req.CommerceOrder,
		flowOrderID:   fmt.Sprintf("%d", 100000+m.seq),
		amount:        req.Amount,
		status:        StatusPending,
	}
	m.orders[token] = order

	return OrderResponse{
		RedirectURL: "/mock-pay?token=" + token,
		Token:       token,
		FlowOrderID: order.flowOrderID,
	}, nil
}

func (m *Mock) GetStatus(ctx context.Context, token string) (StatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[token]
	if !ok {
		return StatusResponse{}, &ErrGateway{Op: "get-status", Err: fmt.Errorf("unknown token %s", token)}
	}

	payload, _ := json.Marshal(map[string]any{
		"token":         order.token,
		"commerceOrder": order.commerceOrder,
		"flowOrder":     order.flowOrderID,
		"amount":        order.amount,
		"status":        order.status.String(),
	})

	return StatusResponse{
		Status:        order.status,
		CommerceOrder: order.commerceOrder,
		FlowOrderID:   order.flowOrderID,
		Amount:        order.amount,
		RawPayload:    string(payload),
	}, nil
}

// Confirm simulates the customer finishing on the payment page.
// Action is one of pay, reject, cancel.
func (m *Mock) Confirm(token string, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[token]
	if !ok {
		return fmt.Errorf("unknown token %s", token)
	}

	switch action {
	case "pay":
		order.status = StatusPaid
	case "reject":
		order.status = StatusRejected
	case "cancel":
		order.status = StatusCanceled
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// TokenFor returns the token of the most recent order for a booking id.
func (m *Mock) TokenFor(commerceOrder string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found string
	for token, order := range m.orders {
		if order.commerceOrder == commerceOrder {
			if found == "" || token > found {
				found = token
			}
		}
	}
	return found, found != ""
}

// VerifySignature always accepts in mock mode.
func (m *Mock) VerifySignature(params map[string]string, signature string) bool { return true }
