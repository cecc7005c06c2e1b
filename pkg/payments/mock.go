package payments

import (
	"context"
	"sync"
)

// MockClient is a mock payment provider for testing
type MockClient struct {
	mu          sync.Mutex
	payments    map[string]Payment
	strict      bool // unknown refs fail instead of auto-settling
	confirmErr  error
	refundErr   error
	checkoutURL string
	refunds     []RefundRequest
	onConfirm   func(ref string)
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithPayment registers a payment the provider knows about and makes the
// mock strict about unknown references.
func WithPayment(p Payment) MockOption {
	return func(m *MockClient) {
		m.payments[p.Ref] = p
		m.strict = true
	}
}

// WithConfirmError sets an error to return from Confirm
func WithConfirmError(err error) MockOption {
	return func(m *MockClient) {
		m.confirmErr = err
	}
}

// WithRefundError sets an error to return from Refund
func WithRefundError(err error) MockOption {
	return func(m *MockClient) {
		m.refundErr = err
	}
}

// WithCheckoutURL sets the checkout base URL
func WithCheckoutURL(u string) MockOption {
	return func(m *MockClient) {
		m.checkoutURL = u
	}
}

// NewMockClient creates a mock provider. Without WithPayment every
// reference is treated as a settled payment of the expected amount.
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		payments:    make(map[string]Payment),
		checkoutURL: "https://pay.example.test/checkout",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddPayment registers a payment after construction
func (m *MockClient) AddPayment(p Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.Ref] = p
	m.strict = true
}

// OnConfirm registers fn to run at the start of every Confirm call, before
// the payment is looked up. It stands in for the time a provider takes to
// answer.
func (m *MockClient) OnConfirm(fn func(ref string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConfirm = fn
}

func (m *MockClient) Confirm(ctx context.Context, ref, payerID string, amount int64) (*Payment, error) {
	m.mu.Lock()
	hook := m.onConfirm
	m.mu.Unlock()
	if hook != nil {
		hook(ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	p, ok := m.payments[ref]
	if !ok {
		if m.strict || ref == "" {
			return nil, ErrUnknownPayment
		}
		p = Payment{Ref: ref, PayerID: payerID, Amount: amount, Status: StatusSucceeded}
	}
	if err := verify(&p, payerID, amount); err != nil {
		return &p, err
	}
	return &p, nil
}

func (m *MockClient) Refund(ctx context.Context, req RefundRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunds = append(m.refunds, req)
	return nil
}

func (m *MockClient) CheckoutURL(auctionID, participantID string, amount int64) string {
	return checkoutURL(m.checkoutURL, auctionID, participantID, amount)
}

// Refunds returns the refunds requested so far
func (m *MockClient) Refunds() []RefundRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RefundRequest, len(m.refunds))
	copy(out, m.refunds)
	return out
}

var _ Client = (*MockClient)(nil)
