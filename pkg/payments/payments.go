// Package payments provides a client for the payment provider that settles
// entry fees and prize claims.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/SudarshanaRao/dream60/internal/logger"
)

var (
	// ErrUnknownPayment means the provider has no record of the reference
	ErrUnknownPayment = errors.New("unknown payment reference")
	// ErrNotSettled means the payment exists but has not succeeded
	ErrNotSettled = errors.New("payment not settled")
	// ErrAmountMismatch means the settled amount differs from the expected one
	ErrAmountMismatch = errors.New("payment amount mismatch")
	// ErrPayerMismatch means the payment was made by someone else
	ErrPayerMismatch = errors.New("payment made by a different payer")
)

// Status is the provider-side state of a payment
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusPending   Status = "PENDING"
	StatusFailed    Status = "FAILED"
)

// Payment is a settled or pending payment as reported by the provider
type Payment struct {
	Ref     string `json:"ref"`
	PayerID string `json:"payerId"`
	Amount  int64  `json:"amount"`
	Status  Status `json:"status"`
}

// RefundRequest is sent to the provider to return money
type RefundRequest struct {
	PaymentRef     string `json:"paymentRef"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Client defines the interface for payment provider operations
type Client interface {
	// Confirm verifies that ref is a settled payment of exactly amount by payerID
	Confirm(ctx context.Context, ref, payerID string, amount int64) (*Payment, error)
	// Refund returns amount of the payment ref to its payer
	Refund(ctx context.Context, req RefundRequest) error
	// CheckoutURL is where a participant pays amount for an auction
	CheckoutURL(auctionID, participantID string, amount int64) string
}

// verify checks a provider payment against what the engine expects
func verify(p *Payment, payerID string, amount int64) error {
	if p.Status != StatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrNotSettled, p.Status)
	}
	if payerID != "" && p.PayerID != "" && p.PayerID != payerID {
		return ErrPayerMismatch
	}
	if p.Amount != amount {
		return fmt.Errorf("%w: paid %d, expected %d", ErrAmountMismatch, p.Amount, amount)
	}
	return nil
}

// IsRejection reports whether err is a decision about the payment itself
// rather than a failure to reach the provider.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnknownPayment) || errors.Is(err, ErrNotSettled) ||
		errors.Is(err, ErrAmountMismatch) || errors.Is(err, ErrPayerMismatch)
}

// HTTPClient talks to the provider's REST API
type HTTPClient struct {
	baseURL     string
	checkoutURL string
	httpClient  *http.Client
	log         logger.Logger
}

// NewHTTPClient creates a provider client with the given request timeout
func NewHTTPClient(baseURL, checkoutURL string, timeout time.Duration, log logger.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return NewHTTPClientWithHTTPClient(baseURL, checkoutURL, &http.Client{Timeout: timeout}, log)
}

// NewHTTPClientWithHTTPClient creates a provider client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL, checkoutURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		checkoutURL: checkoutURL,
		httpClient:  httpClient,
		log:         log,
	}
}

// Confirm fetches the payment and checks it
func (c *HTTPClient) Confirm(ctx context.Context, ref, payerID string, amount int64) (*Payment, error) {
	apiURL := fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(ref))

	var p Payment
	status, err := c.do(ctx, http.MethodGet, apiURL, nil, &p)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrUnknownPayment
	}
	if err := verify(&p, payerID, amount); err != nil {
		return &p, err
	}
	return &p, nil
}

// Refund asks the provider to return money
func (c *HTTPClient) Refund(ctx context.Context, req RefundRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	status, err := c.do(ctx, http.MethodPost, c.baseURL+"/refunds", body, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return ErrUnknownPayment
	}
	return nil
}

// CheckoutURL builds the hosted checkout link for a payment
func (c *HTTPClient) CheckoutURL(auctionID, participantID string, amount int64) string {
	return checkoutURL(c.checkoutURL, auctionID, participantID, amount)
}

func checkoutURL(base, auctionID, participantID string, amount int64) string {
	q := url.Values{}
	q.Set("auctionId", auctionID)
	q.Set("participantId", participantID)
	q.Set("amount", fmt.Sprintf("%d", amount))
	return base + "?" + q.Encode()
}

// do executes a request and decodes a 2xx JSON body into response.
// A 404 is returned as a status, not an error.
func (c *HTTPClient) do(ctx context.Context, method, apiURL string, body []byte, response any) (int, error) {
	c.log.Debug("payments request", "method", method, "url", apiURL)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to payment provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("payments response", "status", resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("payment provider returned status %d: %s", resp.StatusCode, string(data))
	}

	if response != nil {
		if err := json.Unmarshal(data, response); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// AcceptAllClient treats every reference as a settled payment of the
// expected amount. It is used when no provider is configured.
type AcceptAllClient struct {
	checkoutURL string
	log         logger.Logger
}

// NewAcceptAllClient creates a client that confirms everything
func NewAcceptAllClient(checkoutURL string, log logger.Logger) *AcceptAllClient {
	return &AcceptAllClient{checkoutURL: checkoutURL, log: log}
}

func (c *AcceptAllClient) Confirm(ctx context.Context, ref, payerID string, amount int64) (*Payment, error) {
	if ref == "" {
		return nil, ErrUnknownPayment
	}
	return &Payment{Ref: ref, PayerID: payerID, Amount: amount, Status: StatusSucceeded}, nil
}

func (c *AcceptAllClient) Refund(ctx context.Context, req RefundRequest) error {
	c.log.Info("refund recorded without provider", "payment_ref", req.PaymentRef, "amount", req.Amount, "reason", req.Reason)
	return nil
}

func (c *AcceptAllClient) CheckoutURL(auctionID, participantID string, amount int64) string {
	return checkoutURL(c.checkoutURL, auctionID, participantID, amount)
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*AcceptAllClient)(nil)
)
