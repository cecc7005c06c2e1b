package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/SudarshanaRao/dream60/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewWithLevel(logger.ParseLevel("error"))
}

func TestHTTPClient_Confirm_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/payments/pay-1" {
			t.Errorf("expected path /payments/pay-1, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Payment{Ref: "pay-1", PayerID: "p-1", Amount: 40, Status: StatusSucceeded})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "https://checkout", 0, testLogger())
	p, err := client.Confirm(context.Background(), "pay-1", "p-1", 40)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if p.Amount != 40 {
		t.Errorf("expected amount 40, got %d", p.Amount)
	}
}

func TestHTTPClient_Confirm_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payment Payment
		want    error
	}{
		{"unknown", http.StatusNotFound, Payment{}, ErrUnknownPayment},
		{"pending", http.StatusOK, Payment{Ref: "x", PayerID: "p-1", Amount: 40, Status: StatusPending}, ErrNotSettled},
		{"wrong amount", http.StatusOK, Payment{Ref: "x", PayerID: "p-1", Amount: 39, Status: StatusSucceeded}, ErrAmountMismatch},
		{"wrong payer", http.StatusOK, Payment{Ref: "x", PayerID: "p-2", Amount: 40, Status: StatusSucceeded}, ErrPayerMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.payment)
			}))
			defer server.Close()

			client := NewHTTPClient(server.URL, "", 0, testLogger())
			_, err := client.Confirm(context.Background(), "x", "p-1", 40)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !IsRejection(err) {
				t.Errorf("expected %v to be a payment rejection", err)
			}
		})
	}
}

func TestHTTPClient_Confirm_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", 0, testLogger())
	_, err := client.Confirm(context.Background(), "x", "p-1", 40)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRejection(err) {
		t.Error("provider outage must not be classified as a payment rejection")
	}
}

func TestHTTPClient_Confirm_ConnectionError(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", "", 0, testLogger())
	if _, err := client.Confirm(context.Background(), "x", "p-1", 40); err == nil {
		t.Error("expected connection error")
	}
}

func TestHTTPClient_Refund(t *testing.T) {
	var got RefundRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/refunds" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", 0, testLogger())
	err := client.Refund(context.Background(), RefundRequest{PaymentRef: "late-1", Amount: 500, Reason: "LATE_CLAIM", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if got.PaymentRef != "late-1" || got.Amount != 500 || got.IdempotencyKey != "k1" {
		t.Errorf("unexpected refund body: %+v", got)
	}
}

func TestCheckoutURL(t *testing.T) {
	client := NewHTTPClient("http://api", "https://pay.example/checkout", 0, testLogger())
	raw := client.CheckoutURL("a-1", "p 1", 900)

	if !strings.HasPrefix(raw, "https://pay.example/checkout?") {
		t.Fatalf("unexpected checkout url: %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("auctionId") != "a-1" || q.Get("participantId") != "p 1" || q.Get("amount") != "900" {
		t.Errorf("unexpected query: %v", q)
	}
}

func TestAcceptAllClient(t *testing.T) {
	client := NewAcceptAllClient("https://checkout", testLogger())

	p, err := client.Confirm(context.Background(), "ref", "p-1", 40)
	if err != nil || p.Amount != 40 {
		t.Errorf("expected settled payment, got %+v %v", p, err)
	}
	if _, err := client.Confirm(context.Background(), "", "p-1", 40); !errors.Is(err, ErrUnknownPayment) {
		t.Errorf("expected ErrUnknownPayment for empty ref, got %v", err)
	}
	if err := client.Refund(context.Background(), RefundRequest{PaymentRef: "ref", Amount: 40}); err != nil {
		t.Errorf("unexpected refund error: %v", err)
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	if _, err := m.Confirm(context.Background(), "any", "p-1", 40); err != nil {
		t.Errorf("expected lenient mock to accept, got %v", err)
	}

	strict := NewMockClient(WithPayment(Payment{Ref: "known", PayerID: "p-1", Amount: 500, Status: StatusSucceeded}))
	if _, err := strict.Confirm(context.Background(), "other", "p-1", 500); !errors.Is(err, ErrUnknownPayment) {
		t.Errorf("expected ErrUnknownPayment, got %v", err)
	}
	if _, err := strict.Confirm(context.Background(), "known", "p-1", 499); !errors.Is(err, ErrAmountMismatch) {
		t.Errorf("expected ErrAmountMismatch, got %v", err)
	}

	strict.Refund(context.Background(), RefundRequest{PaymentRef: "known", Amount: 500})
	if len(strict.Refunds()) != 1 {
		t.Errorf("expected refund to be recorded")
	}

	failing := NewMockClient(WithConfirmError(errors.New("timeout")), WithRefundError(errors.New("down")))
	if _, err := failing.Confirm(context.Background(), "x", "p", 1); err == nil {
		t.Error("expected confirm error")
	}
	if err := failing.Refund(context.Background(), RefundRequest{}); err == nil {
		t.Error("expected refund error")
	}
}

func TestMockClient_OnConfirmRunsBeforeLookup(t *testing.T) {
	m := NewMockClient(WithPayment(Payment{Ref: "known", PayerID: "p-1", Amount: 500, Status: StatusSucceeded}))

	var seen []string
	m.OnConfirm(func(ref string) {
		seen = append(seen, ref)
		// the hook may call back into the client
		m.Refund(context.Background(), RefundRequest{PaymentRef: ref})
	})

	if _, err := m.Confirm(context.Background(), "known", "p-1", 500); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != "known" {
		t.Errorf("expected hook to see the reference, got %v", seen)
	}
	if len(m.Refunds()) != 1 {
		t.Errorf("expected the refund issued from the hook, got %d", len(m.Refunds()))
	}
}
