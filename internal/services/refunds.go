package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/pkg/payments"
)

// RefundRepository defines the repository methods needed to record refunds
type RefundRepository interface {
	CreateRefund(ctx context.Context, ref *models.Refund) error
}

// refunder records a refund and forwards it to the payment provider. The
// stored record is the source of truth; a provider failure only delays the
// payout.
type refunder struct {
	*Runtime
	repo     RefundRepository
	payments payments.Client
}

// refundID is stable for a payment and reason, so retries collapse into
// one record and one provider request
func refundID(auctionID, participantID, paymentRef, reason string) string {
	name := strings.Join([]string{auctionID, participantID, paymentRef, reason}, "/")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (r *refunder) refund(ctx context.Context, auctionID, participantID, paymentRef string, amount int64, reason string, now time.Time) error {
	ref := &models.Refund{
		ID:            refundID(auctionID, participantID, paymentRef, reason),
		AuctionID:     auctionID,
		ParticipantID: participantID,
		PaymentRef:    paymentRef,
		Amount:        amount,
		Reason:        reason,
		CreatedAt:     now,
	}
	if err := r.repo.CreateRefund(ctx, ref); err != nil {
		return err
	}
	r.Metrics.Refunds.WithLabelValues(reason).Inc()

	err := r.payments.Refund(ctx, payments.RefundRequest{
		PaymentRef:     paymentRef,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: ref.ID,
	})
	if err != nil {
		r.Log.Warn("Refund recorded but provider request failed", "auction_id", auctionID, "participant_id", participantID, "payment_ref", paymentRef, "error", err)
		return nil
	}
	r.Log.Info("Refund issued", "auction_id", auctionID, "participant_id", participantID, "amount", amount, "reason", reason)
	return nil
}
