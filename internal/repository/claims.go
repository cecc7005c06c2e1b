package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// RankingRecord is everything decided when an auction's winners are ranked
type RankingRecord struct {
	AuctionID       string
	EarlyCompletion bool
	// SkippedRounds are closed without bids because winners were announced
	SkippedRounds []int
	Claims        []models.Claim
	ClaimState    models.ClaimState
	CompletedAt   time.Time
}

// ==================== Claim Methods ====================

const claimColumns = `auction_id, rank, participant_id, final_bid, cumulative_total, status,
	window_start, window_end, payment_ref, paid_at`

// RecordRanking completes a live auction and stores its claims atomically.
// Replaying the same record is a no-op for claims that already exist. An
// auction that left LIVE for any other status yields ErrConflict and nothing
// is written.
func (r *Repository) RecordRanking(ctx context.Context, rec RankingRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, n := range rec.SkippedRounds {
		if _, err := tx.ExecContext(ctx, r.rebind(`
			UPDATE rounds SET status = ?, highest_bid = 0, bid_count = 0
			WHERE auction_id = ? AND round_number = ?
		`), string(models.RoundCompleted), rec.AuctionID, n); err != nil {
			return err
		}
	}

	for _, c := range rec.Claims {
		if _, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO claims (`+claimColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`), rec.AuctionID, c.Rank, c.ParticipantID, c.FinalBid, c.CumulativeTotal, string(c.Status),
			nullMillis(c.WindowStart), nullMillis(c.WindowEnd), c.PaymentRef, nullMillis(c.PaidAt)); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, r.rebind(`
		UPDATE auctions
		SET status = ?, winners_announced = ?, early_completion = ?, claim_state = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)
	`), string(models.AuctionCompleted), true, rec.EarlyCompletion, string(rec.ClaimState),
		toMillis(rec.CompletedAt), rec.AuctionID, string(models.AuctionLive), string(models.AuctionCompleted))
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return statusConflict(ctx, tx, r.rebind, rec.AuctionID, models.AuctionLive, models.AuctionCompleted)
	}

	return tx.Commit()
}

// UpdateClaims writes claim changes and the new cascade state atomically
func (r *Repository) UpdateClaims(ctx context.Context, auctionID string, state models.ClaimState, claims ...models.Claim) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range claims {
		if _, err := tx.ExecContext(ctx, r.rebind(`
			UPDATE claims
			SET status = ?, window_start = ?, window_end = ?, payment_ref = ?, paid_at = ?
			WHERE auction_id = ? AND rank = ?
		`), string(c.Status), nullMillis(c.WindowStart), nullMillis(c.WindowEnd), c.PaymentRef,
			nullMillis(c.PaidAt), auctionID, c.Rank); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, r.rebind(`UPDATE auctions SET claim_state = ? WHERE id = ?`),
		string(state), auctionID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListClaims returns the claims of an auction ordered by rank
func (r *Repository) ListClaims(ctx context.Context, auctionID string) ([]models.Claim, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+claimColumns+` FROM claims
		WHERE auction_id = ? ORDER BY rank`), auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := []models.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// GetClaim retrieves the claim for one rank
func (r *Repository) GetClaim(ctx context.Context, auctionID string, rank int) (*models.Claim, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+claimColumns+` FROM claims
		WHERE auction_id = ? AND rank = ?`), auctionID, rank)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		c                            models.Claim
		status                       string
		windowStart, windowEnd, paid sql.NullInt64
	)
	if err := row.Scan(&c.AuctionID, &c.Rank, &c.ParticipantID, &c.FinalBid, &c.CumulativeTotal, &status,
		&windowStart, &windowEnd, &c.PaymentRef, &paid); err != nil {
		return nil, err
	}
	c.Status = models.ClaimStatus(status)
	c.WindowStart = timePtr(windowStart)
	c.WindowEnd = timePtr(windowEnd)
	c.PaidAt = timePtr(paid)
	return &c, nil
}

// ==================== Refund Methods ====================

// CreateRefund records money owed back to a participant
func (r *Repository) CreateRefund(ctx context.Context, ref *models.Refund) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO refunds (id, auction_id, participant_id, payment_ref, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), ref.ID, ref.AuctionID, ref.ParticipantID, ref.PaymentRef, ref.Amount, ref.Reason, toMillis(ref.CreatedAt))
	return err
}

// ListRefunds returns the refunds recorded for an auction
func (r *Repository) ListRefunds(ctx context.Context, auctionID string) ([]models.Refund, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, auction_id, participant_id, payment_ref, amount, reason, created_at
		FROM refunds WHERE auction_id = ? ORDER BY created_at, id
	`), auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := []models.Refund{}
	for rows.Next() {
		var (
			ref       models.Refund
			createdAt int64
		)
		if err := rows.Scan(&ref.ID, &ref.AuctionID, &ref.ParticipantID, &ref.PaymentRef, &ref.Amount,
			&ref.Reason, &createdAt); err != nil {
			return nil, err
		}
		ref.CreatedAt = fromMillis(createdAt)
		refunds = append(refunds, ref)
	}
	return refunds, rows.Err()
}
