package repository

import (
	"context"
	"database/sql"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// ==================== Participant Methods ====================

// AddParticipant records a paid entry. Returns created=false when the
// participant already joined this auction; the existing row is untouched.
func (r *Repository) AddParticipant(ctx context.Context, p *models.Participant) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO participants (auction_id, participant_id, entry_fee, payment_ref, paid_at, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), p.AuctionID, p.ParticipantID, p.EntryFee, p.PaymentRef, toMillis(p.PaidAt), toMillis(p.JoinedAt))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// GetParticipant retrieves a participant with the derived cumulative total
func (r *Repository) GetParticipant(ctx context.Context, auctionID, participantID string) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT p.auction_id, p.participant_id, p.entry_fee, p.payment_ref, p.paid_at, p.joined_at,
		       COALESCE((SELECT SUM(b.amount) FROM bids b
		                 WHERE b.auction_id = p.auction_id AND b.participant_id = p.participant_id AND b.valid), 0)
		FROM participants p
		WHERE p.auction_id = ? AND p.participant_id = ?
	`), auctionID, participantID)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListParticipants returns every participant of an auction by join time
func (r *Repository) ListParticipants(ctx context.Context, auctionID string) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT p.auction_id, p.participant_id, p.entry_fee, p.payment_ref, p.paid_at, p.joined_at,
		       COALESCE((SELECT SUM(b.amount) FROM bids b
		                 WHERE b.auction_id = p.auction_id AND b.participant_id = p.participant_id AND b.valid), 0)
		FROM participants p
		WHERE p.auction_id = ?
		ORDER BY p.joined_at, p.participant_id
	`), auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// CountParticipants returns the number of paid entries
func (r *Repository) CountParticipants(ctx context.Context, auctionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM participants WHERE auction_id = ?`), auctionID).Scan(&count)
	return count, err
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p              models.Participant
		paidAt, joinAt int64
	)
	if err := row.Scan(&p.AuctionID, &p.ParticipantID, &p.EntryFee, &p.PaymentRef, &paidAt, &joinAt, &p.CumulativeTotal); err != nil {
		return nil, err
	}
	p.PaidAt = fromMillis(paidAt)
	p.JoinedAt = fromMillis(joinAt)
	return &p, nil
}

// ==================== Bid Methods ====================

const bidColumns = `id, auction_id, participant_id, round_number, amount, placed_at, valid`

// InsertBid stores a bid if the participant has none for the round yet.
// Returns created=false when the UNIQUE(auction, participant, round) key
// already holds a bid.
func (r *Repository) InsertBid(ctx context.Context, b *models.Bid) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO bids (`+bidColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), b.ID, b.AuctionID, b.ParticipantID, b.Round, b.Amount, toMillis(b.PlacedAt), b.Valid)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ListBids returns all bids of an auction
func (r *Repository) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids
		WHERE auction_id = ? ORDER BY round_number, placed_at, participant_id`, auctionID)
}

// ListRoundBids returns the bids placed in one round
func (r *Repository) ListRoundBids(ctx context.Context, auctionID string, round int) ([]models.Bid, error) {
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids
		WHERE auction_id = ? AND round_number = ? ORDER BY placed_at, participant_id`, auctionID, round)
}

// ListParticipantBids returns one participant's bids ordered by round
func (r *Repository) ListParticipantBids(ctx context.Context, auctionID, participantID string) ([]models.Bid, error) {
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids
		WHERE auction_id = ? AND participant_id = ? ORDER BY round_number`, auctionID, participantID)
}

// HighestBid returns the highest valid bid in a round, or 0 without bids
func (r *Repository) HighestBid(ctx context.Context, auctionID string, round int) (int64, error) {
	var highest int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT COALESCE(MAX(amount), 0) FROM bids WHERE auction_id = ? AND round_number = ? AND valid
	`), auctionID, round).Scan(&highest)
	return highest, err
}

func (r *Repository) queryBids(ctx context.Context, query string, args ...any) ([]models.Bid, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		var (
			b        models.Bid
			placedAt int64
		)
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.ParticipantID, &b.Round, &b.Amount, &placedAt, &b.Valid); err != nil {
			return nil, err
		}
		b.PlacedAt = fromMillis(placedAt)
		bids = append(bids, b)
	}
	return bids, rows.Err()
}
