package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SudarshanaRao/dream60/internal/models"
)

const auctionColumns = `id, slot_start, prize_value, fee_box_a, fee_box_b, base_min_bid, round_count,
	round_duration_ms, cutoff_percentages, claim_window_ms, status, winners_announced,
	early_completion, claim_state, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ==================== Auction Methods ====================

// CreateAuction inserts an auction with its rounds in one transaction.
// Returns created=false when an auction with the same id already exists.
func (r *Repository) CreateAuction(ctx context.Context, a *models.Auction, rounds []models.Round) (bool, error) {
	cutoffs, err := json.Marshal(a.CutoffPercentages)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO auctions (`+auctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), a.ID, toMillis(a.SlotStart), a.PrizeValue, a.EntryFeeBoxA, a.EntryFeeBoxB, a.BaseMinBid,
		a.RoundCount, a.RoundDuration.Milliseconds(), string(cutoffs), a.ClaimWindow.Milliseconds(),
		string(a.Status), a.WinnersAnnounced, a.EarlyCompletion, string(a.ClaimState),
		toMillis(a.CreatedAt), nullMillis(a.CompletedAt))
	if err != nil {
		return false, err
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	for _, round := range rounds {
		qualified, err := json.Marshal(nonNil(round.Qualified))
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO rounds (auction_id, round_number, opens_at, closes_at, status, highest_bid, bid_count, qualified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), a.ID, round.Number, toMillis(round.OpensAt), toMillis(round.ClosesAt), string(round.Status),
			round.HighestBid, round.BidCount, string(qualified)); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// GetAuction retrieves an auction without its rounds
func (r *Repository) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`), id)
	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAuctionsByStatus returns auctions in any of the given states ordered by slot
func (r *Repository) ListAuctionsByStatus(ctx context.Context, statuses ...models.AuctionStatus) ([]models.Auction, error) {
	if len(statuses) == 0 {
		return []models.Auction{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE status IN (`+placeholders+`) ORDER BY slot_start, id`, args...)
}

// ListAuctionsBetween returns auctions whose slot starts in [from, to)
func (r *Repository) ListAuctionsBetween(ctx context.Context, from, to time.Time) ([]models.Auction, error) {
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE slot_start >= ? AND slot_start < ? ORDER BY slot_start, id`, toMillis(from), toMillis(to))
}

// ListUnsettledAuctions returns auctions that still need engine work: not
// started, running, or completed with an open claim cascade.
func (r *Repository) ListUnsettledAuctions(ctx context.Context) ([]models.Auction, error) {
	return r.queryAuctions(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE status IN (?, ?)
		   OR (status = ? AND claim_state NOT IN (?, ?))
		ORDER BY slot_start, id`,
		string(models.AuctionUpcoming), string(models.AuctionLive), string(models.AuctionCompleted),
		string(models.ClaimClaimed), string(models.ClaimClosedUnclaimed))
}

func (r *Repository) queryAuctions(ctx context.Context, query string, args ...any) ([]models.Auction, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auctions := []models.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

// UpdateAuctionStatus moves the lifecycle status from one value to another.
// It returns ErrConflict when the auction is no longer in status from.
func (r *Repository) UpdateAuctionStatus(ctx context.Context, id string, from, to models.AuctionStatus, completedAt *time.Time) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`UPDATE auctions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`),
		string(to), nullMillis(completedAt), id, string(from))
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return statusConflict(ctx, r.db, r.rebind, id, from)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// statusConflict explains why a conditional status write matched no row
func statusConflict(ctx context.Context, q queryer, rebind func(string) string, id string, expected ...models.AuctionStatus) error {
	var status string
	err := q.QueryRowContext(ctx, rebind(`SELECT status FROM auctions WHERE id = ?`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("auction %s is %s, expected %v: %w", id, status, expected, ErrConflict)
}

// SetClaimState moves the claim cascade pointer of an auction
func (r *Repository) SetClaimState(ctx context.Context, id string, state models.ClaimState) error {
	return r.execOne(ctx, `UPDATE auctions SET claim_state = ? WHERE id = ?`, string(state), id)
}

// execOne executes an update that must touch exactly one row
func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	var (
		a                        models.Auction
		slotStart, createdAt     int64
		roundMs, claimMs         int64
		cutoffs, status, claimSt string
		completedAt              sql.NullInt64
	)
	if err := row.Scan(&a.ID, &slotStart, &a.PrizeValue, &a.EntryFeeBoxA, &a.EntryFeeBoxB, &a.BaseMinBid,
		&a.RoundCount, &roundMs, &cutoffs, &claimMs, &status, &a.WinnersAnnounced,
		&a.EarlyCompletion, &claimSt, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	a.SlotStart = fromMillis(slotStart)
	a.CreatedAt = fromMillis(createdAt)
	a.CompletedAt = timePtr(completedAt)
	a.RoundDuration = time.Duration(roundMs) * time.Millisecond
	a.ClaimWindow = time.Duration(claimMs) * time.Millisecond
	a.Status = models.AuctionStatus(status)
	a.ClaimState = models.ClaimState(claimSt)

	a.CutoffPercentages = []decimal.Decimal{}
	if err := json.Unmarshal([]byte(cutoffs), &a.CutoffPercentages); err != nil {
		return nil, err
	}
	return &a, nil
}

// ==================== Round Methods ====================

const roundColumns = `auction_id, round_number, opens_at, closes_at, status, highest_bid, bid_count, qualified`

// ListRounds returns the rounds of an auction in order
func (r *Repository) ListRounds(ctx context.Context, auctionID string) ([]models.Round, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+roundColumns+` FROM rounds
		WHERE auction_id = ? ORDER BY round_number`), auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := []models.Round{}
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, *round)
	}
	return rounds, rows.Err()
}

// GetRound retrieves one round
func (r *Repository) GetRound(ctx context.Context, auctionID string, number int) (*models.Round, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+roundColumns+` FROM rounds
		WHERE auction_id = ? AND round_number = ?`), auctionID, number)
	round, err := scanRound(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return round, err
}

// UpdateRoundStatus sets a round's status
func (r *Repository) UpdateRoundStatus(ctx context.Context, auctionID string, number int, status models.RoundStatus) error {
	return r.execOne(ctx, `UPDATE rounds SET status = ? WHERE auction_id = ? AND round_number = ?`,
		string(status), auctionID, number)
}

// CompleteRound marks a round COMPLETED and stores its summary
func (r *Repository) CompleteRound(ctx context.Context, auctionID string, number int, highest int64, count int, qualified []string) error {
	q, err := json.Marshal(nonNil(qualified))
	if err != nil {
		return err
	}
	return r.execOne(ctx, `UPDATE rounds SET status = ?, highest_bid = ?, bid_count = ?, qualified = ?
		WHERE auction_id = ? AND round_number = ?`,
		string(models.RoundCompleted), highest, count, string(q), auctionID, number)
}

func scanRound(row rowScanner) (*models.Round, error) {
	var (
		round             models.Round
		opensAt, closesAt int64
		status, qualified string
	)
	if err := row.Scan(&round.AuctionID, &round.Number, &opensAt, &closesAt, &status,
		&round.HighestBid, &round.BidCount, &qualified); err != nil {
		return nil, err
	}
	round.OpensAt = fromMillis(opensAt)
	round.ClosesAt = fromMillis(closesAt)
	round.Status = models.RoundStatus(status)
	round.Qualified = []string{}
	if err := json.Unmarshal([]byte(qualified), &round.Qualified); err != nil {
		return nil, err
	}
	return &round, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
