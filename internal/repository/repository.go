package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Repository provides data access methods
type Repository struct {
	db     *sql.DB
	driver string
}

// New opens a SQLite repository at dbPath
func New(dbPath string) (*Repository, error) {
	return Open(DriverSQLite, dbPath)
}

// Open creates a Repository for the given driver and DSN and applies migrations
func Open(driver, dsn string) (*Repository, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, err
		}
		db.SetMaxOpenConns(1) // SQLite works best with single connection
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	repo := &Repository{db: db, driver: driver}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Driver returns the database driver name
func (r *Repository) Driver() string {
	return r.driver
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for postgres
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// migrate runs database migrations. Statements are written to run
// unchanged on SQLite and PostgreSQL.
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS auctions (
			id TEXT PRIMARY KEY,
			slot_start BIGINT NOT NULL,
			prize_value BIGINT NOT NULL,
			fee_box_a BIGINT NOT NULL,
			fee_box_b BIGINT NOT NULL,
			base_min_bid BIGINT NOT NULL DEFAULT 0,
			round_count INTEGER NOT NULL,
			round_duration_ms BIGINT NOT NULL,
			cutoff_percentages TEXT NOT NULL,
			claim_window_ms BIGINT NOT NULL,
			status TEXT NOT NULL,
			winners_announced BOOLEAN NOT NULL DEFAULT FALSE,
			early_completion BOOLEAN NOT NULL DEFAULT FALSE,
			claim_state TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			completed_at BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			auction_id TEXT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
			round_number INTEGER NOT NULL,
			opens_at BIGINT NOT NULL,
			closes_at BIGINT NOT NULL,
			status TEXT NOT NULL,
			highest_bid BIGINT NOT NULL DEFAULT 0,
			bid_count INTEGER NOT NULL DEFAULT 0,
			qualified TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (auction_id, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			auction_id TEXT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
			participant_id TEXT NOT NULL,
			entry_fee BIGINT NOT NULL,
			payment_ref TEXT NOT NULL,
			paid_at BIGINT NOT NULL,
			joined_at BIGINT NOT NULL,
			PRIMARY KEY (auction_id, participant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id TEXT PRIMARY KEY,
			auction_id TEXT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
			participant_id TEXT NOT NULL,
			round_number INTEGER NOT NULL,
			amount BIGINT NOT NULL,
			placed_at BIGINT NOT NULL,
			valid BOOLEAN NOT NULL DEFAULT TRUE,
			UNIQUE (auction_id, participant_id, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS claims (
			auction_id TEXT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			participant_id TEXT NOT NULL,
			final_bid BIGINT NOT NULL,
			cumulative_total BIGINT NOT NULL,
			status TEXT NOT NULL,
			window_start BIGINT,
			window_end BIGINT,
			payment_ref TEXT NOT NULL DEFAULT '',
			paid_at BIGINT,
			PRIMARY KEY (auction_id, rank)
		)`,
		`CREATE TABLE IF NOT EXISTS refunds (
			id TEXT PRIMARY KEY,
			auction_id TEXT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
			participant_id TEXT NOT NULL,
			payment_ref TEXT NOT NULL,
			amount BIGINT NOT NULL,
			reason TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_auctions_slot ON auctions(slot_start)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_round ON bids(auction_id, round_number)`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_auction ON refunds(auction_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Time helpers ====================

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}
