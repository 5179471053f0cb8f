// Package sqlite persists the settlement engine's state in a single SQLite
// database: catalog snapshot, sales, the append-only movement ledger, the
// movement outbox, loyalty cards, and the settlement audit log.
//
// WAL mode is enabled on Open so readers never block the single writer;
// the outbox drainer writes while HTTP handlers read.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	// Register the pure-Go SQLite driver; no CGO needed, which keeps the
	// binary trivially cross-compilable.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    unit_price          TEXT NOT NULL,
    stock               INTEGER NOT NULL DEFAULT 0,
    low_stock_threshold INTEGER NOT NULL DEFAULT 0,

    -- Promotion columns are NULL when no promotion is attached. The shape
    -- is validated on read; a row that fails validation prices at full
    -- price and is logged as an anomaly.
    promo_kind          TEXT,
    promo_value         TEXT,
    promo_buy_qty       INTEGER,
    promo_get_free_qty  INTEGER,
    promo_start         TEXT,
    promo_end           TEXT,
    promo_description   TEXT
);

CREATE TABLE IF NOT EXISTS sales (
    id              TEXT PRIMARY KEY,
    receipt_number  TEXT NOT NULL UNIQUE,
    subtotal        TEXT NOT NULL,
    total           TEXT NOT NULL,
    payment_method  TEXT NOT NULL,
    amount_tendered TEXT NOT NULL,
    change_given    TEXT NOT NULL,
    loyalty_card_id TEXT,
    points_earned   INTEGER NOT NULL DEFAULT 0,
    employee_id     TEXT NOT NULL,
    created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sale_lines (
    sale_id      TEXT NOT NULL REFERENCES sales(id),
    position     INTEGER NOT NULL,
    product_id   TEXT NOT NULL,
    product_name TEXT NOT NULL,
    quantity     INTEGER NOT NULL,
    unit_price   TEXT NOT NULL,
    amount       TEXT NOT NULL,
    PRIMARY KEY (sale_id, position)
);

-- Append-only: rows are never updated or deleted, corrections are new rows.
CREATE TABLE IF NOT EXISTS stock_movements (
    id              TEXT PRIMARY KEY,
    product_id      TEXT NOT NULL,
    delta           INTEGER NOT NULL,
    kind            TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    employee_id     TEXT NOT NULL DEFAULT '',
    reference       TEXT NOT NULL DEFAULT '',
    prior_stock     INTEGER NOT NULL,
    resulting_stock INTEGER NOT NULL,
    occurred_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_movements_product
    ON stock_movements(product_id, occurred_at);

-- One decrement per sale line, ever. Backstop for the outbox applier's
-- duplicate check.
CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_movements_sale_line
    ON stock_movements(reference, product_id) WHERE kind = 'sale-decrement';

-- Written in the same transaction as the sale; drained asynchronously.
CREATE TABLE IF NOT EXISTS movement_outbox (
    sale_id        TEXT NOT NULL,
    product_id     TEXT NOT NULL,
    receipt_number TEXT NOT NULL,
    quantity       INTEGER NOT NULL,
    employee_id    TEXT NOT NULL DEFAULT '',
    attempts       INTEGER NOT NULL DEFAULT 0,
    last_error     TEXT NOT NULL DEFAULT '',
    applied_at     TEXT,
    created_at     TEXT NOT NULL,
    PRIMARY KEY (sale_id, product_id)
);

CREATE TABLE IF NOT EXISTS loyalty_cards (
    id            TEXT PRIMARY KEY,
    number        TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    tier          TEXT NOT NULL,
    points        INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL,
    last_used     TEXT
);

-- Append-only audit trail of settlement phase transitions, correlated with
-- distributed traces via trace_id/span_id.
CREATE TABLE IF NOT EXISTS settlement_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    settlement_id TEXT NOT NULL,
    phase         TEXT NOT NULL,
    detail        TEXT NOT NULL DEFAULT '',
    trace_id      TEXT NOT NULL DEFAULT '',
    span_id       TEXT NOT NULL DEFAULT '',
    at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlement_log_settlement
    ON settlement_log(settlement_id, at);
`

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// The modernc driver registers as "sqlite", not "sqlite3".
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return db, nil
}

// formatTime renders timestamps the way every table stores them: RFC3339
// TEXT in UTC (SQLite has no native datetime type).
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

// nullableString maps "" to NULL so optional columns stay clean.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
