package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openretail/settlement/internal/loyalty"
)

// LoyaltyStore is the SQLite implementation of loyalty.Store.
type LoyaltyStore struct {
	db *sql.DB
}

func NewLoyalty(db *sql.DB) *LoyaltyStore {
	return &LoyaltyStore{db: db}
}

func (s *LoyaltyStore) Card(ctx context.Context, id string) (loyalty.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, customer_name, tier, points, created_at, COALESCE(last_used, '')
		FROM   loyalty_cards WHERE id = ?`, id)

	var (
		c                 loyalty.Card
		created, lastUsed string
	)
	err := row.Scan(&c.ID, &c.Number, &c.CustomerName, &c.Tier, &c.Points, &created, &lastUsed)
	if err == sql.ErrNoRows {
		return loyalty.Card{}, loyalty.ErrCardNotFound
	}
	if err != nil {
		return loyalty.Card{}, fmt.Errorf("sqlite: load card %q: %w", id, err)
	}

	if c.CreatedAt, err = parseTime(created); err != nil {
		return loyalty.Card{}, err
	}
	if lastUsed != "" {
		t, err := parseTime(lastUsed)
		if err != nil {
			return loyalty.Card{}, err
		}
		c.LastUsed = &t
	}
	return c, nil
}

func (s *LoyaltyStore) Save(ctx context.Context, c loyalty.Card) error {
	var lastUsed any
	if c.LastUsed != nil {
		lastUsed = formatTime(*c.LastUsed)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_cards (id, number, customer_name, tier, points, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			customer_name = excluded.customer_name,
			tier = excluded.tier,
			points = excluded.points,
			last_used = excluded.last_used`,
		c.ID, c.Number, c.CustomerName, c.Tier, c.Points, formatTime(c.CreatedAt), lastUsed,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save card %q: %w", c.ID, err)
	}
	return nil
}
