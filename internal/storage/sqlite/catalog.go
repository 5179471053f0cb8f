package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/catalog"
	"github.com/openretail/settlement/internal/pricing"
)

// CatalogRepository is the SQLite implementation of catalog.Repository.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const productColumns = `
	id, name, unit_price, stock, low_stock_threshold,
	promo_kind, promo_value, promo_buy_qty, promo_get_free_qty,
	promo_start, promo_end, promo_description`

func (r *CatalogRepository) Product(ctx context.Context, id string) (catalog.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(ctx, row)
	if err == sql.ErrNoRows {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("sqlite: load product %q: %w", id, err)
	}
	return p, nil
}

func (r *CatalogRepository) Products(ctx context.Context) ([]catalog.Product, error) {
	return r.queryProducts(ctx, `SELECT`+productColumns+` FROM products ORDER BY name`)
}

func (r *CatalogRepository) LowStock(ctx context.Context) ([]catalog.Product, error) {
	return r.queryProducts(ctx,
		`SELECT`+productColumns+` FROM products WHERE stock <= low_stock_threshold ORDER BY stock`)
}

func (r *CatalogRepository) Save(ctx context.Context, p catalog.Product) error {
	var (
		promoKind, promoValue, promoStart, promoEnd, promoDesc any
		promoBuy, promoFree                                    any
	)
	if promo := p.Promotion; promo != nil {
		promoKind = string(promo.Kind)
		promoValue = promo.Value.String()
		promoStart = formatTime(promo.StartTime)
		promoEnd = formatTime(promo.EndTime)
		promoDesc = nullableString(promo.Description)
		if promo.Kind == pricing.KindBuyXGetY {
			promoBuy = promo.BuyQuantity
			promoFree = promo.GetFreeQuantity
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit_price = excluded.unit_price,
			stock = excluded.stock,
			low_stock_threshold = excluded.low_stock_threshold,
			promo_kind = excluded.promo_kind,
			promo_value = excluded.promo_value,
			promo_buy_qty = excluded.promo_buy_qty,
			promo_get_free_qty = excluded.promo_get_free_qty,
			promo_start = excluded.promo_start,
			promo_end = excluded.promo_end,
			promo_description = excluded.promo_description`,
		p.ID, p.Name, p.UnitPrice.String(), p.Stock, p.LowStockThreshold,
		promoKind, promoValue, promoBuy, promoFree, promoStart, promoEnd, promoDesc,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save product %q: %w", p.ID, err)
	}
	return nil
}

func (r *CatalogRepository) queryProducts(ctx context.Context, query string) ([]catalog.Product, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(ctx context.Context, row rowScanner) (catalog.Product, error) {
	var (
		p                   catalog.Product
		price               string
		kind, value         sql.NullString
		buyQty, freeQty     sql.NullInt64
		start, end, descrip sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.LowStockThreshold,
		&kind, &value, &buyQty, &freeQty, &start, &end, &descrip)
	if err != nil {
		return catalog.Product{}, err
	}

	p.UnitPrice, err = decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("unit price %q: %w", price, err)
	}

	if kind.Valid {
		p.Promotion = rebuildPromotion(ctx, p.ID, kind.String, value, buyQty, freeQty, start, end, descrip)
	}
	return p, nil
}

// rebuildPromotion reconstructs the stored promotion through the validating
// constructors. A row that no longer passes validation prices at full price
// and is logged as an anomaly, never returned as an error: bad promotion
// data must not block selling the product.
func rebuildPromotion(ctx context.Context, productID, kind string, value sql.NullString, buyQty, freeQty sql.NullInt64, start, end, descrip sql.NullString) *pricing.Promotion {
	anomaly := func(err error) *pricing.Promotion {
		slog.WarnContext(ctx, "stored promotion is malformed, ignoring it",
			"product_id", productID, "kind", kind, "error", err)
		return nil
	}

	startAt, err := parseTime(start.String)
	if err != nil {
		return anomaly(err)
	}
	endAt, err := parseTime(end.String)
	if err != nil {
		return anomaly(err)
	}

	switch pricing.Kind(kind) {
	case pricing.KindPercentage, pricing.KindFixed:
		v, err := decimal.NewFromString(value.String)
		if err != nil {
			return anomaly(err)
		}
		var promo pricing.Promotion
		if pricing.Kind(kind) == pricing.KindPercentage {
			promo, err = pricing.NewPercentage(v, startAt, endAt, descrip.String)
		} else {
			promo, err = pricing.NewFixed(v, startAt, endAt, descrip.String)
		}
		if err != nil {
			return anomaly(err)
		}
		return &promo
	case pricing.KindBuyXGetY:
		promo, err := pricing.NewBuyXGetY(buyQty.Int64, freeQty.Int64, startAt, endAt, descrip.String)
		if err != nil {
			return anomaly(err)
		}
		return &promo
	default:
		return anomaly(fmt.Errorf("unknown promotion kind %q", kind))
	}
}
