package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openretail/settlement/internal/pkg/cache"
)

const productTTL = 30 * time.Second

// CachedRepository is a read-through cache over a Repository. Only single
// product lookups are cached; list queries always hit the store. Stock
// writers must call Invalidate so the next read sees the fresh quantity.
//
// A nil cache degrades to the inner repository, mirroring how optional
// collaborators are wired elsewhere.
type CachedRepository struct {
	inner Repository
	cache cache.Cache
}

func NewCachedRepository(inner Repository, c cache.Cache) *CachedRepository {
	return &CachedRepository{inner: inner, cache: c}
}

func (r *CachedRepository) Product(ctx context.Context, id string) (Product, error) {
	if r.cache == nil {
		return r.inner.Product(ctx, id)
	}

	key := r.cache.Key("product", id)
	if raw, err := r.cache.Get(ctx, key); err == nil && raw != "" {
		var p Product
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return p, nil
		}
	} else if err != nil {
		slog.WarnContext(ctx, "product cache read failed", "product_id", id, "error", err)
	}

	p, err := r.inner.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := r.cache.Set(ctx, key, string(raw), productTTL); err != nil {
			slog.WarnContext(ctx, "product cache write failed", "product_id", id, "error", err)
		}
	}
	return p, nil
}

func (r *CachedRepository) Products(ctx context.Context) ([]Product, error) {
	return r.inner.Products(ctx)
}

func (r *CachedRepository) LowStock(ctx context.Context) ([]Product, error) {
	return r.inner.LowStock(ctx)
}

func (r *CachedRepository) Save(ctx context.Context, p Product) error {
	if err := r.inner.Save(ctx, p); err != nil {
		return err
	}
	r.Invalidate(context.WithoutCancel(ctx), p.ID)
	return nil
}

// Invalidate drops the cached copy of a product. Safe on a nil cache.
func (r *CachedRepository) Invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, r.cache.Key("product", id)); err != nil {
		slog.WarnContext(ctx, "product cache invalidation failed", "product_id", id, "error", err)
	}
}
