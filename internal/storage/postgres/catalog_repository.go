package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cimillas/giftlink/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const catalogColumns = `id, title, description, price_cents, currency, category, provider_product_id, image_url, popularity, active`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CatalogRepository reads the redeemable catalog. The claim path never writes it.
type CatalogRepository struct {
	store
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{store{pool: pool}}
}

func (r *CatalogRepository) GetItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	item, err := scanItem(r.queryRow(ctx, `SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CatalogItem{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CatalogItem{}, domain.ErrCatalogItemNotFound
		}
		return domain.CatalogItem{}, fmt.Errorf("get catalog item: %w", err)
	}
	return item, nil
}

// ListWithinBudget returns active items priced at or below maxCents, most popular first.
func (r *CatalogRepository) ListWithinBudget(ctx context.Context, maxCents int64) ([]domain.CatalogItem, error) {
	const query = `SELECT ` + catalogColumns + `
FROM catalog_items
WHERE active AND price_cents <= $1
ORDER BY popularity DESC, price_cents ASC, id`

	rows, err := r.query(ctx, query, maxCents)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate catalog: %w", rows.Err())
	}
	return items, nil
}

func scanItem(row scanner) (domain.CatalogItem, error) {
	var it domain.CatalogItem
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.PriceCents, &it.Currency,
		&it.Category, &it.ProviderProductID, &it.ImageURL, &it.Popularity, &it.Active)
	return it, err
}
