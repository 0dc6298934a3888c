package domain

// CatalogItem is a redeemable product. The catalog is read-only to the claim path.
type CatalogItem struct {
	ID                string
	Title             string
	Description       string
	PriceCents        int64
	Currency          string
	Category          string
	ProviderProductID string
	ImageURL          string
	Popularity        int
	Active            bool
}
