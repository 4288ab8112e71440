package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// Product represents a bookable property listing (a hotel, villa or room
// category) as stored in the catalog.
type Product struct {
	ID                 string
	Name               string
	CommissionPercent  decimal.Decimal
	CancellationPolicy string
	Capacity           int
	PricePerNight      decimal.Decimal
	Currency           string
}

// Variant is a concrete room/plan variation of a product with its own
// capacity and nightly price.
type Variant struct {
	ID            string
	ProductID     string
	Name          string
	Capacity      int
	PricePerNight decimal.Decimal
	ExtraBed      bool
	ExtraBedPrice decimal.Decimal
}

// Repository defines read operations for the catalog. The order core only
// reads from the catalog to validate references and capture snapshots;
// catalog CRUD lives outside this module.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// GetVariant resolves a variant that must belong to the given product.
	GetVariant(ctx context.Context, id, productID string) (*Variant, error)
}
