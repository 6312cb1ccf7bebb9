package domain

import "github.com/shopspring/decimal"

// Listing is one raw offer returned by a source for a query.
// It lives only for the duration of a single search.
type Listing struct {
	Name       string          `json:"name" validate:"required"`
	StoreID    int             `json:"store_id" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price"`
	Rating     float64         `json:"rating" validate:"gte=0,lte=5"`
	Link       string          `json:"link" validate:"required"`
	ImageURL   string          `json:"image_url,omitempty"`
	Condition  Condition       `json:"condition"`
	CategoryID int             `json:"category_id"`
}
