package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Condition describes the physical state of an offered item
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionUsed    Condition = "used"
	ConditionUnknown Condition = "unknown"
)

// ParseCondition maps free-form source values onto a Condition
func ParseCondition(s string) Condition {
	switch Condition(s) {
	case ConditionNew, ConditionUsed:
		return Condition(s)
	default:
		return ConditionUnknown
	}
}

// Product represents a tracked item in the catalog.
// (StoreID, Link) is its natural key.
type Product struct {
	ID         int64           `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	StoreID    int             `json:"store_id" db:"store_id"`
	StoreName  string          `json:"store_name,omitempty" db:"store_name"`
	CategoryID *int            `json:"category_id" db:"category_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Rating     float64         `json:"rating" db:"rating"`
	Link       string          `json:"link" db:"link"`
	ImageURL   string          `json:"image_url" db:"image_url"`
	Condition  Condition       `json:"condition" db:"condition"`
	IsFavorite bool            `json:"is_favorite" db:"is_favorite"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// PriceHistory is one append-only price observation of a product
type PriceHistory struct {
	ID         int64           `json:"id" db:"id"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}
