package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification records a price move of a tracked product
type Notification struct {
	ID          int64           `json:"id" db:"id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name,omitempty" db:"product_name"`
	Message     string          `json:"message" db:"message"`
	PriceChange decimal.Decimal `json:"price_change" db:"price_change"`
	OldPrice    decimal.Decimal `json:"old_price" db:"old_price"`
	NewPrice    decimal.Decimal `json:"new_price" db:"new_price"`
	IsRead      bool            `json:"is_read" db:"is_read"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
