package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalid is matched by every ValidationError
var ErrInvalid = errors.New("invalid record")

// ValidationError names the record and field that failed validation
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Record, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(record, field, reason string) error {
	return &ValidationError{Record: record, Field: field, Reason: reason}
}

// Validate checks the required fields of a product before it is persisted
func (p Product) Validate() error {
	if p.ID == "" {
		return invalid("product", "id", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("product", "name", "is required")
	}
	if strings.TrimSpace(p.Category) == "" {
		return invalid("product", "category", "is required")
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
		return invalid("product", "price", "must be a number >= 0")
	}
	if !p.StockStatus.Valid() {
		return invalid("product", "stock_status", fmt.Sprintf("must be one of in_stock, low_stock, out_of_stock (got %q)", p.StockStatus))
	}
	if math.IsNaN(p.Rating) || p.Rating < 0 || p.Rating > 5 {
		return invalid("product", "rating", "must be between 0 and 5")
	}
	if p.CreatedAt.IsZero() {
		return invalid("product", "created_at", "is required")
	}
	return nil
}

// Validate checks a campaign before it is persisted
func (c SalesCampaign) Validate() error {
	if c.ID == "" {
		return invalid("campaign", "id", "is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("campaign", "name", "is required")
	}
	if math.IsNaN(c.DiscountPercentage) || c.DiscountPercentage <= 0 || c.DiscountPercentage >= 100 {
		return invalid("campaign", "discount_percentage", "must be greater than 0 and less than 100")
	}
	if c.StartsAt != nil && c.EndsAt != nil && !c.EndsAt.After(*c.StartsAt) {
		return invalid("campaign", "ends_at", "must be after starts_at")
	}
	return nil
}

// Validate checks a review before it is persisted
func (r Review) Validate() error {
	if r.ProductID == "" {
		return invalid("review", "product_id", "is required")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return invalid("review", "rating", "must be between 1 and 5")
	}
	return nil
}

// Validate checks a cart line before it is persisted
func (l CartLine) Validate() error {
	if l.ProductID == "" {
		return invalid("cart_line", "product_id", "is required")
	}
	if l.Quantity <= 0 {
		return invalid("cart_line", "quantity", "must be positive")
	}
	if l.Price < 0 {
		return invalid("cart_line", "price", "must be >= 0")
	}
	return nil
}
