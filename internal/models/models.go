package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// StockStatus is the availability badge shown for a product
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

// Valid reports whether s is one of the known stock statuses
func (s StockStatus) Valid() bool {
	switch s {
	case StockInStock, StockLowStock, StockOutOfStock:
		return true
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Category    string      `json:"category"`
	ImageURL    string      `json:"image_url"`
	StockStatus StockStatus `json:"stock_status"`
	Features    []string    `json:"features"`
	IsFeatured  bool        `json:"is_featured"`
	Rating      float64     `json:"rating"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ProductWithSale is a product annotated with its active sale and review stats.
// It is computed at read time and never persisted.
type ProductWithSale struct {
	Product
	OnSale        bool    `json:"on_sale"`
	OriginalPrice float64 `json:"original_price,omitempty"`
	SaleDiscount  int     `json:"sale_discount,omitempty"`
	CampaignID    string  `json:"campaign_id,omitempty"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// SalesCampaign is a percentage discount applied to products at read time
type SalesCampaign struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	DiscountPercentage float64    `json:"discount_percentage"`
	Active             bool       `json:"active"`
	StartsAt           *time.Time `json:"starts_at,omitempty"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	ProductIDs         []string   `json:"product_ids,omitempty"`
	Categories         []string   `json:"categories,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsActiveAt reports whether the campaign is switched on and now falls in
// [StartsAt, EndsAt). Missing bounds are open.
func (c SalesCampaign) IsActiveAt(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return false
	}
	return true
}

// AppliesTo reports whether p is in scope. An empty scope is site-wide.
func (c SalesCampaign) AppliesTo(p Product) bool {
	if len(c.ProductIDs) == 0 && len(c.Categories) == 0 {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == p.ID {
			return true
		}
	}
	for _, category := range c.Categories {
		if category == p.Category {
			return true
		}
	}
	return false
}

// Review is a customer rating of a product
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is a product in the local cart with the price/name/image captured
// when it was added
type CartLine struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ImageURL  string    `json:"image_url"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart represents the local cart with its computed totals
type Cart struct {
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	Total     float64    `json:"total"`
}

// ProductSummary is the product projection joined onto wishlist rows
type ProductSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	ImageURL    string      `json:"image_url"`
	StockStatus StockStatus `json:"stock_status"`
}

// WishlistEntry is a product saved by a signed-in user
type WishlistEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ProductID string          `json:"product_id"`
	CreatedAt time.Time       `json:"created_at"`
	Product   *ProductSummary `json:"product,omitempty"`
}

// User represents an account in the hosted backend
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated sign-in
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Order represents an order
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Status    string      `json:"status"` // pending, completed, cancelled
	Total     float64     `json:"total"`
	Currency  string      `json:"currency"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderItem represents an item in an order
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Customer is a user with order statistics, used by the admin screens
type Customer struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	OrdersCount int       `json:"orders_count"`
	TotalSpent  float64   `json:"total_spent"`
}

// ProductInput is the payload for creating a product. Pointer fields
// distinguish "missing" from zero values.
type ProductInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       *float64    `json:"price"`
	Category    string      `json:"category"`
	ImageURL    string      `json:"image_url"`
	StockStatus StockStatus `json:"stock_status"`
	Features    []string    `json:"features"`
	IsFeatured  bool        `json:"is_featured"`
	Rating      *float64    `json:"rating"`
}

// ProductPatch carries the fields to merge into an existing product
type ProductPatch struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Price       *float64     `json:"price"`
	Category    *string      `json:"category"`
	ImageURL    *string      `json:"image_url"`
	StockStatus *StockStatus `json:"stock_status"`
	Features    *[]string    `json:"features"`
	IsFeatured  *bool        `json:"is_featured"`
	Rating      *float64     `json:"rating"`
}

// CampaignInput is the payload for creating a sales campaign
type CampaignInput struct {
	Name               string     `json:"name"`
	DiscountPercentage float64    `json:"discount_percentage"`
	Active             *bool      `json:"active"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at"`
	ProductIDs         []string   `json:"product_ids"`
	Categories         []string   `json:"categories"`
}

// PatchTime is a time field in a patch. Set is false when the field was
// absent; an explicit null sets it with a nil Time, which clears the bound.
type PatchTime struct {
	Set  bool
	Time *time.Time
}

// SetTime returns a PatchTime that sets the field to t
func SetTime(t time.Time) PatchTime {
	return PatchTime{Set: true, Time: &t}
}

func (p *PatchTime) UnmarshalJSON(data []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	p.Time = &t
	return nil
}

func (p PatchTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Time)
}

// CampaignPatch carries the fields to merge into an existing campaign
type CampaignPatch struct {
	Name               *string   `json:"name"`
	DiscountPercentage *float64  `json:"discount_percentage"`
	Active             *bool     `json:"active"`
	StartsAt           PatchTime `json:"starts_at"`
	EndsAt             PatchTime `json:"ends_at"`
	ProductIDs         *[]string `json:"product_ids"`
	Categories         *[]string `json:"categories"`
}

// ReviewInput is the payload for reviewing a product
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequest represents a request to change a cart line quantity
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CheckoutRequest represents a request to turn the cart into an order
type CheckoutRequest struct {
	Currency string `json:"currency"`
}

// AddToWishlistRequest represents a request to save a product
type AddToWishlistRequest struct {
	ProductID string `json:"product_id"`
}

// SignInRequest represents an email/password sign-in
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
