// Package backend is the client for the hosted database and auth service:
// accounts and sessions, orders, wishlist rows and the customer roll-up.
package backend

import (
	"context"
	"errors"

	"github.com/alxne/storefront/internal/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Client is the typed query/mutation surface of the hosted backend. It does no
// retries or caching; every call returns rows or an error.
type Client interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*models.User, error)

	CreateOrder(ctx context.Context, token string, items []models.OrderItem, currency string) (*models.Order, error)
	ListOrders(ctx context.Context, token string) ([]models.Order, error)

	// ListWishlist returns the user's rows newest first, without product summaries.
	ListWishlist(ctx context.Context, token string) ([]models.WishlistEntry, error)
	AddToWishlist(ctx context.Context, token, productID string) (*models.WishlistEntry, error)
	RemoveFromWishlist(ctx context.Context, token, id string) error

	// ListCustomers requires an admin session.
	ListCustomers(ctx context.Context, token string) ([]models.Customer, error)
}
