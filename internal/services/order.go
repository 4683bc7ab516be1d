package services

import (
	"context"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/models"
)

// OrderService reads the signed-in user's orders from the backend
type OrderService struct {
	backend backend.Client
}

// NewOrderService creates a new order service
func NewOrderService(client backend.Client) *OrderService {
	return &OrderService{backend: client}
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	return s.backend.ListOrders(ctx, token)
}
