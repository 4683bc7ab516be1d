package services

import (
	"context"
	"log"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
)

// WishlistService keeps the signed-in user's saved products in the backend and
// joins each row with its catalog product.
type WishlistService struct {
	bus     *notify.Bus
	catalog *CatalogService
	backend backend.Client
}

// NewWishlistService creates a new wishlist service
func NewWishlistService(bus *notify.Bus, catalog *CatalogService, client backend.Client) *WishlistService {
	return &WishlistService{bus: bus, catalog: catalog, backend: client}
}

// List returns the wishlist newest first. Rows whose product was deleted keep
// a nil Product.
func (s *WishlistService) List(ctx context.Context, token string) ([]models.WishlistEntry, error) {
	entries, err := s.backend.ListWishlist(ctx, token)
	if err != nil {
		return nil, err
	}

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for i := range entries {
		if p, ok := byID[entries[i].ProductID]; ok {
			entries[i].Product = summarize(p)
		}
	}
	return entries, nil
}

// Add saves an existing catalog product to the wishlist
func (s *WishlistService) Add(ctx context.Context, token, productID string) (*models.WishlistEntry, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	entry, err := s.backend.AddToWishlist(ctx, token, productID)
	if err != nil {
		return nil, err
	}
	entry.Product = summarize(*product)

	log.Printf("[WISHLIST] added: user_id=%s product_id=%s", entry.UserID, productID)
	s.bus.Publish(notify.WishlistUpdated)
	return entry, nil
}

// Remove deletes a wishlist row by its id
func (s *WishlistService) Remove(ctx context.Context, token, id string) error {
	if err := s.backend.RemoveFromWishlist(ctx, token, id); err != nil {
		return err
	}
	s.bus.Publish(notify.WishlistUpdated)
	return nil
}

func summarize(p models.Product) *models.ProductSummary {
	return &models.ProductSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		StockStatus: p.StockStatus,
	}
}
