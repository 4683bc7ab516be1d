package services

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/store"
)

const (
	defaultRating        = 4.5
	DefaultFeaturedLimit = 4
)

// ProductFilter narrows ListProductsWithSales. Query matches name or
// description, case-insensitively.
type ProductFilter struct {
	Category string
	Query    string
}

func (f ProductFilter) matches(p models.Product) bool {
	if f.Category != "" && f.Category != "all" && p.Category != f.Category {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q)
}

// CatalogService handles products and their reviews
type CatalogService struct {
	bus      *notify.Bus
	clock    clock.Clock
	metrics  *metrics.AppMetrics
	sales    *SalesService
	products *collection[models.Product]
	reviews  *collection[models.Review]

	mu sync.Mutex // serializes read-modify-write
}

// NewCatalogService creates a new catalog service
func NewCatalogService(s store.Store, bus *notify.Bus, clk clock.Clock, m *metrics.AppMetrics, sales *SalesService) *CatalogService {
	return &CatalogService{
		bus:      bus,
		clock:    clk,
		metrics:  m,
		sales:    sales,
		products: newCollection[models.Product](s, m, store.KeyProducts),
		reviews:  newCollection[models.Review](s, m, store.KeyReviews),
	}
}

// ListProducts returns every product in stored order
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.load(ctx)
}

// GetProduct returns a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	products, err := s.products.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

// CreateProduct validates input and appends a new product
func (s *CatalogService) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	product := models.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		ImageURL:    in.ImageURL,
		StockStatus: in.StockStatus,
		Features:    in.Features,
		IsFeatured:  in.IsFeatured,
		Rating:      defaultRating,
		CreatedAt:   s.clock.Now(),
	}
	if in.Price == nil {
		return nil, invalid(ErrInvalidProduct, &models.ValidationError{Record: "product", Field: "price", Reason: "is required"})
	}
	product.Price = *in.Price
	if in.Rating != nil {
		product.Rating = *in.Rating
	}
	if product.StockStatus == "" {
		product.StockStatus = models.StockInStock
	}
	if product.Features == nil {
		product.Features = []string{}
	}
	if err := product.Validate(); err != nil {
		return nil, invalid(ErrInvalidProduct, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.read(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.products.save(ctx, append(products, product)); err != nil {
		return nil, err
	}

	log.Printf("[CATALOG] product created: id=%s category=%s", product.ID, product.Category)
	s.metrics.RecordProductCreated(ctx, product.Category)
	s.bus.Publish(notify.ProductsUpdated)
	return &product, nil
}

// UpdateProduct merges patch into the product. ID and CreatedAt never change.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.read(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(products, func(p models.Product) bool { return p.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}

	updated := products[i]
	if patch.Name != nil {
		updated.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Price != nil {
		updated.Price = *patch.Price
	}
	if patch.Category != nil {
		updated.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.ImageURL != nil {
		updated.ImageURL = *patch.ImageURL
	}
	if patch.StockStatus != nil {
		updated.StockStatus = *patch.StockStatus
	}
	if patch.Features != nil {
		updated.Features = *patch.Features
		if updated.Features == nil {
			updated.Features = []string{}
		}
	}
	if patch.IsFeatured != nil {
		updated.IsFeatured = *patch.IsFeatured
	}
	if patch.Rating != nil {
		updated.Rating = *patch.Rating
	}
	if err := updated.Validate(); err != nil {
		return nil, invalid(ErrInvalidProduct, err)
	}

	products[i] = updated
	if err := s.products.save(ctx, products); err != nil {
		return nil, err
	}

	s.bus.Publish(notify.ProductsUpdated)
	return &updated, nil
}

// DeleteProduct removes the product. Unknown ids are a no-op without an event.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.products.read(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(products, func(p models.Product) bool { return p.ID == id })
	if len(kept) == len(products) {
		return nil
	}
	// save also replaces the snapshot, so the product is gone from fallback reads
	if err := s.products.save(ctx, kept); err != nil {
		return err
	}

	log.Printf("[CATALOG] product deleted: id=%s", id)
	s.bus.Publish(notify.ProductsUpdated)
	return nil
}

// ListProductsWithSales joins products with the active campaigns and review stats
func (s *CatalogService) ListProductsWithSales(ctx context.Context, filter ProductFilter) ([]models.ProductWithSale, error) {
	products, err := s.products.load(ctx)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.sales.ActiveCampaigns(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	stats, err := s.reviewStats(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.ProductWithSale, 0, len(products))
	for _, p := range products {
		if filter.matches(p) {
			out = append(out, withSale(p, campaigns, stats[p.ID]))
		}
	}
	return out, nil
}

// GetProductWithSale returns one product priced with the active campaigns
func (s *CatalogService) GetProductWithSale(ctx context.Context, id string) (*models.ProductWithSale, error) {
	all, err := s.ListProductsWithSales(ctx, ProductFilter{})
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

// ListFeatured returns the first limit featured products with sale prices
func (s *CatalogService) ListFeatured(ctx context.Context, limit int) ([]models.ProductWithSale, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	all, err := s.ListProductsWithSales(ctx, ProductFilter{})
	if err != nil {
		return nil, err
	}
	featured := make([]models.ProductWithSale, 0, limit)
	for _, p := range all {
		if !p.IsFeatured {
			continue
		}
		featured = append(featured, p)
		if len(featured) == limit {
			break
		}
	}
	return featured, nil
}

// Categories returns the distinct product categories in first-seen order
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	products, err := s.products.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	categories := []string{}
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	return categories, nil
}
