package services

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/store"
)

// CartService handles carts kept in the store namespace, one list per cart id
type CartService struct {
	store   store.Store
	bus     *notify.Bus
	clock   clock.Clock
	metrics *metrics.AppMetrics
	catalog *CatalogService
	backend backend.Client

	mu    sync.Mutex // serializes read-modify-write and guards carts
	carts map[string]*collection[models.CartLine]
}

// NewCartService creates a new cart service
func NewCartService(s store.Store, bus *notify.Bus, clk clock.Clock, m *metrics.AppMetrics, catalog *CatalogService, client backend.Client) *CartService {
	return &CartService{
		store:   s,
		bus:     bus,
		clock:   clk,
		metrics: m,
		catalog: catalog,
		backend: client,
		carts:   make(map[string]*collection[models.CartLine]),
	}
}

// cart returns the collection for cartID. Callers hold s.mu.
func (s *CartService) cart(cartID string) (*collection[models.CartLine], error) {
	key, err := store.CartKey(cartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCart, err)
	}
	c, ok := s.carts[cartID]
	if !ok {
		c = newCollection[models.CartLine](s.store, s.metrics, key)
		s.carts[cartID] = c
	}
	return c, nil
}

// GetCart returns the cart lines with item count and total
func (s *CartService) GetCart(ctx context.Context, cartID string) (*models.Cart, error) {
	s.mu.Lock()
	c, err := s.cart(cartID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	lines, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return buildCart(lines), nil
}

// AddToCart adds quantity of the product, or increments an existing line.
// The line captures the current (sale) price, name and image.
func (s *CartService) AddToCart(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidQuantity)
	}

	product, err := s.catalog.GetProductWithSale(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.StockStatus == models.StockOutOfStock {
		return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	if i := indexLine(lines, productID); i >= 0 {
		lines[i].Quantity += quantity
	} else {
		line := models.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			ImageURL:  product.ImageURL,
			Quantity:  quantity,
			AddedAt:   s.clock.Now(),
		}
		if err := line.Validate(); err != nil {
			return nil, invalid(ErrInvalidQuantity, err)
		}
		lines = append(lines, line)
	}

	return s.commit(ctx, c, lines)
}

// UpdateQuantity sets the quantity of a line; zero or less removes it
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	i := indexLine(lines, productID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCartLineNotFound, productID)
	}

	if quantity <= 0 {
		lines = slices.Delete(lines, i, i+1)
	} else {
		lines[i].Quantity = quantity
	}
	return s.commit(ctx, c, lines)
}

// RemoveFromCart drops the line for productID. Missing lines are a no-op.
func (s *CartService) RemoveFromCart(ctx context.Context, cartID, productID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	i := indexLine(lines, productID)
	if i < 0 {
		return buildCart(lines), nil
	}
	return s.commit(ctx, c, slices.Delete(lines, i, i+1))
}

// ClearCart empties the cart
func (s *CartService) ClearCart(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cart(cartID)
	if err != nil {
		return err
	}
	_, err = s.commit(ctx, c, []models.CartLine{})
	return err
}

// Checkout places an order for the cart through the backend and clears the
// cart once the order exists. A failed order leaves the cart untouched.
func (s *CartService) Checkout(ctx context.Context, cartID, token, currency string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cart(cartID)
	if err != nil {
		return nil, err
	}
	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrCartEmpty
	}

	items := make([]models.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = models.OrderItem{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, Price: l.Price}
	}

	order, err := s.backend.CreateOrder(ctx, token, items, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	s.metrics.RecordOrder(ctx, order.Total, order.Currency)

	if _, err := s.commit(ctx, c, []models.CartLine{}); err != nil {
		log.Printf("[CART] order %s placed but cart not cleared: %v", order.ID, err)
	}
	return order, nil
}

func (s *CartService) commit(ctx context.Context, c *collection[models.CartLine], lines []models.CartLine) (*models.Cart, error) {
	if err := c.save(ctx, lines); err != nil {
		return nil, err
	}
	cart := buildCart(lines)
	s.metrics.RecordCartItems(ctx, cart.ItemCount)
	s.bus.Publish(notify.CartUpdated)
	return cart, nil
}

func buildCart(lines []models.CartLine) *models.Cart {
	if lines == nil {
		lines = []models.CartLine{}
	}
	total, count := cartTotal(lines)
	return &models.Cart{Lines: lines, ItemCount: count, Total: total.InexactFloat64()}
}

func indexLine(lines []models.CartLine, productID string) int {
	return slices.IndexFunc(lines, func(l models.CartLine) bool { return l.ProductID == productID })
}
