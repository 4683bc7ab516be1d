package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/store"
)

type fixture struct {
	backend  *store.MemoryBackend
	store    *store.MemoryStore
	bus      *notify.Bus
	clock    *clock.FakeClock
	client   *fakeBackend
	sales    *SalesService
	catalog  *CatalogService
	cart     *CartService
	wishlist *WishlistService
	users    *UserService
	events   []notify.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: store.NewMemoryBackend(0),
		bus:     notify.NewBus(),
		clock:   clock.NewFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)),
		client:  newFakeBackend(),
	}
	f.store = f.backend.Open("test")
	m := metrics.NewNoop()

	f.sales = NewSalesService(f.store, f.bus, f.clock, m)
	f.catalog = NewCatalogService(f.store, f.bus, f.clock, m, f.sales)
	f.cart = NewCartService(f.store, f.bus, f.clock, m, f.catalog, f.client)
	f.wishlist = NewWishlistService(f.bus, f.catalog, f.client)
	f.users = NewUserService(f.client)

	f.bus.Subscribe(func(e notify.Event) { f.events = append(f.events, e) })
	return f
}

func (f *fixture) resetEvents() { f.events = nil }

func (f *fixture) mustCreateProduct(t *testing.T, name, category string, price float64) *models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), models.ProductInput{
		Name:     name,
		Category: category,
		Price:    &price,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return p
}

func (f *fixture) mustCreateCampaign(t *testing.T, name string, pct float64, categories ...string) *models.SalesCampaign {
	t.Helper()
	c, err := f.sales.CreateCampaign(context.Background(), models.CampaignInput{
		Name:               name,
		DiscountPercentage: pct,
		Categories:         categories,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return c
}

func ptr[T any](v T) *T { return &v }

// fakeBackend is an in-memory backend.Client keyed by token == user id
type fakeBackend struct {
	orders      []models.Order
	wishlist    []models.WishlistEntry
	customers   []models.Customer
	createErr   error
	lastItems   []models.OrderItem
	lastToken   string
	knownTokens map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{knownTokens: map[string]bool{"token-1": true}}
}

func (b *fakeBackend) auth(token string) error {
	if !b.knownTokens[token] {
		return fmt.Errorf("%w: unknown token", backend.ErrUnauthorized)
	}
	return nil
}

func (b *fakeBackend) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	return &models.User{ID: uuid.NewString(), Email: email, Role: backend.RoleCustomer}, nil
}

func (b *fakeBackend) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return &models.Session{Token: "token-1", User: models.User{ID: "token-1", Email: email}}, nil
}

func (b *fakeBackend) SignOut(ctx context.Context, token string) error { return nil }

func (b *fakeBackend) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if err := b.auth(token); err != nil {
		return nil, err
	}
	return &models.User{ID: token}, nil
}

func (b *fakeBackend) CreateOrder(ctx context.Context, token string, items []models.OrderItem, currency string) (*models.Order, error) {
	if err := b.auth(token); err != nil {
		return nil, err
	}
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.lastItems = items
	b.lastToken = token
	total, _ := cartTotal(toLines(items))
	order := models.Order{ID: uuid.NewString(), UserID: token, Status: "pending", Total: total.InexactFloat64(), Currency: currency, Items: items}
	b.orders = append(b.orders, order)
	return &order, nil
}

func toLines(items []models.OrderItem) []models.CartLine {
	lines := make([]models.CartLine, len(items))
	for i, it := range items {
		lines[i] = models.CartLine{ProductID: it.ProductID, Price: it.Price, Quantity: it.Quantity}
	}
	return lines
}

func (b *fakeBackend) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	if err := b.auth(token); err != nil {
		return nil, err
	}
	return b.orders, nil
}

func (b *fakeBackend) ListWishlist(ctx context.Context, token string) ([]models.WishlistEntry, error) {
	if err := b.auth(token); err != nil {
		return nil, err
	}
	out := make([]models.WishlistEntry, len(b.wishlist))
	copy(out, b.wishlist)
	return out, nil
}

func (b *fakeBackend) AddToWishlist(ctx context.Context, token, productID string) (*models.WishlistEntry, error) {
	if err := b.auth(token); err != nil {
		return nil, err
	}
	entry := models.WishlistEntry{ID: uuid.NewString(), UserID: token, ProductID: productID}
	b.wishlist = append([]models.WishlistEntry{entry}, b.wishlist...)
	return &entry, nil
}

func (b *fakeBackend) RemoveFromWishlist(ctx context.Context, token, id string) error {
	if err := b.auth(token); err != nil {
		return err
	}
	for i, e := range b.wishlist {
		if e.ID == id {
			b.wishlist = append(b.wishlist[:i], b.wishlist[i+1:]...)
			return nil
		}
	}
	return backend.ErrNotFound
}

func (b *fakeBackend) ListCustomers(ctx context.Context, token string) ([]models.Customer, error) {
	if err := b.auth(token); err != nil {
		return nil, err
	}
	return b.customers, nil
}
