package api

import (
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/middleware"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/services"
	"github.com/alxne/storefront/internal/store"
	"github.com/alxne/storefront/pkg/config"
)

// Services groups the data services behind the JSON API
type Services struct {
	Catalog  *services.CatalogService
	Sales    *services.SalesService
	Cart     *services.CartService
	Orders   *services.OrderService
	Users    *services.UserService
	Wishlist *services.WishlistService
}

// App holds application dependencies
type App struct {
	config  *config.Config
	metrics *metrics.AppMetrics
	clock   clock.Clock
	store   store.Store
	bus     *notify.Bus
	static  staticFiles
	uptime  func() time.Duration

	catalog  *services.CatalogService
	sales    *services.SalesService
	cart     *services.CartService
	orders   *services.OrderService
	users    *services.UserService
	wishlist *services.WishlistService

	done      chan struct{}
	closeOnce sync.Once
}

// NewApp creates a new application instance. A missing build directory is
// logged and tolerated; the fallback route reports it per request.
func NewApp(cfg *config.Config, m *metrics.AppMetrics, clk clock.Clock, st store.Store, bus *notify.Bus, svc Services) *App {
	if info, err := os.Stat(cfg.DistDir); err != nil || !info.IsDir() {
		log.Printf("[SERVER] Warning: build output not found at %q. Run the frontend build before serving.", cfg.DistDir)
	}

	return &App{
		config:   cfg,
		metrics:  m,
		clock:    clk,
		store:    st,
		bus:      bus,
		static:   staticFiles{root: cfg.DistDir},
		uptime:   clk.Stopwatch(),
		catalog:  svc.Catalog,
		sales:    svc.Sales,
		cart:     svc.Cart,
		orders:   svc.Orders,
		users:    svc.Users,
		wishlist: svc.Wishlist,
		done:     make(chan struct{}),
	}
}

// Close ends open event streams. It is registered as a server shutdown hook.
func (a *App) Close() {
	a.closeOnce.Do(func() { close(a.done) })
}

// Handler returns the router wrapped in the request-scoped middleware
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	a.SetupRoutes(r)
	return middleware.Chain(r,
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.RecoverMiddleware(writeError),
	)
}

// SetupRoutes configures the HTTP routes. Static files win over everything,
// then /health, then the JSON API, then the single-page-app fallback.
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.MetricsMiddleware(a.metrics))

	r.MatcherFunc(a.static.match).Methods(http.MethodGet, http.MethodHead).
		Name("static").Handler(a.handle(a.static.serve))

	r.HandleFunc("/health", a.handle(a.HealthHandler)).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = a.handle(notFound)
	api.MethodNotAllowedHandler = a.handle(methodNotAllowed)

	// Catalog
	api.HandleFunc("/products", a.handle(a.ListProductsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/products", a.handle(a.admin(a.CreateProductHandler))).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", a.handle(a.GetProductHandler)).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", a.handle(a.admin(a.UpdateProductHandler))).Methods(http.MethodPatch)
	api.HandleFunc("/products/{id}", a.handle(a.admin(a.DeleteProductHandler))).Methods(http.MethodDelete)
	api.HandleFunc("/products/{id}/reviews", a.handle(a.ListReviewsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/reviews", a.handle(a.AddReviewHandler)).Methods(http.MethodPost)

	// Storefront views with sale prices
	api.HandleFunc("/storefront/products", a.handle(a.StorefrontProductsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/storefront/featured", a.handle(a.FeaturedHandler)).Methods(http.MethodGet)
	api.HandleFunc("/storefront/categories", a.handle(a.CategoriesHandler)).Methods(http.MethodGet)

	// Sales
	api.HandleFunc("/sales", a.handle(a.ListCampaignsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/sales", a.handle(a.admin(a.CreateCampaignHandler))).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}", a.handle(a.admin(a.UpdateCampaignHandler))).Methods(http.MethodPatch)
	api.HandleFunc("/sales/{id}", a.handle(a.admin(a.DeleteCampaignHandler))).Methods(http.MethodDelete)

	// Cart
	api.HandleFunc("/cart", a.handle(a.GetCartHandler)).Methods(http.MethodGet)
	api.HandleFunc("/cart", a.handle(a.ClearCartHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", a.handle(a.AddToCartHandler)).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productId}", a.handle(a.UpdateCartItemHandler)).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{productId}", a.handle(a.RemoveFromCartHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/checkout", a.handle(a.CheckoutHandler)).Methods(http.MethodPost)

	// Wishlist and orders
	api.HandleFunc("/wishlist", a.handle(a.ListWishlistHandler)).Methods(http.MethodGet)
	api.HandleFunc("/wishlist", a.handle(a.AddToWishlistHandler)).Methods(http.MethodPost)
	api.HandleFunc("/wishlist/{id}", a.handle(a.RemoveFromWishlistHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/orders", a.handle(a.ListOrdersHandler)).Methods(http.MethodGet)

	// Accounts
	api.HandleFunc("/auth/signup", a.handle(a.SignUpHandler)).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", a.handle(a.SignInHandler)).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", a.handle(a.SignOutHandler)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", a.handle(a.MeHandler)).Methods(http.MethodGet)
	api.HandleFunc("/admin/customers", a.handle(a.ListCustomersHandler)).Methods(http.MethodGet)

	// Change notifications
	api.HandleFunc("/events", a.handle(a.EventsHandler)).Methods(http.MethodGet)

	r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).Name("fallback").Handler(a.handle(a.FallbackHandler))

	r.NotFoundHandler = a.handle(notFound)
	r.MethodNotAllowedHandler = a.handle(notFound)
}
