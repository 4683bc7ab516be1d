package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON document from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return httpError(http.StatusBadRequest, "Request body is required", err)
		}
		return httpError(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}

// bearerToken returns the session token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// admin lets fn run only for a signed-in admin
func (a *App) admin(fn handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, err := a.users.CurrentUser(r.Context(), bearerToken(r))
		if err != nil {
			return err
		}
		if user.Role != backend.RoleAdmin {
			return fmt.Errorf("%w: admin access required", backend.ErrForbidden)
		}
		return fn(w, r)
	}
}

const (
	cartHeader    = "X-Cart-ID"
	cartCookie    = "cart_id"
	cartCookieAge = 30 * 24 * 60 * 60
)

// cartID identifies the caller's cart. The X-Cart-ID header wins over the
// cart_id cookie; a client with neither is issued a new id in both.
func cartID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(cartHeader))
	if id == "" {
		if c, err := r.Cookie(cartCookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cartCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   cartCookieAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(cartHeader, id)
	return id
}

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) error {
	products, err := a.catalog.ListProducts(r.Context())
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, products)
	return nil
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) error {
	product, err := a.catalog.GetProductWithSale(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, product)
	return nil
}

// CreateProductHandler handles POST /api/v1/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) error {
	var in models.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	product, err := a.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, product)
	return nil
}

// UpdateProductHandler handles PATCH /api/v1/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) error {
	var patch models.ProductPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return err
	}
	product, err := a.catalog.UpdateProduct(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, product)
	return nil
}

// DeleteProductHandler handles DELETE /api/v1/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) error {
	if err := a.catalog.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *App) ListReviewsHandler(w http.ResponseWriter, r *http.Request) error {
	reviews, err := a.catalog.ListReviews(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, reviews)
	return nil
}

func (a *App) AddReviewHandler(w http.ResponseWriter, r *http.Request) error {
	var in models.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	review, err := a.catalog.AddReview(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, review)
	return nil
}

// StorefrontProductsHandler handles GET /api/v1/storefront/products?category=&q=
func (a *App) StorefrontProductsHandler(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	products, err := a.catalog.ListProductsWithSales(r.Context(), services.ProductFilter{
		Category: q.Get("category"),
		Query:    strings.TrimSpace(q.Get("q")),
	})
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, products)
	return nil
}

// FeaturedHandler handles GET /api/v1/storefront/featured?limit=
func (a *App) FeaturedHandler(w http.ResponseWriter, r *http.Request) error {
	limit := services.DefaultFeaturedLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return httpError(http.StatusBadRequest, fmt.Sprintf("Invalid limit %q", l), err)
		}
		limit = parsed
	}
	products, err := a.catalog.ListFeatured(r.Context(), limit)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, products)
	return nil
}

func (a *App) CategoriesHandler(w http.ResponseWriter, r *http.Request) error {
	categories, err := a.catalog.Categories(r.Context())
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, categories)
	return nil
}

// ListCampaignsHandler handles GET /api/v1/sales
func (a *App) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) error {
	campaigns, err := a.sales.ListCampaigns(r.Context())
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, campaigns)
	return nil
}

// CreateCampaignHandler handles POST /api/v1/sales
func (a *App) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) error {
	var in models.CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	campaign, err := a.sales.CreateCampaign(r.Context(), in)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, campaign)
	return nil
}

// UpdateCampaignHandler handles PATCH /api/v1/sales/{id}
func (a *App) UpdateCampaignHandler(w http.ResponseWriter, r *http.Request) error {
	var patch models.CampaignPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return err
	}
	campaign, err := a.sales.UpdateCampaign(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, campaign)
	return nil
}

// DeleteCampaignHandler handles DELETE /api/v1/sales/{id}
func (a *App) DeleteCampaignHandler(w http.ResponseWriter, r *http.Request) error {
	if err := a.sales.DeleteCampaign(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) error {
	cart, err := a.cart.GetCart(r.Context(), cartID(w, r))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, cart)
	return nil
}

// ClearCartHandler handles DELETE /api/v1/cart
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) error {
	if err := a.cart.ClearCart(r.Context(), cartID(w, r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// AddToCartHandler handles POST /api/v1/cart/items
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.AddToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := a.cart.AddToCart(r.Context(), cartID(w, r), req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, cart)
	return nil
}

// UpdateCartItemHandler handles PATCH /api/v1/cart/items/{productId}
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.UpdateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	cart, err := a.cart.UpdateQuantity(r.Context(), cartID(w, r), mux.Vars(r)["productId"], req.Quantity)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, cart)
	return nil
}

// RemoveFromCartHandler handles DELETE /api/v1/cart/items/{productId}
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) error {
	cart, err := a.cart.RemoveFromCart(r.Context(), cartID(w, r), mux.Vars(r)["productId"])
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, cart)
	return nil
}

// CheckoutHandler handles POST /api/v1/checkout
func (a *App) CheckoutHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.CheckoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			return err
		}
	}
	order, err := a.cart.Checkout(r.Context(), cartID(w, r), bearerToken(r), req.Currency)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, order)
	return nil
}

// ListWishlistHandler handles GET /api/v1/wishlist
func (a *App) ListWishlistHandler(w http.ResponseWriter, r *http.Request) error {
	entries, err := a.wishlist.List(r.Context(), bearerToken(r))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, entries)
	return nil
}

func (a *App) AddToWishlistHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.AddToWishlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	entry, err := a.wishlist.Add(r.Context(), bearerToken(r), req.ProductID)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, entry)
	return nil
}

func (a *App) RemoveFromWishlistHandler(w http.ResponseWriter, r *http.Request) error {
	if err := a.wishlist.Remove(r.Context(), bearerToken(r), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) error {
	orders, err := a.orders.ListOrders(r.Context(), bearerToken(r))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, orders)
	return nil
}

// SignUpHandler handles POST /api/v1/auth/signup
func (a *App) SignUpHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	user, err := a.users.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, user)
	return nil
}

// SignInHandler handles POST /api/v1/auth/signin
func (a *App) SignInHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	session, err := a.users.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return httpError(http.StatusUnauthorized, "Invalid email or password", err)
		}
		return err
	}
	respondJSON(w, http.StatusOK, session)
	return nil
}

// SignOutHandler handles POST /api/v1/auth/signout
func (a *App) SignOutHandler(w http.ResponseWriter, r *http.Request) error {
	if err := a.users.SignOut(r.Context(), bearerToken(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// MeHandler handles GET /api/v1/auth/me
func (a *App) MeHandler(w http.ResponseWriter, r *http.Request) error {
	user, err := a.users.CurrentUser(r.Context(), bearerToken(r))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, user)
	return nil
}

// ListCustomersHandler handles GET /api/v1/admin/customers?q=
func (a *App) ListCustomersHandler(w http.ResponseWriter, r *http.Request) error {
	customers, err := a.users.ListCustomers(r.Context(), bearerToken(r), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, customers)
	return nil
}
