package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/db"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/models"
)

// DefaultSessionTTL is how long a sign-in stays valid
const DefaultSessionTTL = 24 * time.Hour

// SQLClient implements Client on the backend's own MySQL or SQLite database
type SQLClient struct {
	db         *db.DB
	metrics    *metrics.AppMetrics
	clock      clock.Clock
	sessionTTL time.Duration
	hashCost   int
}

// NewSQLClient creates a new backend client
func NewSQLClient(database *db.DB, metrics *metrics.AppMetrics, clk clock.Clock, sessionTTL time.Duration) *SQLClient {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &SQLClient{
		db:         database,
		metrics:    metrics,
		clock:      clk,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
	}
}

func (c *SQLClient) record(ctx context.Context, operation, table string, start time.Time, err error) {
	c.metrics.RecordDBQuery(ctx, operation, table, c.db.Driver, start, err)
}

// SignUp creates a customer account
func (c *SQLClient) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	return c.createUser(ctx, email, password, RoleCustomer)
}

// EnsureAdmin creates an admin account, or promotes an existing one, for email.
func (c *SQLClient) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := c.createUser(ctx, email, password, RoleAdmin)
	if !errors.Is(err, ErrConflict) {
		return err
	}

	start := time.Now()
	_, err = c.db.ExecContext(ctx, "UPDATE users SET role = ? WHERE email = ?", RoleAdmin, normalizeEmail(email))
	c.record(ctx, "UPDATE", "users", start, err)
	if err != nil {
		return fmt.Errorf("failed to promote admin: %w", err)
	}
	return nil
}

func (c *SQLClient) createUser(ctx context.Context, email, password, role string) (*models.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      role,
		CreatedAt: c.clock.Now().Truncate(time.Millisecond),
	}

	start := time.Now()
	query := "INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)"
	_, err = c.db.ExecContext(ctx, query, user.ID, user.Email, string(hash), user.Role, user.CreatedAt.UnixMilli())
	c.record(ctx, "INSERT", "users", start, err)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: user %s", ErrConflict, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AUTH] user created: id=%s role=%s", user.ID, user.Role)
	return &user, nil
}

// SignIn checks the password and opens a session
func (c *SQLClient) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	start := time.Now()
	var user models.User
	var hash string
	var createdAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT id, email, role, password_hash, created_at FROM users WHERE email = ?",
		normalizeEmail(email),
	).Scan(&user.ID, &user.Email, &user.Role, &hash, &createdAt)
	c.record(ctx, "SELECT", "users", start, ignoreNoRows(err))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: invalid login credentials", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid login credentials", ErrUnauthorized)
	}
	user.CreatedAt = fromMillis(createdAt)

	session := models.Session{
		Token:     uuid.NewString(),
		User:      user,
		ExpiresAt: c.clock.Now().Add(c.sessionTTL).Truncate(time.Millisecond),
	}

	start = time.Now()
	_, err = c.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		session.Token, user.ID, session.ExpiresAt.UnixMilli(),
	)
	c.record(ctx, "INSERT", "sessions", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &session, nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (c *SQLClient) SignOut(ctx context.Context, token string) error {
	start := time.Now()
	_, err := c.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	c.record(ctx, "DELETE", "sessions", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CurrentUser resolves a session token to its user
func (c *SQLClient) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: not signed in", ErrUnauthorized)
	}

	start := time.Now()
	var user models.User
	var createdAt int64
	err := c.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.role, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, c.clock.Now().UnixMilli(),
	).Scan(&user.ID, &user.Email, &user.Role, &createdAt)
	c.record(ctx, "SELECT", "sessions", start, ignoreNoRows(err))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session expired or unknown", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// CreateOrder stores a pending order for the signed-in user. The total is
// computed here from the line items.
func (c *SQLClient) CreateOrder(ctx context.Context, token string, items []models.OrderItem, currency string) (*models.Order, error) {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	if currency == "" {
		currency = "USD"
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 || item.Price < 0 {
			return nil, fmt.Errorf("%w: bad line for product %s", ErrInvalidInput, item.ProductID)
		}
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := models.Order{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Status:    "pending",
		Total:     total.Round(2).InexactFloat64(),
		Currency:  currency,
		Items:     items,
		CreatedAt: c.clock.Now().Truncate(time.Millisecond),
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO orders (id, user_id, status, total, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		order.ID, order.UserID, order.Status, order.Total, order.Currency, order.CreatedAt.UnixMilli(),
	)
	c.record(ctx, "INSERT", "orders", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := "INSERT INTO order_items (order_id, product_id, name, quantity, price) VALUES (?, ?, ?, ?, ?)"
	for _, item := range items {
		start = time.Now()
		_, err = tx.ExecContext(ctx, itemQuery, order.ID, item.ProductID, item.Name, item.Quantity, item.Price)
		c.record(ctx, "INSERT", "order_items", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[ORDER] Order created: order_id=%s, user_id=%s, total=%s %s", order.ID, order.UserID, total.StringFixed(2), currency)
	return &order, nil
}

// ListOrders returns the signed-in user's orders, newest first
func (c *SQLClient) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, user_id, status, total, currency, created_at FROM orders WHERE user_id = ? ORDER BY created_at DESC, id",
		user.ID,
	)
	c.record(ctx, "SELECT", "orders", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := []models.Order{}
	index := make(map[string]int)
	for rows.Next() {
		var o models.Order
		var createdAt int64
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.Currency, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.CreatedAt = fromMillis(createdAt)
		o.Items = []models.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	// rows must be closed before the next query on a single-connection pool
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		placeholders[i] = "?"
		args[i] = o.ID
	}

	start = time.Now()
	itemRows, err := c.db.QueryContext(ctx,
		fmt.Sprintf("SELECT order_id, product_id, name, quantity, price FROM order_items WHERE order_id IN (%s) ORDER BY product_id",
			strings.Join(placeholders, ",")),
		args...,
	)
	c.record(ctx, "SELECT", "order_items", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item models.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	return orders, nil
}

// ListWishlist returns the signed-in user's wishlist rows, newest first
func (c *SQLClient) ListWishlist(ctx context.Context, token string) ([]models.WishlistEntry, error) {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, user_id, product_id, created_at FROM wishlists WHERE user_id = ? ORDER BY created_at DESC, id",
		user.ID,
	)
	c.record(ctx, "SELECT", "wishlists", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WishlistEntry{}
	for rows.Next() {
		var e models.WishlistEntry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wishlist: %w", err)
	}
	return entries, nil
}

// AddToWishlist saves productID for the signed-in user
func (c *SQLClient) AddToWishlist(ctx context.Context, token, productID string) (*models.WishlistEntry, error) {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
	}

	entry := models.WishlistEntry{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ProductID: productID,
		CreatedAt: c.clock.Now().Truncate(time.Millisecond),
	}

	start := time.Now()
	_, err = c.db.ExecContext(ctx,
		"INSERT INTO wishlists (id, user_id, product_id, created_at) VALUES (?, ?, ?, ?)",
		entry.ID, entry.UserID, entry.ProductID, entry.CreatedAt.UnixMilli(),
	)
	c.record(ctx, "INSERT", "wishlists", start, err)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: product %s is already in the wishlist", ErrConflict, productID)
		}
		return nil, fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return &entry, nil
}

// RemoveFromWishlist deletes one of the signed-in user's rows
func (c *SQLClient) RemoveFromWishlist(ctx context.Context, token, id string) error {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := c.db.ExecContext(ctx, "DELETE FROM wishlists WHERE id = ? AND user_id = ?", id, user.ID)
	c.record(ctx, "DELETE", "wishlists", start, err)
	if err != nil {
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: wishlist entry %s", ErrNotFound, id)
	}
	return nil
}

// ListCustomers returns every user with their order count and spend, newest first
func (c *SQLClient) ListCustomers(ctx context.Context, token string) ([]models.Customer, error) {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.created_at, COUNT(o.id), COALESCE(SUM(o.total), 0)
		FROM users u
		LEFT JOIN orders o ON o.user_id = u.id
		GROUP BY u.id, u.email, u.created_at
		ORDER BY u.created_at DESC, u.id`)
	c.record(ctx, "SELECT", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var cu models.Customer
		var createdAt int64
		if err := rows.Scan(&cu.ID, &cu.Email, &createdAt, &cu.OrdersCount, &cu.TotalSpent); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		cu.CreatedAt = fromMillis(createdAt)
		customers = append(customers, cu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read customers: %w", err)
	}
	return customers, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// isDuplicate matches MySQL error 1062 and SQLite unique constraint failures
func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
