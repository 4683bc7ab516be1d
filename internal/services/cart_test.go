package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
)

const testCart = "cart-1"

func TestCart_AddIncrementsExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 2.5)
	f.resetEvents()

	_, err := f.cart.AddToCart(ctx, testCart, p.ID, 1)
	require.NoError(t, err)
	cart, err := f.cart.AddToCart(ctx, testCart, p.ID, 2)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.Equal(t, "Widget", cart.Lines[0].Name)
	assert.Equal(t, 3, cart.ItemCount)
	assert.Equal(t, 7.5, cart.Total)
	assert.Equal(t, []notify.Event{notify.CartUpdated, notify.CartUpdated}, f.events)
}

func TestCart_CapturesSalePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	f.mustCreateCampaign(t, "Tools sale", 20, "Tools")

	cart, err := f.cart.AddToCart(ctx, testCart, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.99, cart.Lines[0].Price)

	// ending the sale later does not reprice the line
	campaigns, err := f.sales.ListCampaigns(ctx)
	require.NoError(t, err)
	require.NoError(t, f.sales.DeleteCampaign(ctx, campaigns[0].ID))

	cart, err = f.cart.GetCart(ctx, testCart)
	require.NoError(t, err)
	assert.Equal(t, 7.99, cart.Lines[0].Price)
}

func TestCart_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 1)

	_, err := f.cart.AddToCart(ctx, testCart, p.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = f.cart.AddToCart(ctx, testCart, "missing", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.catalog.UpdateProduct(ctx, p.ID, models.ProductPatch{StockStatus: ptr(models.StockOutOfStock)})
	require.NoError(t, err)
	_, err = f.cart.AddToCart(ctx, testCart, p.ID, 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreateProduct(t, "A", "Tools", 1)
	b := f.mustCreateProduct(t, "B", "Tools", 2)

	_, err := f.cart.AddToCart(ctx, testCart, a.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.AddToCart(ctx, testCart, b.ID, 1)
	require.NoError(t, err)

	cart, err := f.cart.UpdateQuantity(ctx, testCart, a.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6.0, cart.Total)

	cart, err = f.cart.UpdateQuantity(ctx, testCart, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, b.ID, cart.Lines[0].ProductID)

	_, err = f.cart.UpdateQuantity(ctx, testCart, a.ID, 2)
	assert.ErrorIs(t, err, ErrCartLineNotFound)

	f.resetEvents()
	cart, err = f.cart.RemoveFromCart(ctx, testCart, a.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	assert.Empty(t, f.events, "removing a missing line changes nothing")

	cart, err = f.cart.RemoveFromCart(ctx, testCart, b.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.Zero(t, cart.Total)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 3.33)

	_, err := f.cart.Checkout(ctx, testCart, "token-1", "USD")
	assert.ErrorIs(t, err, ErrCartEmpty)

	_, err = f.cart.AddToCart(ctx, testCart, p.ID, 3)
	require.NoError(t, err)

	_, err = f.cart.Checkout(ctx, testCart, "bogus", "USD")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	f.client.createErr = errors.New("backend down")
	_, err = f.cart.Checkout(ctx, testCart, "token-1", "USD")
	assert.ErrorContains(t, err, "backend down")

	cart, err := f.cart.GetCart(ctx, testCart)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1, "failed checkout keeps the cart")

	f.client.createErr = nil
	f.resetEvents()
	order, err := f.cart.Checkout(ctx, testCart, "token-1", "USD")
	require.NoError(t, err)
	assert.Equal(t, 9.99, order.Total)
	assert.Equal(t, []models.OrderItem{{ProductID: p.ID, Name: "Widget", Quantity: 3, Price: 3.33}}, f.client.lastItems)
	assert.Equal(t, []notify.Event{notify.CartUpdated}, f.events)

	cart, err = f.cart.GetCart(ctx, testCart)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestClearCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 1)
	_, err := f.cart.AddToCart(ctx, testCart, p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.cart.ClearCart(ctx, testCart))

	cart, err := f.cart.GetCart(ctx, testCart)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.Zero(t, cart.ItemCount)
}

func TestCart_SeparateCarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 10)

	_, err := f.cart.AddToCart(ctx, "alice", p.ID, 3)
	require.NoError(t, err)

	bob, err := f.cart.GetCart(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.Lines)

	_, err = f.cart.Checkout(ctx, "bob", "token-1", "USD")
	assert.ErrorIs(t, err, ErrCartEmpty)

	alice, err := f.cart.GetCart(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, alice.ItemCount)

	raw, err := f.store.Get(ctx, "alxne_cart:alice")
	require.NoError(t, err)
	assert.Contains(t, string(raw), p.ID)
}

func TestCart_InvalidID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.GetCart(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidCart)
	assert.ErrorIs(t, f.cart.ClearCart(ctx, "a:b"), ErrInvalidCart)
}
