package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/store"
)

func TestCreateProduct_RoundTripAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.catalog.CreateProduct(ctx, models.ProductInput{
		Name:     "Widget",
		Price:    ptr(9.99),
		Category: "Tools",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StockInStock, created.StockStatus)
	assert.Equal(t, 4.5, created.Rating)
	assert.False(t, created.IsFeatured)
	assert.Equal(t, []string{}, created.Features)
	assert.Equal(t, f.clock.Now(), created.CreatedAt)

	got, err := f.catalog.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Price, got.Price)
	assert.Equal(t, created.Category, got.Category)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	// same event exactly once, before CreateProduct returned
	assert.Equal(t, []notify.Event{notify.ProductsUpdated}, f.events)
}

func TestCreateProduct_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		input models.ProductInput
	}{
		{"missing name", models.ProductInput{Price: ptr(1.0), Category: "Tools"}},
		{"negative price", models.ProductInput{Name: "x", Price: ptr(-1.0), Category: "Tools"}},
		{"missing price", models.ProductInput{Name: "x", Category: "Tools"}},
		{"missing category", models.ProductInput{Name: "x", Price: ptr(1.0)}},
		{"bad stock status", models.ProductInput{Name: "x", Price: ptr(1.0), Category: "Tools", StockStatus: "gone"}},
		{"rating out of range", models.ProductInput{Name: "x", Price: ptr(1.0), Category: "Tools", Rating: ptr(7.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.catalog.CreateProduct(ctx, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidProduct)
			assert.ErrorIs(t, err, models.ErrInvalid)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))

			// store untouched, no event
			v, err := f.store.Version(ctx)
			require.NoError(t, err)
			assert.Zero(t, v)
			assert.Empty(t, f.events)
		})
	}
}

func TestUpdateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	f.resetEvents()

	updated, err := f.catalog.UpdateProduct(ctx, p.ID, models.ProductPatch{
		Price:      ptr(12.5),
		IsFeatured: ptr(true),
		Features:   ptr([]string{"fast", "small"}),
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Widget", updated.Name)
	assert.Equal(t, 12.5, updated.Price)
	assert.True(t, updated.IsFeatured)
	assert.Equal(t, []string{"fast", "small"}, updated.Features)
	assert.Equal(t, []notify.Event{notify.ProductsUpdated}, f.events)

	_, err = f.catalog.UpdateProduct(ctx, p.ID, models.ProductPatch{Price: ptr(-3.0)})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = f.catalog.UpdateProduct(ctx, "missing", models.ProductPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrProductNotFound)

	got, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Price)
}

func TestDeleteProduct_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	f.resetEvents()

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
	assert.Equal(t, []notify.Event{notify.ProductsUpdated}, f.events)

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
	assert.Len(t, f.events, 1, "nothing changed, no event")

	_, err := f.catalog.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDeleteProduct_RemovedFromSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.mustCreateProduct(t, "Keep", "Tools", 1)
	drop := f.mustCreateProduct(t, "Drop", "Tools", 1)

	require.NoError(t, f.catalog.DeleteProduct(ctx, drop.ID))

	f.backend.SetUnavailable(true)
	products, err := f.catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, keep.ID, products[0].ID)
}

func TestReads_FallBackToSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	f.mustCreateCampaign(t, "Spring", 20, "Tools")

	before, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)

	f.backend.SetUnavailable(true)

	after, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)

	// writes report the failure and leave state alone
	_, err = f.catalog.CreateProduct(ctx, models.ProductInput{Name: "New", Price: ptr(1.0), Category: "Tools"})
	assert.ErrorIs(t, err, store.ErrUnavailable)

	products, err := f.catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestReads_FailWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	f.backend.SetUnavailable(true)

	_, err := f.catalog.ListProducts(context.Background())
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestWidgetScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	c := f.mustCreateCampaign(t, "Tools sale", 20, "Tools")

	products, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)

	got := products[0]
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.OnSale)
	assert.Equal(t, 7.99, got.Price)
	assert.Equal(t, 9.99, got.OriginalPrice)
	assert.Equal(t, 20, got.SaleDiscount)
	assert.Equal(t, c.ID, got.CampaignID)
}

func TestListProductsWithSales_NoCampaignPassesThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	f.mustCreateCampaign(t, "Security sale", 20, "Security")

	products, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.False(t, products[0].OnSale)
	assert.Equal(t, 9.99, products[0].Price)
	assert.Zero(t, products[0].OriginalPrice)
}

func TestListProductsWithSales_InactiveAndExpiredIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreateProduct(t, "Widget", "Tools", 10)

	_, err := f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Off", DiscountPercentage: 50, Active: ptr(false)})
	require.NoError(t, err)
	ends := f.clock.Now().Add(time.Hour)
	_, err = f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Ending", DiscountPercentage: 40, EndsAt: &ends})
	require.NoError(t, err)

	products, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6.0, products[0].Price)

	f.clock.Advance(2 * time.Hour)
	products, err = f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.False(t, products[0].OnSale)
	assert.Equal(t, 10.0, products[0].Price)
}

func TestListProductsWithSales_Filter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreateProduct(t, "Password Vault", "Security", 5)
	f.mustCreateProduct(t, "Team Chat", "Team Tools", 5)
	_, err := f.catalog.CreateProduct(ctx, models.ProductInput{
		Name: "Audit Log", Description: "Tracks every vault access", Category: "Security", Price: ptr(3.0),
	})
	require.NoError(t, err)

	names := func(ps []models.ProductWithSale) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	got, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{Category: "Security"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Password Vault", "Audit Log"}, names(got))

	got, err = f.catalog.ListProductsWithSales(ctx, ProductFilter{Query: "VAULT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Password Vault", "Audit Log"}, names(got))

	got, err = f.catalog.ListProductsWithSales(ctx, ProductFilter{Category: "all", Query: "chat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Team Chat"}, names(got))

	categories, err := f.catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Security", "Team Tools"}, categories)
}

func TestListFeatured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := f.catalog.CreateProduct(ctx, models.ProductInput{
			Name: "Featured", Category: "Tools", Price: ptr(1.0), IsFeatured: i != 2,
		})
		require.NoError(t, err)
	}

	featured, err := f.catalog.ListFeatured(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, featured, DefaultFeaturedLimit)
	for _, p := range featured {
		assert.True(t, p.IsFeatured)
	}

	featured, err = f.catalog.ListFeatured(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, featured, 5)
}

func TestReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)
	f.resetEvents()

	products, err := f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4.5, products[0].AverageRating)
	assert.Zero(t, products[0].ReviewCount)

	_, err = f.catalog.AddReview(ctx, p.ID, models.ReviewInput{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.catalog.AddReview(ctx, p.ID, models.ReviewInput{Rating: 2, Comment: "meh"})
	require.NoError(t, err)
	assert.Equal(t, []notify.Event{notify.ReviewsUpdated, notify.ReviewsUpdated}, f.events)

	_, err = f.catalog.AddReview(ctx, p.ID, models.ReviewInput{Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidReview)
	_, err = f.catalog.AddReview(ctx, "missing", models.ReviewInput{Rating: 3})
	assert.ErrorIs(t, err, ErrProductNotFound)

	reviews, err := f.catalog.ListReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "meh", reviews[0].Comment)

	products, err = f.catalog.ListProductsWithSales(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3.5, products[0].AverageRating)
	assert.Equal(t, 2, products[0].ReviewCount)
}

func TestSecondHandleSeesWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := NewCatalogService(f.backend.Open("test"), notify.NewBus(), f.clock, metrics.NewNoop(), nil)

	p := f.mustCreateProduct(t, "Widget", "Tools", 9.99)

	got, err := other.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
}
