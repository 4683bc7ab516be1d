package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
)

func TestCampaignCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Spring", DiscountPercentage: 15})
	require.NoError(t, err)
	assert.True(t, c.Active)
	assert.Equal(t, []notify.Event{notify.SalesUpdated}, f.events)

	_, err = f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Free", DiscountPercentage: 100})
	assert.ErrorIs(t, err, ErrInvalidCampaign)

	updated, err := f.sales.UpdateCampaign(ctx, c.ID, models.CampaignPatch{
		DiscountPercentage: ptr(25.0),
		Categories:         ptr([]string{"Tools"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.DiscountPercentage)
	assert.Equal(t, "Spring", updated.Name)
	assert.Equal(t, []string{"Tools"}, updated.Categories)

	_, err = f.sales.UpdateCampaign(ctx, "missing", models.CampaignPatch{})
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	_, err = f.sales.UpdateCampaign(ctx, c.ID, models.CampaignPatch{DiscountPercentage: ptr(0.0)})
	assert.ErrorIs(t, err, ErrInvalidCampaign)

	f.resetEvents()
	require.NoError(t, f.sales.DeleteCampaign(ctx, c.ID))
	require.NoError(t, f.sales.DeleteCampaign(ctx, c.ID))
	assert.Equal(t, []notify.Event{notify.SalesUpdated}, f.events)

	campaigns, err := f.sales.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}

func TestActiveCampaigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	later := now.Add(time.Hour)

	_, err := f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Now", DiscountPercentage: 10})
	require.NoError(t, err)
	_, err = f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Later", DiscountPercentage: 10, StartsAt: &later})
	require.NoError(t, err)
	_, err = f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Paused", DiscountPercentage: 10, Active: ptr(false)})
	require.NoError(t, err)

	active, err := f.sales.ActiveCampaigns(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Now", active[0].Name)

	active, err = f.sales.ActiveCampaigns(ctx, later)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestUpdateCampaignClearsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	ended := now.Add(-time.Hour)

	c, err := f.sales.CreateCampaign(ctx, models.CampaignInput{Name: "Over", DiscountPercentage: 10, EndsAt: &ended})
	require.NoError(t, err)
	active, err := f.sales.ActiveCampaigns(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, active)

	var patch models.CampaignPatch
	require.NoError(t, json.Unmarshal([]byte(`{"ends_at":null}`), &patch))
	updated, err := f.sales.UpdateCampaign(ctx, c.ID, patch)
	require.NoError(t, err)
	assert.Nil(t, updated.EndsAt)

	active, err = f.sales.ActiveCampaigns(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)

	updated, err = f.sales.UpdateCampaign(ctx, c.ID, models.CampaignPatch{StartsAt: models.SetTime(now.Add(time.Hour))})
	require.NoError(t, err)
	require.NotNil(t, updated.StartsAt)
	assert.Nil(t, updated.EndsAt, "absent field keeps the cleared bound")
}
