package services

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/store"
)

// SalesService manages percentage-off campaigns
type SalesService struct {
	bus       *notify.Bus
	clock     clock.Clock
	campaigns *collection[models.SalesCampaign]

	mu sync.Mutex // serializes read-modify-write
}

// NewSalesService creates a new sales service
func NewSalesService(s store.Store, bus *notify.Bus, clk clock.Clock, m *metrics.AppMetrics) *SalesService {
	return &SalesService{
		bus:       bus,
		clock:     clk,
		campaigns: newCollection[models.SalesCampaign](s, m, store.KeyCampaigns),
	}
}

// ListCampaigns returns every campaign in stored order
func (s *SalesService) ListCampaigns(ctx context.Context) ([]models.SalesCampaign, error) {
	return s.campaigns.load(ctx)
}

// ActiveCampaigns returns the campaigns running at now
func (s *SalesService) ActiveCampaigns(ctx context.Context, now time.Time) ([]models.SalesCampaign, error) {
	all, err := s.campaigns.load(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]models.SalesCampaign, 0, len(all))
	for _, c := range all {
		if c.IsActiveAt(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// CreateCampaign validates and stores a new campaign. Campaigns are active
// unless the input says otherwise.
func (s *SalesService) CreateCampaign(ctx context.Context, in models.CampaignInput) (*models.SalesCampaign, error) {
	campaign := models.SalesCampaign{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		DiscountPercentage: in.DiscountPercentage,
		Active:             in.Active == nil || *in.Active,
		StartsAt:           in.StartsAt,
		EndsAt:             in.EndsAt,
		ProductIDs:         in.ProductIDs,
		Categories:         in.Categories,
		CreatedAt:          s.clock.Now(),
	}
	if err := campaign.Validate(); err != nil {
		return nil, invalid(ErrInvalidCampaign, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	campaigns, err := s.campaigns.read(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.campaigns.save(ctx, append(campaigns, campaign)); err != nil {
		return nil, err
	}

	log.Printf("[SALES] campaign created: id=%s discount=%.0f%%", campaign.ID, campaign.DiscountPercentage)
	s.bus.Publish(notify.SalesUpdated)
	return &campaign, nil
}

// UpdateCampaign merges patch into the campaign with id
func (s *SalesService) UpdateCampaign(ctx context.Context, id string, patch models.CampaignPatch) (*models.SalesCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaigns, err := s.campaigns.read(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(campaigns, func(c models.SalesCampaign) bool { return c.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}

	updated := campaigns[i]
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.DiscountPercentage != nil {
		updated.DiscountPercentage = *patch.DiscountPercentage
	}
	if patch.Active != nil {
		updated.Active = *patch.Active
	}
	if patch.StartsAt.Set {
		updated.StartsAt = patch.StartsAt.Time
	}
	if patch.EndsAt.Set {
		updated.EndsAt = patch.EndsAt.Time
	}
	if patch.ProductIDs != nil {
		updated.ProductIDs = *patch.ProductIDs
	}
	if patch.Categories != nil {
		updated.Categories = *patch.Categories
	}
	if err := updated.Validate(); err != nil {
		return nil, invalid(ErrInvalidCampaign, err)
	}

	campaigns[i] = updated
	if err := s.campaigns.save(ctx, campaigns); err != nil {
		return nil, err
	}

	s.bus.Publish(notify.SalesUpdated)
	return &updated, nil
}

// DeleteCampaign removes the campaign. Unknown ids are a no-op without an event.
func (s *SalesService) DeleteCampaign(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaigns, err := s.campaigns.read(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(campaigns, func(c models.SalesCampaign) bool { return c.ID == id })
	if len(kept) == len(campaigns) {
		return nil
	}
	if err := s.campaigns.save(ctx, kept); err != nil {
		return err
	}

	log.Printf("[SALES] campaign deleted: id=%s", id)
	s.bus.Publish(notify.SalesUpdated)
	return nil
}
