package services

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/notify"
)

// AddReview records a 1..5 star review for an existing product
func (s *CatalogService) AddReview(ctx context.Context, productID string, in models.ReviewInput) (*models.Review, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	review := models.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: s.clock.Now(),
	}
	if err := review.Validate(); err != nil {
		return nil, invalid(ErrInvalidReview, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reviews, err := s.reviews.read(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.reviews.save(ctx, append(reviews, review)); err != nil {
		return nil, err
	}

	log.Printf("[CATALOG] review added: product_id=%s rating=%d", productID, review.Rating)
	s.bus.Publish(notify.ReviewsUpdated)
	return &review, nil
}

// ListReviews returns a product's reviews, newest first
func (s *CatalogService) ListReviews(ctx context.Context, productID string) ([]models.Review, error) {
	all, err := s.reviews.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Review{}
	for _, r := range all {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *CatalogService) reviewStats(ctx context.Context) (map[string]reviewStats, error) {
	reviews, err := s.reviews.load(ctx)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]reviewStats)
	for _, r := range reviews {
		st := stats[r.ProductID]
		st.count++
		st.sum += r.Rating
		stats[r.ProductID] = st
	}
	return stats, nil
}
