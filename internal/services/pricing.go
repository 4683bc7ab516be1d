package services

import (
	"github.com/shopspring/decimal"

	"github.com/alxne/storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

// bestCampaign picks the campaign with the highest discount that applies to p.
// Ties go to the earliest created_at, then the lowest id.
func bestCampaign(p models.Product, campaigns []models.SalesCampaign) (models.SalesCampaign, bool) {
	var best models.SalesCampaign
	found := false
	for _, c := range campaigns {
		if !c.AppliesTo(p) {
			continue
		}
		if !found || beats(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func beats(a, b models.SalesCampaign) bool {
	if a.DiscountPercentage != b.DiscountPercentage {
		return a.DiscountPercentage > b.DiscountPercentage
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// salePrice is original * (100 - pct) / 100 rounded half-up to cents
func salePrice(original, pct float64) decimal.Decimal {
	return decimal.NewFromFloat(original).
		Mul(hundred.Sub(decimal.NewFromFloat(pct))).
		Div(hundred).
		Round(2)
}

type reviewStats struct {
	count int
	sum   int
}

// withSale annotates p with the best active campaign and its review stats.
// campaigns must already be filtered to the active ones.
func withSale(p models.Product, campaigns []models.SalesCampaign, stats reviewStats) models.ProductWithSale {
	out := models.ProductWithSale{
		Product:       p,
		AverageRating: p.Rating,
		ReviewCount:   stats.count,
	}
	if stats.count > 0 {
		out.AverageRating = decimal.NewFromInt(int64(stats.sum)).
			Div(decimal.NewFromInt(int64(stats.count))).
			Round(1).
			InexactFloat64()
	}

	campaign, ok := bestCampaign(p, campaigns)
	if !ok {
		return out
	}

	original := decimal.NewFromFloat(p.Price)
	price := salePrice(p.Price, campaign.DiscountPercentage)
	if !price.LessThan(original) {
		return out
	}

	out.OnSale = true
	out.Price = price.InexactFloat64()
	out.OriginalPrice = p.Price
	out.SaleDiscount = int(original.Sub(price).Mul(hundred).Div(original).Round(0).IntPart())
	out.CampaignID = campaign.ID
	return out
}

// cartTotal sums price * quantity over the lines, rounded to cents
func cartTotal(lines []models.CartLine) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range lines {
		total = total.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	return total.Round(2), count
}
