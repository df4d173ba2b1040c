// Package pricing holds the pure pricing logic: tiered unit-price
// selection and the quote line computation that derives line totals,
// manual-price flags and the approval-escalation flag in one pass.
package pricing

import (
	"math"

	"funnel-service/internal/models"
)

// PriceEpsilon is the tolerance used when comparing an entered unit price
// against the system tier price.
const PriceEpsilon = 0.001

// TierPrice returns the unit price for the given quantity. Tiers may
// arrive in any order; the tier with the largest MinQuantity not
// exceeding the quantity wins. If no tier applies, the tier with the
// smallest MinQuantity is used as the base price. An empty table prices
// at zero.
func TierPrice(tiers []models.PriceTier, quantity int) float64 {
	if len(tiers) == 0 {
		return 0
	}

	var (
		best     *models.PriceTier
		smallest *models.PriceTier
	)
	for i := range tiers {
		t := &tiers[i]
		if smallest == nil || t.MinQuantity < smallest.MinQuantity {
			smallest = t
		}
		if t.MinQuantity <= quantity {
			if best == nil || t.MinQuantity > best.MinQuantity {
				best = t
			}
		}
	}

	if best == nil {
		return smallest.UnitPrice
	}
	return best.UnitPrice
}

// LineInput is a requested quote line before pricing.
type LineInput struct {
	ProductID int64
	Quantity  int
	UnitPrice float64
}

// ProductPricing is the catalog data needed to price one product.
type ProductPricing struct {
	FloorPrice float64
	Tiers      []models.PriceTier
}

// Result is the computed quote content. Items, total and the escalation
// flag are produced together so they are always mutually consistent.
type Result struct {
	Items            []models.QuoteItem
	TotalAmount      float64
	RequiresApproval bool
}

// ComputeQuote prices the requested lines against the catalog. A line
// whose entered price deviates from the tier price beyond PriceEpsilon is
// flagged as manually priced; a line strictly below the product floor
// price sets the escalation flag.
func ComputeQuote(lines []LineInput, catalog map[int64]ProductPricing) Result {
	res := Result{Items: make([]models.QuoteItem, 0, len(lines))}

	for _, line := range lines {
		p := catalog[line.ProductID]
		tierPrice := TierPrice(p.Tiers, line.Quantity)

		item := models.QuoteItem{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   float64(line.Quantity) * line.UnitPrice,
			ManualPrice: math.Abs(line.UnitPrice-tierPrice) > PriceEpsilon,
		}

		if line.UnitPrice < p.FloorPrice {
			res.RequiresApproval = true
		}

		res.TotalAmount += item.LineTotal
		res.Items = append(res.Items, item)
	}

	return res
}
