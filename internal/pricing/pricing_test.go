package pricing

import (
	"testing"

	"funnel-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func tiers(pairs ...[2]float64) []models.PriceTier {
	out := make([]models.PriceTier, len(pairs))
	for i, p := range pairs {
		out[i] = models.PriceTier{MinQuantity: int(p[0]), UnitPrice: p[1]}
	}
	return out
}

func TestTierPriceSelectsMostSpecificTier(t *testing.T) {
	table := tiers([2]float64{1, 100}, [2]float64{10000, 90}, [2]float64{100000, 80}, [2]float64{1000000, 70})

	assert.Equal(t, 100.0, TierPrice(table, 1))
	assert.Equal(t, 100.0, TierPrice(table, 9999))
	assert.Equal(t, 90.0, TierPrice(table, 15000))
	assert.Equal(t, 80.0, TierPrice(table, 100000))
	assert.Equal(t, 70.0, TierPrice(table, 5000000))
}

func TestTierPriceUnorderedInput(t *testing.T) {
	table := tiers([2]float64{100000, 80}, [2]float64{1, 100}, [2]float64{1000000, 70}, [2]float64{10000, 90})

	assert.Equal(t, 90.0, TierPrice(table, 15000))
}

func TestTierPriceFallsBackToSmallestTier(t *testing.T) {
	table := tiers([2]float64{50, 95}, [2]float64{100, 85})

	// Quantity below every tier uses the base tier as a defensive default.
	assert.Equal(t, 95.0, TierPrice(table, 10))
}

func TestTierPriceEmptyTable(t *testing.T) {
	assert.Equal(t, 0.0, TierPrice(nil, 100))
	assert.Equal(t, 0.0, TierPrice([]models.PriceTier{}, 100))
}

func TestTierPriceMonotonicity(t *testing.T) {
	table := tiers([2]float64{1, 100}, [2]float64{10, 90}, [2]float64{100, 80}, [2]float64{1000, 70})

	quantities := []int{1, 5, 10, 50, 100, 500, 1000, 10000}
	prev := TierPrice(table, quantities[0])
	for _, q := range quantities[1:] {
		price := TierPrice(table, q)
		assert.LessOrEqual(t, price, prev, "price must not increase with quantity %d", q)
		prev = price
	}
}

func TestComputeQuoteNoFloorBreach(t *testing.T) {
	catalog := map[int64]ProductPricing{
		1: {FloorPrice: 50, Tiers: tiers([2]float64{1, 55})},
		2: {FloorPrice: 80, Tiers: tiers([2]float64{1, 75})},
	}

	res := ComputeQuote([]LineInput{
		{ProductID: 1, Quantity: 10, UnitPrice: 55},
		{ProductID: 2, Quantity: 2, UnitPrice: 75},
	}, catalog)

	assert.False(t, res.RequiresApproval)
	assert.Equal(t, 10*55.0+2*75.0, res.TotalAmount)
	assert.Len(t, res.Items, 2)
	assert.False(t, res.Items[0].ManualPrice)
	assert.False(t, res.Items[1].ManualPrice)
}

func TestComputeQuoteFloorBreachEscalates(t *testing.T) {
	catalog := map[int64]ProductPricing{
		1: {FloorPrice: 50, Tiers: tiers([2]float64{1, 55})},
		2: {FloorPrice: 80, Tiers: tiers([2]float64{1, 75})},
	}

	res := ComputeQuote([]LineInput{
		{ProductID: 1, Quantity: 10, UnitPrice: 55},
		{ProductID: 2, Quantity: 2, UnitPrice: 70},
	}, catalog)

	assert.True(t, res.RequiresApproval)
	assert.True(t, res.Items[1].ManualPrice)
}

func TestComputeQuotePriceAtFloorDoesNotEscalate(t *testing.T) {
	catalog := map[int64]ProductPricing{
		1: {FloorPrice: 80, Tiers: tiers([2]float64{1, 80})},
	}

	// Strictly below the floor triggers approval; exactly at it does not.
	res := ComputeQuote([]LineInput{{ProductID: 1, Quantity: 1, UnitPrice: 80}}, catalog)
	assert.False(t, res.RequiresApproval)

	res = ComputeQuote([]LineInput{{ProductID: 1, Quantity: 1, UnitPrice: 79.999}}, catalog)
	assert.True(t, res.RequiresApproval)
}

func TestComputeQuoteManualPriceEpsilon(t *testing.T) {
	catalog := map[int64]ProductPricing{
		1: {FloorPrice: 10, Tiers: tiers([2]float64{1, 100})},
	}

	res := ComputeQuote([]LineInput{{ProductID: 1, Quantity: 1, UnitPrice: 100.0005}}, catalog)
	assert.False(t, res.Items[0].ManualPrice)

	res = ComputeQuote([]LineInput{{ProductID: 1, Quantity: 1, UnitPrice: 100.01}}, catalog)
	assert.True(t, res.Items[0].ManualPrice)
}

func TestComputeQuoteLineTotals(t *testing.T) {
	catalog := map[int64]ProductPricing{
		7: {FloorPrice: 1, Tiers: tiers([2]float64{1, 3.5})},
	}

	res := ComputeQuote([]LineInput{{ProductID: 7, Quantity: 4, UnitPrice: 3.5}}, catalog)

	assert.Equal(t, 14.0, res.Items[0].LineTotal)
	assert.Equal(t, 14.0, res.TotalAmount)
}
