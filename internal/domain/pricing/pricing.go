// Package pricing holds the fixed pricing rules applied during a sync: the
// promotional sale price and the flat-rate shipping tiers.
package pricing

import "github.com/shopspring/decimal"

// PriceScale is the number of decimal places a stored price keeps.
const PriceScale = 2

// ShippingMethodTitle is the title of the shipping line added to every order.
const ShippingMethodTitle = "Flat Rate Shipping"

var (
	// SaleFactor is the multiplier applied to the regular price (10% off).
	SaleFactor = decimal.RequireFromString("0.90")

	// ShippingWeightLimit is the heaviest total weight still billed at the
	// light tier.
	ShippingWeightLimit = decimal.NewFromInt(10)

	// ShippingLight and ShippingHeavy are the flat-rate tier costs.
	ShippingLight = decimal.NewFromInt(10)
	ShippingHeavy = decimal.NewFromInt(20)
)

// RoundPrice rounds a price to PriceScale places half away from zero, the
// precision the store keeps.
func RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(PriceScale)
}

// SalePrice returns the promotional price for a regular price, rounded to two
// decimal places half away from zero.
func SalePrice(regular decimal.Decimal) decimal.Decimal {
	return RoundPrice(regular.Mul(SaleFactor))
}

// ShippingCost returns the flat-rate shipping cost for the summed weight of
// every product in a batch.
func ShippingCost(totalWeight decimal.Decimal) decimal.Decimal {
	if totalWeight.LessThanOrEqual(ShippingWeightLimit) {
		return ShippingLight
	}
	return ShippingHeavy
}

// TotalWeight sums the given weights.
func TotalWeight(weights ...decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	return sum
}
