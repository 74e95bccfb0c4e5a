package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	domain "github.com/decoriva/api/internal/domain"
)

// ErrPricingInvalidInput signals negative amounts in a pricing request.
var ErrPricingInvalidInput = errors.New("pricing: invalid input")

// PricingCalculator computes the final charge for a booking from the base
// price, priced addons, and an optional coupon. Coupon rates are fixed at
// construction; an unknown coupon code simply yields no discount.
type PricingCalculator struct {
	coupons map[string]float64
}

// NewPricingCalculator validates the coupon table. A rate outside (0, 1] is a
// configuration error, not a runtime condition.
func NewPricingCalculator(couponRates map[string]float64) (*PricingCalculator, error) {
	coupons := make(map[string]float64, len(couponRates))
	for code, rate := range couponRates {
		normalised := strings.ToUpper(strings.TrimSpace(code))
		if normalised == "" {
			return nil, errors.New("pricing: coupon code must not be empty")
		}
		if rate <= 0 || rate > 1 {
			return nil, fmt.Errorf("pricing: coupon %s rate %v outside (0,1]", normalised, rate)
		}
		coupons[normalised] = rate
	}
	return &PricingCalculator{coupons: coupons}, nil
}

// PriceQuote breaks the charge into its components so callers can describe the
// discount as well as collect the final amount.
type PriceQuote struct {
	AddonsTotal    int64
	Subtotal       int64
	DiscountAmount int64
	FinalAmount    int64
}

// Quote totals the base price and addons, then prices the coupon discount.
// Half-up rounding applies to the discount itself, so the client is never
// charged more than subtotal minus the rounded discount. The final amount
// never goes below zero.
func (c *PricingCalculator) Quote(base int64, addons []domain.BookingAddon, coupon string) (PriceQuote, error) {
	if base < 0 {
		return PriceQuote{}, ErrPricingInvalidInput
	}

	var addonsTotal int64
	for _, addon := range addons {
		if addon.Price < 0 {
			return PriceQuote{}, ErrPricingInvalidInput
		}
		addonsTotal += addon.Price
	}

	quote := PriceQuote{
		AddonsTotal: addonsTotal,
		Subtotal:    base + addonsTotal,
	}
	if rate, ok := c.rateFor(coupon); ok {
		quote.DiscountAmount = roundHalfUp(float64(quote.Subtotal) * rate)
	}
	quote.FinalAmount = quote.Subtotal - quote.DiscountAmount
	if quote.FinalAmount < 0 {
		quote.FinalAmount = 0
	}
	return quote, nil
}

// DiscountRate reports the configured rate for the code, if any.
func (c *PricingCalculator) DiscountRate(coupon string) (float64, bool) {
	return c.rateFor(coupon)
}

func (c *PricingCalculator) rateFor(coupon string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	code := strings.ToUpper(strings.TrimSpace(coupon))
	if code == "" {
		return 0, false
	}
	rate, ok := c.coupons[code]
	return rate, ok
}

func roundHalfUp(value float64) int64 {
	return int64(math.Floor(value + 0.5))
}
