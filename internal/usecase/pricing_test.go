package usecase

import (
	"testing"

	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/apperror"
	"service-marketplace/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPricing() PricingCalculator {
	return NewPricingCalculator(utils.PricingConfig{TaxRate: 0.08, PlatformFeeRate: 0.03})
}

func offering(priceType entity.PriceType, amount string, materials ...entity.Material) *entity.ServiceOffering {
	return &entity.ServiceOffering{
		Base:            entity.Base{ID: uuid.New()},
		ProviderID:      uuid.New(),
		Title:           "Plumbing",
		DurationMinutes: 60,
		IsActive:        true,
		Price: entity.ServicePrice{
			Type:     priceType,
			Amount:   decimal.RequireFromString(amount),
			Currency: "USD",
		},
		Materials: materials,
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func TestPricing_HourlyExample(t *testing.T) {
	price, err := defaultPricing().Compute(offering(entity.PriceTypeHourly, "100"), 90)
	require.NoError(t, err)

	assertMoney(t, "150.00", price.ServicePrice)
	assertMoney(t, "0.00", price.MaterialsCost)
	assertMoney(t, "12.00", price.Taxes)
	assertMoney(t, "4.50", price.Fees)
	assertMoney(t, "166.50", price.Total)
	assert.Equal(t, "USD", price.Currency)
}

func TestPricing_FixedIgnoresDuration(t *testing.T) {
	p := defaultPricing()
	service := offering(entity.PriceTypeFixed, "80")

	short, err := p.Compute(service, 30)
	require.NoError(t, err)
	long, err := p.Compute(service, 240)
	require.NoError(t, err)

	assertMoney(t, "80.00", short.ServicePrice)
	assert.True(t, short.Total.Equal(long.Total))
}

func TestPricing_CustomUsesAmount(t *testing.T) {
	price, err := defaultPricing().Compute(offering(entity.PriceTypeCustom, "45.5"), 15)
	require.NoError(t, err)
	assertMoney(t, "45.50", price.ServicePrice)
}

func TestPricing_OnlyRequiredMaterials(t *testing.T) {
	service := offering(entity.PriceTypeFixed, "100",
		entity.Material{Name: "pipe", Cost: decimal.RequireFromString("12.25"), IsRequired: true},
		entity.Material{Name: "sealant", Cost: decimal.RequireFromString("3.10"), IsRequired: true},
		entity.Material{Name: "polish", Cost: decimal.RequireFromString("99"), IsRequired: false},
	)

	price, err := defaultPricing().Compute(service, 60)
	require.NoError(t, err)

	assertMoney(t, "15.35", price.MaterialsCost)
	assertMoney(t, "8.00", price.Taxes)
	assertMoney(t, "3.00", price.Fees)
	assertMoney(t, "126.35", price.Total)
}

func TestPricing_TotalRoundsExactSum(t *testing.T) {
	// 100.05 + 8.004 + 3.0015 = 111.0555
	price, err := defaultPricing().Compute(offering(entity.PriceTypeFixed, "100.05"), 60)
	require.NoError(t, err)

	assertMoney(t, "100.05", price.ServicePrice)
	assertMoney(t, "8.00", price.Taxes)
	assertMoney(t, "3.00", price.Fees)
	assertMoney(t, "111.06", price.Total)

	displayed := price.ServicePrice.Add(price.MaterialsCost).Add(price.Taxes).Add(price.Fees)
	assertMoney(t, "111.05", displayed)
}

func TestPricing_ComponentsRoundHalfUp(t *testing.T) {
	// 33.33 * 50 / 60 = 27.775
	price, err := defaultPricing().Compute(offering(entity.PriceTypeHourly, "33.33"), 50)
	require.NoError(t, err)

	assertMoney(t, "27.78", price.ServicePrice)
	assertMoney(t, "2.22", price.Taxes)
	assertMoney(t, "0.83", price.Fees)
	// 27.775 + 2.222 + 0.83325 = 30.83025
	assertMoney(t, "30.83", price.Total)
}

func TestPricing_Deterministic(t *testing.T) {
	p := defaultPricing()
	service := offering(entity.PriceTypeHourly, "57.99",
		entity.Material{Name: "filter", Cost: decimal.RequireFromString("7.45"), IsRequired: true})

	first, err := p.Compute(service, 135)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := p.Compute(service, 135)
		require.NoError(t, err)
		assert.Equal(t, first.Total.String(), again.Total.String())
		assert.Equal(t, first.Taxes.String(), again.Taxes.String())
	}
}

func TestPricing_HourlyLinearity(t *testing.T) {
	p := defaultPricing()
	service := offering(entity.PriceTypeHourly, "100")

	for _, d := range []int{15, 30, 45, 60, 90, 120} {
		single, err := p.Compute(service, d)
		require.NoError(t, err)
		double, err := p.Compute(service, 2*d)
		require.NoError(t, err)

		assert.True(t, double.ServicePrice.Equal(single.ServicePrice.Mul(decimal.NewFromInt(2))), "duration %d", d)
	}
}

func TestPricing_InvalidInput(t *testing.T) {
	p := defaultPricing()

	tests := []struct {
		name     string
		service  *entity.ServiceOffering
		duration int
	}{
		{name: "zero amount", service: offering(entity.PriceTypeFixed, "0"), duration: 60},
		{name: "negative amount", service: offering(entity.PriceTypeHourly, "-10"), duration: 60},
		{name: "zero duration", service: offering(entity.PriceTypeHourly, "50"), duration: 0},
		{name: "negative duration", service: offering(entity.PriceTypeFixed, "50"), duration: -30},
		{name: "missing service", service: nil, duration: 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Compute(tt.service, tt.duration)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestPricing_ConfiguredRates(t *testing.T) {
	p := NewPricingCalculator(utils.PricingConfig{TaxRate: 0.1, PlatformFeeRate: 0.05})

	price, err := p.Compute(offering(entity.PriceTypeFixed, "200"), 60)
	require.NoError(t, err)
	assertMoney(t, "20.00", price.Taxes)
	assertMoney(t, "10.00", price.Fees)
	assertMoney(t, "230.00", price.Total)
}
