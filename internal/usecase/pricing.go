package usecase

import (
	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/apperror"
	"service-marketplace/pkg/utils"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var minutesPerHour = decimal.NewFromInt(60)

type PricingCalculator interface {
	Compute(service *entity.ServiceOffering, durationMinutes int) (entity.PriceBreakdown, error)
}

type pricingCalculator struct {
	taxRate decimal.Decimal
	feeRate decimal.Decimal
}

func NewPricingCalculator(config utils.PricingConfig) PricingCalculator {
	return &pricingCalculator{
		taxRate: decimal.NewFromFloat(config.TaxRate),
		feeRate: decimal.NewFromFloat(config.PlatformFeeRate),
	}
}

// Compute keeps full precision until the end: total is the exact sum rounded half-up
// to cents, and each component is rounded on its own for display. The displayed parts
// may therefore differ from total by a cent. MinimumCharge is not applied.
func (p *pricingCalculator) Compute(service *entity.ServiceOffering, durationMinutes int) (entity.PriceBreakdown, error) {
	if service == nil {
		return entity.PriceBreakdown{}, apperror.Validation(nil, "service offering is required")
	}
	if !service.Price.Amount.IsPositive() {
		return entity.PriceBreakdown{}, apperror.Validation(
			map[string]string{"price.amount": "Must be greater than 0"},
			"invalid price amount %s", service.Price.Amount)
	}
	if durationMinutes <= 0 {
		return entity.PriceBreakdown{}, apperror.Validation(
			map[string]string{"duration": "Must be greater than 0"},
			"invalid duration %d", durationMinutes)
	}

	servicePrice := service.Price.Amount
	if service.Price.Type == entity.PriceTypeHourly {
		servicePrice = servicePrice.Mul(decimal.NewFromInt(int64(durationMinutes))).Div(minutesPerHour)
	}

	materials := decimal.Zero
	for _, m := range service.Materials {
		if m.IsRequired {
			materials = materials.Add(m.Cost)
		}
	}

	taxes := servicePrice.Mul(p.taxRate)
	fees := servicePrice.Mul(p.feeRate)
	total := servicePrice.Add(materials).Add(taxes).Add(fees)

	return entity.PriceBreakdown{
		ServicePrice:  servicePrice.Round(moneyPlaces),
		MaterialsCost: materials.Round(moneyPlaces),
		Taxes:         taxes.Round(moneyPlaces),
		Fees:          fees.Round(moneyPlaces),
		Total:         total.Round(moneyPlaces),
		Currency:      service.Price.Currency,
	}, nil
}
