package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PriceType string

const (
	PriceTypeFixed  PriceType = "fixed"
	PriceTypeHourly PriceType = "hourly"
	PriceTypeCustom PriceType = "custom"
)

type ServicePrice struct {
	Type          PriceType        `db:"price_type"`
	Amount        decimal.Decimal  `db:"price_amount"`
	Currency      string           `db:"price_currency"`
	MinimumCharge *decimal.Decimal `db:"price_minimum_charge"`
}

type Material struct {
	Name       string          `json:"name"`
	Cost       decimal.Decimal `json:"cost"`
	IsRequired bool            `json:"isRequired"`
}

// ServiceOffering is read-only input to pricing and scheduling.
type ServiceOffering struct {
	Base
	ProviderID      uuid.UUID    `db:"provider_id"`
	Title           string       `db:"title"`
	DurationMinutes int          `db:"duration_minutes"`
	IsActive        bool         `db:"is_active"`
	Price           ServicePrice
	Materials       []Material `db:"materials"`
}
