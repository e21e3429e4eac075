package models

import "github.com/shopspring/decimal"

// Target представляет один уровень тейк-профита и долю позиции, закрываемую на нём.
type Target struct {
	Price        decimal.Decimal `json:"price"`
	ClosePercent decimal.Decimal `json:"close_percent"`
}

// ProfitStop описывает необязательный защитный стоп поверх стандартного SL.
type ProfitStop struct {
	Mode         ProfitStopMode  `json:"mode"`
	Price        decimal.Decimal `json:"price"`
	Trailing     decimal.Decimal `json:"trailing"`
	TrailingUnit TrailingUnit    `json:"trailing_unit,omitempty"`
	Active       bool            `json:"active"`
}

// Enabled reports whether the profit-stop should currently produce a trigger.
func (p ProfitStop) Enabled() bool {
	return p.Mode != ProfitStopNone && p.Active
}
