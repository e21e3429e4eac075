package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol        = errors.New("invalid symbol format")
	ErrInvalidPercent       = errors.New("percent must be within (0, 100]")
	ErrInvalidPriceOrdering = errors.New("prices are not ordered correctly for side")
	ErrInvalidTargets       = errors.New("targets are empty or do not sum to at most 100 percent")
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9_/-]{2,20}$`)

// ValidateSymbol checks the asset symbol against the accepted character set
// and length, e.g. "BTCUSDT", "BTC-USDT".
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// NormalizeSymbol uppercases a symbol and strips the separators exchanges
// disagree on, so the same instrument compares equal across adapters.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// ValidatePositive requires v > 0, naming the offending field in the error.
func ValidatePositive(field string, v decimal.Decimal) error {
	if v.Sign() <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, v.String())
	}
	return nil
}

// ValidatePercent requires 0 < pct <= 100.
func ValidatePercent(pct decimal.Decimal) error {
	if pct.Sign() <= 0 || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: got %s", ErrInvalidPercent, pct.String())
	}
	return nil
}

// ValidatePriceOrdering enforces the §3 invariant that stop-loss and targets
// sit on the correct side of entry: for LONG, SL < entry < TP1 < TP2 < ...;
// for SHORT, the inequalities reverse. Targets must already be in the order
// the caller intends to hit them.
func ValidatePriceOrdering(side string, entry, stopLoss decimal.Decimal, targets []decimal.Decimal) error {
	switch normalizeSide(side) {
	case "LONG":
		if !stopLoss.LessThan(entry) {
			return fmt.Errorf("%w: stop_loss must be below entry for LONG", ErrInvalidPriceOrdering)
		}
		prev := entry
		for i, tp := range targets {
			if !tp.GreaterThan(prev) {
				return fmt.Errorf("%w: target %d must be above the preceding price for LONG", ErrInvalidPriceOrdering, i+1)
			}
			prev = tp
		}
	case "SHORT":
		if !stopLoss.GreaterThan(entry) {
			return fmt.Errorf("%w: stop_loss must be above entry for SHORT", ErrInvalidPriceOrdering)
		}
		prev := entry
		for i, tp := range targets {
			if !tp.LessThan(prev) {
				return fmt.Errorf("%w: target %d must be below the preceding price for SHORT", ErrInvalidPriceOrdering, i+1)
			}
			prev = tp
		}
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidPriceOrdering, side)
	}
	return nil
}

// ValidateTargetPercents requires at least one target, each with a positive
// close percentage, summing to no more than 100.
func ValidateTargetPercents(percents []decimal.Decimal) error {
	if len(percents) == 0 {
		return ErrInvalidTargets
	}
	total := decimal.Zero
	for _, p := range percents {
		if p.Sign() <= 0 {
			return ErrInvalidTargets
		}
		total = total.Add(p)
	}
	if total.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidTargets
	}
	return nil
}
