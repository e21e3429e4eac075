package lifecycle

import (
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// dustThreshold is the remaining open-size percent below which a partial
// close is treated as a full close, per §4.5's "remaining < 0.1 → Close".
var dustThreshold = decimal.NewFromFloat(0.1)

// partialCloseResult is the pure computation behind a Partial Close: the new
// open-size percent after reducing by closePct (clamped to what's actually
// open), and the directional PnL percent realized on the closed portion.
type partialCloseResult struct {
	NewOpenPct decimal.Decimal
	PnLPercent decimal.Decimal
	IsDust     bool
}

func computePartialClose(side models.Side, entry, exitPrice, openPct, closePct decimal.Decimal) partialCloseResult {
	closePct = utils.ClampDecimal(closePct, decimal.Zero, openPct)
	newOpen := openPct.Sub(closePct)

	return partialCloseResult{
		NewOpenPct: newOpen,
		PnLPercent: utils.CalculatePnLPercent(string(side), entry, exitPrice),
		IsDust:     newOpen.LessThan(dustThreshold),
	}
}

// shouldAutoCloseOnFinalTarget reports whether hitting target index n should
// trigger an automatic full close, per the CLOSE_AT_FINAL_TP exit strategy.
func shouldAutoCloseOnFinalTarget(exitStrategy models.ExitStrategy, hitIndex, totalTargets int) bool {
	return exitStrategy == models.ExitStrategyCloseAtFinalTP && hitIndex == totalTargets
}

// breakEvenBufferBPS is the move-to-break-even fee buffer, applied on the
// profit side of entry (see §4.5's "entry ± 0.05% fee buffer"). lifecycle.New
// replaces the 5 bps default with LifecycleConfig.BreakEvenBufferBPS when that
// value is positive.
var breakEvenBufferBPS = decimal.NewFromFloat(5) // 5 bps = 0.05%

func computeBreakEven(entry decimal.Decimal, side models.Side) decimal.Decimal {
	return utils.ApplyBreakEvenBuffer(entry, string(side), breakEvenBufferBPS)
}

// entryGapsPastStopLoss reports whether, within the same tick that filled
// ENTRY, price also already breached the stop-loss level — the "SL-before-
// ENTRY" gap case that invalidates instead of activating (§4.4).
func entryGapsPastStopLoss(side models.Side, stopLoss, low, high decimal.Decimal) bool {
	return utils.IsStopLossHit(string(side), lowOrHigh(side, low, high), stopLoss)
}

// lowOrHigh picks the extremum that represents the adverse-direction price
// for side: low for LONG (stop-loss sits below entry), high for SHORT.
func lowOrHigh(side models.Side, low, high decimal.Decimal) decimal.Decimal {
	if side == models.SideShort {
		return high
	}
	return low
}
