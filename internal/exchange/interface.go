// Package exchange implements the Exchange Adapter contract: each adapter
// owns one exchange's public market-data WebSocket feed and emits a
// normalized stream of price ticks. Adapters never place orders or read
// balances — this module only consumes public market data.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// Tick is one normalized price observation from an adapter. Low/High are the
// extrema observed since the previous tick for this symbol (miniTicker-style),
// not a single last-trade price.
type Tick struct {
	Source    models.Source
	Symbol    string
	Low       decimal.Decimal
	High      decimal.Decimal
	Timestamp time.Time
}

// Handler receives every tick an adapter's active subscriptions produce.
// It must not block: the adapter calls it synchronously from its read loop.
type Handler func(Tick)

// Adapter is the unified interface every exchange source implements.
type Adapter interface {
	// Name returns the adapter's source identifier, e.g. "BINANCE".
	Name() models.Source

	// Stream connects, subscribes to symbols, and invokes handler for every
	// tick until ctx is cancelled or an unrecoverable error occurs. Stream
	// reconnects internally on transient failures and only returns when ctx
	// is done or it gives up.
	Stream(ctx context.Context, symbols []string, handler Handler) error

	// Resubscribe adjusts the live symbol set, called when the Aggregator's
	// symbol set changes. How it does so is per adapter: Binance closes and
	// redials with the new set; Bybit sends a subscribe for the new set on the
	// open connection and does not unsubscribe symbols that were dropped.
	Resubscribe(symbols []string) error

	// Close tears down the adapter's connection.
	Close() error
}
