package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/metrics"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

const bybitWSPublic = "wss://stream.bybit.com/v5/public/linear"

var bybitJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// bybitTickerFrame is the v5 public "tickers.<symbol>" push payload.
type bybitTickerFrame struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol       string `json:"symbol"`
		HighPrice24h string `json:"highPrice24h"`
		LowPrice24h  string `json:"lowPrice24h"`
	} `json:"data"`
}

// Bybit streams the v5 linear "tickers" topic for a dynamic symbol set.
type Bybit struct {
	wsManager *WSReconnectManager
	log       *utils.Logger

	mu      sync.RWMutex
	handler Handler
}

func NewBybit(cfg WSReconnectConfig) *Bybit {
	return &Bybit{
		log:       utils.L().WithExchange(string(models.SourceBybit)),
		wsManager: NewWSReconnectManager(string(models.SourceBybit), bybitWSPublic, cfg),
	}
}

func (b *Bybit) Name() models.Source { return models.SourceBybit }

func (b *Bybit) Stream(ctx context.Context, symbols []string, handler Handler) error {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()

	b.wsManager.SetOnMessage(b.handleMessage)
	b.wsManager.SetOnConnect(func() {
		b.log.Info("bybit stream connected", utils.Int("symbols", len(symbols)))
	})
	b.wsManager.SetOnDisconnect(func(err error) {
		if err != nil {
			b.log.Warn("bybit stream disconnected", utils.Err(err))
		}
	})

	if err := b.wsManager.Connect(); err != nil {
		return fmt.Errorf("bybit: initial connect: %w", err)
	}

	if err := b.subscribe(symbols); err != nil {
		return fmt.Errorf("bybit: subscribe: %w", err)
	}

	<-ctx.Done()
	return b.Close()
}

func (b *Bybit) subscribe(symbols []string) error {
	args := make([]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, "tickers."+s)
	}

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}

	b.wsManager.AddSubscription(subMsg)
	return b.wsManager.Send(subMsg)
}

func (b *Bybit) Resubscribe(symbols []string) error {
	b.wsManager.ClearSubscriptions()
	return b.subscribe(symbols)
}

func (b *Bybit) handleMessage(message []byte) {
	var frame bybitTickerFrame
	if err := bybitJSON.Unmarshal(message, &frame); err != nil {
		metrics.DecodeErrors.WithLabelValues(string(models.SourceBybit)).Inc()
		b.log.Warn("bybit decode error", utils.Err(err))
		return
	}
	if frame.Data.Symbol == "" || frame.Data.HighPrice24h == "" || frame.Data.LowPrice24h == "" {
		return
	}

	low, err := decimal.NewFromString(frame.Data.LowPrice24h)
	if err != nil {
		return
	}
	high, err := decimal.NewFromString(frame.Data.HighPrice24h)
	if err != nil {
		return
	}

	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler == nil {
		return
	}

	handler(Tick{
		Source:    models.SourceBybit,
		Symbol:    frame.Data.Symbol,
		Low:       low,
		High:      high,
		Timestamp: time.Now(),
	})
}

func (b *Bybit) Close() error {
	return b.wsManager.Close()
}
