package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/metrics"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

const binanceWSBase = "wss://stream.binance.com:9443/stream?streams="

var binanceJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// binanceMiniTickerFrame mirrors the combined-stream envelope Binance wraps
// each miniTicker payload in: {"stream":"btcusdt@miniTicker","data":{...}}.
type binanceMiniTickerFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Low    string `json:"l"`
		High   string `json:"h"`
	} `json:"data"`
}

// Binance streams the combined miniTicker feed for a dynamic symbol set.
type Binance struct {
	wsManager *WSReconnectManager
	log       *utils.Logger

	mu      sync.RWMutex
	handler Handler
	symbols []string
}

func NewBinance(cfg WSReconnectConfig) *Binance {
	return &Binance{
		log: utils.L().WithExchange(string(models.SourceBinance)),
		wsManager: NewWSReconnectManager(
			string(models.SourceBinance), binanceWSBase, cfg,
		),
	}
}

func (b *Binance) Name() models.Source { return models.SourceBinance }

func (b *Binance) Stream(ctx context.Context, symbols []string, handler Handler) error {
	b.mu.Lock()
	b.handler = handler
	b.symbols = symbols
	b.mu.Unlock()

	b.wsManager.SetOnMessage(b.handleMessage)
	b.wsManager.SetOnConnect(func() {
		b.log.Info("binance stream connected", utils.Int("symbols", len(symbols)))
	})
	b.wsManager.SetOnDisconnect(func(err error) {
		if err != nil {
			b.log.Warn("binance stream disconnected", utils.Err(err))
		}
	})

	if err := b.dialWithStreams(symbols); err != nil {
		return fmt.Errorf("binance: initial connect: %w", err)
	}

	<-ctx.Done()
	return b.Close()
}

// dialWithStreams rebuilds the manager against a URL carrying the requested
// stream names, since Binance's combined stream path is fixed at connect time.
func (b *Binance) dialWithStreams(symbols []string) error {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@miniTicker")
	}
	url := binanceWSBase + strings.Join(streams, "/")

	cfg := b.wsManager.config
	b.wsManager = NewWSReconnectManager(string(models.SourceBinance), url, cfg)
	b.wsManager.SetOnMessage(b.handleMessage)
	return b.wsManager.Connect()
}

func (b *Binance) Resubscribe(symbols []string) error {
	b.mu.Lock()
	b.symbols = symbols
	b.mu.Unlock()

	b.wsManager.Close()
	return b.dialWithStreams(symbols)
}

func (b *Binance) handleMessage(message []byte) {
	var frame binanceMiniTickerFrame
	if err := binanceJSON.Unmarshal(message, &frame); err != nil {
		metrics.DecodeErrors.WithLabelValues(string(models.SourceBinance)).Inc()
		b.log.Warn("binance decode error", utils.Err(err))
		return
	}
	if frame.Data.Symbol == "" {
		return
	}

	low, err := decimal.NewFromString(frame.Data.Low)
	if err != nil {
		return
	}
	high, err := decimal.NewFromString(frame.Data.High)
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
		Source:    models.SourceBinance,
		Symbol:    strings.ToUpper(frame.Data.Symbol),
		Low:       low,
		High:      high,
		Timestamp: time.Now(),
	})
}

func (b *Binance) Close() error {
	return b.wsManager.Close()
}
