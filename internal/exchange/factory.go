package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/config"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// SupportedSources lists every source this build can construct an Adapter for.
var SupportedSources = []string{
	string(models.SourceBinance),
	string(models.SourceBybit),
}

// IsSupported reports whether name names a constructible adapter source.
func IsSupported(name string) bool {
	name = strings.ToUpper(name)
	for _, s := range SupportedSources {
		if s == name {
			return true
		}
	}
	return false
}

// New constructs the Adapter for one AdapterConfig entry.
func New(cfg config.AdapterConfig) (Adapter, error) {
	reconnect := WSReconnectConfig{
		InitialDelay:   cfg.BackoffBase,
		MaxDelay:       cfg.BackoffCap,
		MaxRetries:     0,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   20 * time.Second,
		PongTimeout:    10 * time.Second,
	}

	switch strings.ToUpper(cfg.Source) {
	case string(models.SourceBinance):
		return NewBinance(reconnect), nil
	case string(models.SourceBybit):
		return NewBybit(reconnect), nil
	default:
		return nil, fmt.Errorf("exchange: unsupported source %q", cfg.Source)
	}
}

// NewAll constructs one Adapter per enabled entry in cfg.Adapters.
func NewAll(cfg config.ExchangeConfig) (map[models.Source]Adapter, error) {
	adapters := make(map[models.Source]Adapter, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		if !a.Enabled {
			continue
		}
		adapter, err := New(a)
		if err != nil {
			return nil, err
		}
		adapters[adapter.Name()] = adapter
	}
	return adapters, nil
}
