package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Trigger is a derived, in-memory-only price predicate. It is never persisted;
// the Trigger Index recomputes the full set from authoritative entity state on
// every rebuild (see internal/triggerindex).
type Trigger struct {
	EntityKind EntityKind
	EntityID   int64
	UserID     int64
	Symbol     string
	Side       Side
	Type       TriggerType
	// Index distinguishes same-type triggers on one entity, e.g. TP1 vs TP2.
	// Zero for ENTRY/SL/PROFIT_STOP, which are singletons per entity.
	Index int
	Price decimal.Decimal
	// OrderType is only meaningful for ENTRY triggers, selecting the
	// cross-direction the Evaluator expects (LIMIT vs STOP_MARKET).
	OrderType OrderType
}

// Key identifies a trigger for debounce and dedup purposes: (entity, type) —
// NOT including Index, since the spec's once-per-tick and debounce policies
// are scoped to (entity_id, type) regardless of which TP index fired.
type Key struct {
	EntityKind EntityKind
	EntityID   int64
	Type       TriggerType
}

func (t Trigger) Key() Key {
	return Key{EntityKind: t.EntityKind, EntityID: t.EntityID, Type: t.Type}
}

// DedupKey additionally includes price, matching §4.3's "same entity, type,
// price" duplicate-trigger definition used when building the index.
type DedupKey struct {
	Key
	Price string
}

func (t Trigger) DedupKey() DedupKey {
	return DedupKey{Key: t.Key(), Price: t.Price.String()}
}

// TPName renders the conventional event/trigger label for a take-profit index, e.g. "TP1".
func TPName(index int) string {
	return "TP" + strconv.Itoa(index)
}
