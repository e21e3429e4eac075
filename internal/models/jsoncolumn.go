package models

import (
	"database/sql/driver"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// TargetList is a []Target that knows how to (de)serialize itself as a jsonb column.
type TargetList []Target

func (t TargetList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return jsonc.Marshal(t)
}

func (t *TargetList) Scan(src interface{}) error {
	if src == nil {
		*t = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: unsupported scan type %T for TargetList", src)
	}
	return jsonc.Unmarshal(raw, t)
}

// ProfitStopColumn adapts ProfitStop to the jsonb column convention.
type ProfitStopColumn ProfitStop

func (p ProfitStopColumn) Value() (driver.Value, error) {
	return jsonc.Marshal(ProfitStop(p))
}

func (p *ProfitStopColumn) Scan(src interface{}) error {
	if src == nil {
		*p = ProfitStopColumn{Mode: ProfitStopNone}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: unsupported scan type %T for ProfitStopColumn", src)
	}
	return jsonc.Unmarshal(raw, (*ProfitStop)(p))
}

// EventData is a free-form jsonb payload attached to an event-log row.
type EventData map[string]interface{}

func (d EventData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return jsonc.Marshal(map[string]interface{}(d))
}

func (d *EventData) Scan(src interface{}) error {
	if src == nil {
		*d = EventData{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: unsupported scan type %T for EventData", src)
	}
	m := map[string]interface{}{}
	if err := jsonc.Unmarshal(raw, &m); err != nil {
		return err
	}
	*d = m
	return nil
}
