package amqp

import (
	"encoding/json"
	"errors"
	"fmt"

	"calmledger/internal/core"
)

// ContentType of every published body.
const ContentType = "application/json"

var errMissingType = errors.New("ledger event without type")

// EncodeEvent serialises a ledger event for the wire.
func EncodeEvent(ev core.LedgerEvent) ([]byte, error) {
	if ev.Type == "" {
		return nil, errMissingType
	}
	return json.Marshal(ev)
}

// DecodeEvent parses a delivery body.
func DecodeEvent(data []byte) (core.LedgerEvent, error) {
	var ev core.LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.LedgerEvent{}, fmt.Errorf("decode ledger event: %w", err)
	}
	if ev.Type == "" {
		return core.LedgerEvent{}, errMissingType
	}
	return ev, nil
}
