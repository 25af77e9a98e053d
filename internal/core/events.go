package core

import (
	"strings"
	"time"
)

// EventType names a ledger change, "<entity>.<verb>".
type EventType string

const (
	EventAccountCreated        EventType = "account.created"
	EventAccountUpdated        EventType = "account.updated"
	EventAccountDeleted        EventType = "account.deleted"
	EventTagCreated            EventType = "tag.created"
	EventTagUpdated            EventType = "tag.updated"
	EventTagDeleted            EventType = "tag.deleted"
	EventTransactionCreated    EventType = "transaction.created"
	EventTransactionDeleted    EventType = "transaction.deleted"
	EventRecurringCreated      EventType = "recurring.created"
	EventRecurringToggled      EventType = "recurring.toggled"
	EventRecurringDeleted      EventType = "recurring.deleted"
	EventRecurringMaterialized EventType = "recurring.materialized"
)

// LedgerEvent is emitted after a mutation has been applied and saved.
type LedgerEvent struct {
	Type     EventType `json:"type"`
	EntityID string    `json:"entity_id"`
	Revision uint64    `json:"revision"`
	At       time.Time `json:"at"`
}

// Entity returns the part of the type before the dot.
func (t EventType) Entity() string {
	entity, _, _ := strings.Cut(string(t), ".")
	return entity
}

// Verb returns the part of the type after the dot.
func (t EventType) Verb() string {
	_, verb, _ := strings.Cut(string(t), ".")
	return verb
}
