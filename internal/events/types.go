// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Any matches every event type in Subscribe.
	Any EventType = "*"

	// Settlement events
	Initialized        EventType = "engine.initialized"
	PassGranted        EventType = "pass.granted"
	TokensBought       EventType = "tokens.bought"
	TokensSold         EventType = "tokens.sold"
	TokensLocked       EventType = "lock.opened"
	LockSettled        EventType = "lock.settled"
	LockEarlyExited    EventType = "lock.early_exited"
	VaultOpened        EventType = "vault.opened"
	FoundersPoolOpened EventType = "founders.pool_opened"
	FounderAdded       EventType = "founders.added"
	FounderClaimed     EventType = "founders.claimed"
	TeamChanged        EventType = "team.changed"

	// Rejections
	OperationFailed EventType = "operation.failed"

	// Price events
	PriceUpdated EventType = "price.updated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// SettlementEvent is emitted after an engine operation commits.
type SettlementEvent struct {
	BaseEvent
	Operation string
	Signer    string
	Subject   string

	Gross    uint64 // payment-asset amount the fee split was applied to
	Net      uint64
	Referral uint64
	Protocol uint64
	Founders uint64

	Minted uint64
	Burned uint64

	ReserveAfter uint64
	SupplyAfter  uint64
}

// OperationFailedEvent is emitted when an operation is rejected. Nothing was
// committed.
type OperationFailedEvent struct {
	BaseEvent
	Operation string
	Signer    string
	Code      uint32
	Kind      string
	Error     error
}

// PriceUpdatedEvent is emitted when a committed operation moves the price.
// Prices are payment-asset base units per whole sale unit.
type PriceUpdatedEvent struct {
	BaseEvent
	Before uint64
	After  uint64
}
