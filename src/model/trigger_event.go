package model

import "time"

// Trigger event actions.
const (
	TriggerActionFire     = "fire"
	TriggerActionExpire   = "expire"
	TriggerActionCancel   = "cancel"
	TriggerActionExecuted = "executed"
)

// Trigger event outcomes.
const (
	TriggerOutcomeApplied   = "applied"
	TriggerOutcomeTransient = "transient"
	TriggerOutcomeRejected  = "rejected"
	TriggerOutcomeNoop      = "noop"
)

// TriggerEvent is one decision taken by the engine for a resting order.
// It is a diagnostic journal, not the order book of record.
type TriggerEvent struct {
	ID uint `gorm:"primaryKey" json:"id"`

	OrderID     string `gorm:"size:64;index" json:"order_id"`
	UserID      string `gorm:"size:64;index" json:"user_id"`
	ChallengeID string `gorm:"size:64" json:"challenge_id"`
	Instrument  string `gorm:"size:100;index" json:"instrument"`
	Kind        string `gorm:"size:10" json:"kind"`

	Action  string `gorm:"size:20;not null" json:"action"`  // see TriggerAction* constants
	Leg     string `gorm:"size:20" json:"leg"`              // single | target | stoploss
	Outcome string `gorm:"size:20;not null" json:"outcome"` // see TriggerOutcome* constants
	Reason  string `gorm:"size:255" json:"reason"`

	LTP          string    `gorm:"size:40" json:"ltp"`
	TriggerPrice string    `gorm:"size:40" json:"trigger_price"`
	TickTime     time.Time `json:"tick_time"`
	CreatedAt    time.Time `json:"created_at"`
}

func (TriggerEvent) TableName() string {
	return "trigger_events"
}
