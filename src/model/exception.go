package model

import "time"

// Exception is a captured failure kept for auditing. Transient authority
// failures swallowed by the tick loop end up here.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "engine"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "dispatcher"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Fire"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error

	// JSON encoded extra fields
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
