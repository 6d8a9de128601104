package models

import (
	"time"
)

// ErrorLog keeps tracker failures for later inspection; the daemon runs
// detached and its log file is not always at hand.
type ErrorLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
	Component     string    `gorm:"not null;default:'';index" json:"component"`
	ErrorMsg      string    `gorm:"not null" json:"error_msg"`
	DisplayServer string    `gorm:"size:16" json:"display_server,omitempty"`
	RunID         string    `gorm:"index" json:"run_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func NewErrorLog(component, runID string, at time.Time, err error) *ErrorLog {
	return &ErrorLog{
		Timestamp: at,
		Component: component,
		ErrorMsg:  err.Error(),
		RunID:     runID,
	}
}
