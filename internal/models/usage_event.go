package models

import (
	"time"

	"gorm.io/gorm"
)

// UsageEvent is a persisted foreground transition. Timestamp is milliseconds
// since the Unix epoch so that window queries match the engine's units.
type UsageEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Timestamp     int64          `gorm:"not null;index" json:"timestamp"`
	AppID         string         `gorm:"not null;index" json:"app_id"`
	Kind          string         `gorm:"not null;size:8" json:"kind"` // "enter" or "exit"
	WindowTitle   string         `gorm:"not null;default:''" json:"window_title"`
	DisplayServer string         `gorm:"not null;default:''" json:"display_server"`
	RunID         string         `gorm:"not null;index" json:"run_id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// FocusSample records that AppID held focus for one poll interval.
// Bucket aggregates are sums over these rows.
type FocusSample struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Timestamp  int64          `gorm:"not null;index" json:"timestamp"`
	AppID      string         `gorm:"not null;index" json:"app_id"`
	DurationMs int64          `gorm:"not null;default:0" json:"duration_ms"`
	RunID      string         `gorm:"not null;index" json:"run_id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
