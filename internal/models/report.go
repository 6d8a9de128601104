package models

import "time"

type AppSummary struct {
	AppID      string  `json:"app_id"`
	Label      string  `json:"label"`
	TotalMs    int64   `json:"total_ms"`
	Percentage float64 `json:"percentage,omitempty"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period      ReportPeriod `json:"period"`
	Mode        string       `json:"mode"` // "exact" or "bucketed"
	Apps        []AppSummary `json:"apps"`
	TotalMs     int64        `json:"total_ms"`
	GeneratedAt time.Time    `json:"generated_at"`
}
