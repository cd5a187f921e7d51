package models

import "time"

// WebhookEvent stores every verified provider webhook payload with
// deduplication metadata for idempotent processing. Rows are append-only;
// ProcessedAt is set exactly once under a `processed_at IS NULL` guard, which
// doubles as the cross-instance concurrency barrier. Payloads that fail
// signature verification are rejected at the boundary and never reach this
// table.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ReceivedAt      time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsProcessed reports whether the event has completed handling.
func (e *WebhookEvent) IsProcessed() bool {
	return e != nil && e.ProcessedAt != nil
}
