package store

import (
	"encoding/json"
	"time"
)

// ProviderConfig is a stored upstream endpoint configuration. The dispatcher
// reads these; only the HTTP configuration API mutates them.
type ProviderConfig struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	URL      string `gorm:"size:512;not null" json:"url"`
	APIKey   string `gorm:"size:512" json:"api_key"`
	Headers  string `gorm:"type:text" json:"-"` // JSON-encoded map
	Model    string `gorm:"size:128" json:"model"`
	IsActive bool   `gorm:"default:false;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProviderConfig) TableName() string { return "api_configs" }

// HeaderMap decodes the extra-header column. A missing or malformed column
// yields an empty map.
func (c *ProviderConfig) HeaderMap() map[string]string {
	if c.Headers == "" {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(c.Headers), &m); err != nil {
		return map[string]string{}
	}
	return m
}

// SetHeaderMap encodes and stores the extra-header map.
func (c *ProviderConfig) SetHeaderMap(h map[string]string) {
	if len(h) == 0 {
		c.Headers = ""
		return
	}
	raw, _ := json.Marshal(h)
	c.Headers = string(raw)
}

// HistoryRecord is the relational form of one completed generation attempt.
type HistoryRecord struct {
	ID      string `gorm:"primaryKey;size:64" json:"id"`
	Prompt  string `gorm:"type:text" json:"prompt"`
	Success bool   `json:"success"`
	Images  string `gorm:"type:text" json:"-"` // JSON array of image refs
	Params  string `gorm:"type:text" json:"-"` // JSON parameter snapshot

	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (HistoryRecord) TableName() string { return "chat_history" }
