package model

import "time"

// Conversation is one answered question, persisted asynchronously for history.
type Conversation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	Answer      string    `gorm:"type:text;not null" json:"answer"`
	SourcesUsed int       `json:"sources_used"`
	ContextUsed bool      `json:"context_used"`
	CreatedAt   time.Time `json:"created_at"`
}
