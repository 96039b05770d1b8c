package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docwell/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

// ListByUserID returns the user's conversations, newest first.
func (r *ConversationRepository) ListByUserID(userID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var convs []model.Conversation
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return convs, nil
}
