package app

import (
	"context"
	"errors"
	"log"

	"docwell/internal/model"
	"docwell/internal/repository"
)

var ErrConversationEnqueue = errors.New("conversation enqueue failed")

// AsyncConversationPublisher hands answered questions to the persistence queue.
type AsyncConversationPublisher interface {
	Publish(ctx context.Context, conv model.Conversation) error
}

// ConversationCache keeps an owner's recent history hot. The dirty marker
// covers the window between enqueueing a record and the worker persisting it.
type ConversationCache interface {
	GetRecent(ctx context.Context, userID string) ([]model.Conversation, bool, error)
	SetRecent(ctx context.Context, userID string, convs []model.Conversation) error
	Invalidate(ctx context.Context, userID string) error
	MarkDirty(ctx context.Context, userID string) error
	IsDirty(ctx context.Context, userID string) (bool, error)
}

// ConversationService records answered questions asynchronously and serves
// recent history cache-first.
type ConversationService struct {
	repo      *repository.ConversationRepository
	publisher AsyncConversationPublisher
	cache     ConversationCache
}

func NewConversationService(
	repo *repository.ConversationRepository,
	publisher AsyncConversationPublisher,
	cache ConversationCache,
) *ConversationService {
	return &ConversationService{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
	}
}

// Record enqueues one answered question for background persistence and marks
// the owner's cached history dirty.
func (s *ConversationService) Record(ctx context.Context, conv model.Conversation) error {
	if conv.UserID == "" {
		return ErrInvalidInput
	}
	if err := s.publisher.Publish(ctx, conv); err != nil {
		return ErrConversationEnqueue
	}
	if err := s.cache.MarkDirty(ctx, conv.UserID); err != nil {
		log.Printf("mark conversation cache dirty failed: %v", err)
	}
	return nil
}

// ListRecent returns the owner's latest conversations, newest first. The cache
// is bypassed while the dirty marker is up so a freshly enqueued record is not
// hidden behind a stale entry.
func (s *ConversationService) ListRecent(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	dirty, err := s.cache.IsDirty(ctx, userID)
	if err != nil {
		log.Printf("check conversation cache dirty failed: %v", err)
		dirty = true
	}
	if !dirty {
		if cached, ok, err := s.cache.GetRecent(ctx, userID); err == nil && ok {
			return trimConversations(cached, limit), nil
		}
	}

	convs, err := s.repo.ListByUserID(userID, limit)
	if err != nil {
		return nil, err
	}
	if !dirty {
		if err := s.cache.SetRecent(ctx, userID, convs); err != nil {
			log.Printf("set conversation cache failed: %v", err)
		}
	}
	return convs, nil
}

func trimConversations(convs []model.Conversation, limit int) []model.Conversation {
	if limit > 0 && len(convs) > limit {
		return convs[:limit]
	}
	return convs
}
