package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docwell/internal/model"
)

type stubPublisher struct {
	err       error
	published []model.Conversation
}

func (p *stubPublisher) Publish(_ context.Context, conv model.Conversation) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, conv)
	return nil
}

type stubCache struct {
	recent map[string][]model.Conversation
	dirty  map[string]bool
}

func newStubCache() *stubCache {
	return &stubCache{
		recent: make(map[string][]model.Conversation),
		dirty:  make(map[string]bool),
	}
}

func (c *stubCache) GetRecent(_ context.Context, userID string) ([]model.Conversation, bool, error) {
	convs, ok := c.recent[userID]
	return convs, ok, nil
}

func (c *stubCache) SetRecent(_ context.Context, userID string, convs []model.Conversation) error {
	c.recent[userID] = convs
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, userID string) error {
	delete(c.recent, userID)
	return nil
}

func (c *stubCache) MarkDirty(_ context.Context, userID string) error {
	c.dirty[userID] = true
	return nil
}

func (c *stubCache) IsDirty(_ context.Context, userID string) (bool, error) {
	return c.dirty[userID], nil
}

func TestConversationRecord_PublishesAndMarksDirty(t *testing.T) {
	pub := &stubPublisher{}
	cch := newStubCache()
	svc := NewConversationService(nil, pub, cch)

	conv := model.Conversation{UserID: "u1", Question: "q", Answer: "a", SourcesUsed: 2, ContextUsed: true}
	require.NoError(t, svc.Record(context.Background(), conv))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "q", pub.published[0].Question)
	assert.True(t, cch.dirty["u1"])
}

func TestConversationRecord_PublishFailure(t *testing.T) {
	pub := &stubPublisher{err: errors.New("broker down")}
	svc := NewConversationService(nil, pub, newStubCache())

	err := svc.Record(context.Background(), model.Conversation{UserID: "u1"})
	assert.ErrorIs(t, err, ErrConversationEnqueue)
}

func TestConversationRecord_RequiresUser(t *testing.T) {
	svc := NewConversationService(nil, &stubPublisher{}, newStubCache())
	err := svc.Record(context.Background(), model.Conversation{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConversationListRecent_CacheHit(t *testing.T) {
	cch := newStubCache()
	cch.recent["u1"] = []model.Conversation{
		{UserID: "u1", Question: "third"},
		{UserID: "u1", Question: "second"},
		{UserID: "u1", Question: "first"},
	}
	// Repo stays nil: a cache hit must never reach the database.
	svc := NewConversationService(nil, &stubPublisher{}, cch)

	convs, err := svc.ListRecent(context.Background(), "u1", 2)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "third", convs[0].Question)
	assert.Equal(t, "second", convs[1].Question)
}

func TestConversationListRecent_RequiresUser(t *testing.T) {
	svc := NewConversationService(nil, &stubPublisher{}, newStubCache())
	_, err := svc.ListRecent(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
