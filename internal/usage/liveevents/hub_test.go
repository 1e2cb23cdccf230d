package liveevents

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	hub := NewHub()
	hub.Publish(domain.Event{ID: 1, AccountID: 7})

	sub, backlog, err := hub.Subscribe(7)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, backlog)
}

func TestSubscribersReceiveOnlyTheirAccount(t *testing.T) {
	hub := NewHub()
	first, _, err := hub.Subscribe(7)
	require.NoError(t, err)
	defer first.Close()

	hub.Publish(domain.Event{ID: 1, AccountID: 7, Category: "email"})
	hub.Publish(domain.Event{ID: 2, AccountID: 8, Category: "email"})

	got := <-first.Events()
	assert.Equal(t, snowflake.ID(1), got.ID)
	select {
	case extra := <-first.Events():
		t.Fatalf("unexpected event %v", extra.ID)
	default:
	}

	late, backlog, err := hub.Subscribe(7)
	require.NoError(t, err)
	defer late.Close()
	require.Len(t, backlog, 1)
	assert.Equal(t, snowflake.ID(1), backlog[0].ID)
}

func TestBacklogIsBounded(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(7)
	require.NoError(t, err)
	defer sub.Close()

	for i := 1; i <= DefaultBufferSize+5; i++ {
		hub.Publish(domain.Event{ID: snowflake.ID(i), AccountID: 7})
	}

	other, backlog, err := hub.Subscribe(7)
	require.NoError(t, err)
	defer other.Close()
	require.Len(t, backlog, DefaultBufferSize)
	assert.Equal(t, snowflake.ID(6), backlog[0].ID)
}

func TestCloseDropsEmptyStream(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(7)
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	hub.mu.RLock()
	_, ok := hub.streams[7]
	hub.mu.RUnlock()
	assert.False(t, ok)
}

func TestNilHubAndInvalidAccount(t *testing.T) {
	var hub *Hub
	hub.Publish(domain.Event{AccountID: 7})
	_, _, err := hub.Subscribe(7)
	assert.ErrorIs(t, err, ErrHubUnavailable)

	_, _, err = NewHub().Subscribe(0)
	assert.ErrorIs(t, err, ErrInvalidAccount)
}
