// Package liveevents fans freshly logged usage events out to per-account
// subscribers, keeping a short backlog for late joiners.
package liveevents

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/usage/domain"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

var (
	ErrHubUnavailable = errors.New("hub_unavailable")
	ErrInvalidAccount = errors.New("invalid_account_id")
)

type Hub struct {
	mu               sync.RWMutex
	streams          map[snowflake.ID]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []domain.Event
	subs   map[uint64]chan domain.Event
	nextID uint64
}

type Subscription struct {
	hub       *Hub
	accountID snowflake.ID
	id        uint64
	ch        chan domain.Event
	once      sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[snowflake.ID]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish delivers event to the account's current subscribers. Accounts
// nobody is watching are skipped; slow subscribers drop events.
func (h *Hub) Publish(event domain.Event) {
	if h == nil || event.AccountID == 0 {
		return
	}
	h.mu.RLock()
	stream := h.streams[event.AccountID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan domain.Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for accountID and returns the backlog
// published while the stream was open.
func (h *Hub) Subscribe(accountID snowflake.ID) (*Subscription, []domain.Event, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	if accountID == 0 {
		return nil, nil, ErrInvalidAccount
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.streams[accountID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan domain.Event)}
		h.streams[accountID] = current
	}

	current.mu.Lock()
	id := current.nextID
	current.nextID++
	ch := make(chan domain.Event, h.subscriberBuffer)
	current.subs[id] = ch
	backlog := append([]domain.Event(nil), current.buffer...)
	current.mu.Unlock()

	return &Subscription{
		hub:       h,
		accountID: accountID,
		id:        id,
		ch:        ch,
	}, backlog, nil
}

func (h *Hub) unsubscribe(accountID snowflake.ID, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream := h.streams[accountID]
	if stream == nil {
		return
	}
	stream.mu.Lock()
	delete(stream.subs, id)
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, accountID)
	}
}

func (s *Subscription) Events() <-chan domain.Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.accountID, s.id)
	})
}
