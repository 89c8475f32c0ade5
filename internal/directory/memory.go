package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chatrelay.io/ai-chat-server/internal/core"
)

type Message struct {
	UserID string
	Text   string
}

type Channel struct {
	ID        string
	CreatedBy string
	Messages  []Message
}

// Memory is an in-process core.Directory for local development and tests.
type Memory struct {
	mu       sync.Mutex
	users    map[string]core.DirectoryUser
	channels map[string]*Channel
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]core.DirectoryUser),
		channels: make(map[string]*Channel),
	}
}

func (m *Memory) GetUser(_ context.Context, id string) (*core.DirectoryUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) UpsertUser(_ context.Context, user core.DirectoryUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]core.DirectoryUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]core.DirectoryUser, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *Memory) EnsureChannel(_ context.Context, channelID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		m.channels[channelID] = &Channel{ID: channelID, CreatedBy: ownerID}
	}
	return nil
}

func (m *Memory) SendMessage(_ context.Context, channelID, authorID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s does not exist", channelID)
	}
	ch.Messages = append(ch.Messages, Message{UserID: authorID, Text: text})
	return nil
}

// Channel returns a copy of the channel with the given id.
func (m *Memory) Channel(channelID string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return Channel{}, false
	}
	cp := *ch
	cp.Messages = append([]Message(nil), ch.Messages...)
	return cp, true
}

func (m *Memory) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}
