package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatrelay.io/ai-chat-server/internal/core"
	"chatrelay.io/ai-chat-server/internal/directory"
	"chatrelay.io/ai-chat-server/internal/store"
)

var errBoom = errors.New("boom")

// fakeDirectory counts calls into an in-memory directory and can fail them.
type fakeDirectory struct {
	*directory.Memory

	getErr, upsertErr, listErr, ensureErr, sendErr error

	gets, upserts, ensures, sends int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{Memory: directory.NewMemory()}
}

func (d *fakeDirectory) calls() int { return d.gets + d.upserts + d.ensures + d.sends }

func (d *fakeDirectory) GetUser(ctx context.Context, id string) (*core.DirectoryUser, error) {
	d.gets++
	if d.getErr != nil {
		return nil, d.getErr
	}
	return d.Memory.GetUser(ctx, id)
}

func (d *fakeDirectory) UpsertUser(ctx context.Context, u core.DirectoryUser) error {
	d.upserts++
	if d.upsertErr != nil {
		return d.upsertErr
	}
	return d.Memory.UpsertUser(ctx, u)
}

func (d *fakeDirectory) ListUsers(ctx context.Context) ([]core.DirectoryUser, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.Memory.ListUsers(ctx)
}

func (d *fakeDirectory) EnsureChannel(ctx context.Context, channelID, ownerID string) error {
	d.ensures++
	if d.ensureErr != nil {
		return d.ensureErr
	}
	return d.Memory.EnsureChannel(ctx, channelID, ownerID)
}

func (d *fakeDirectory) SendMessage(ctx context.Context, channelID, authorID, text string) error {
	d.sends++
	if d.sendErr != nil {
		return d.sendErr
	}
	return d.Memory.SendMessage(ctx, channelID, authorID, text)
}

// fakeStore implements UserStore and ChatLogStore in memory.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]store.User
	logs  []store.ChatLog

	getErr, createErr, appendErr error

	gets, creates, appends int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]store.User)}
}

func (s *fakeStore) calls() int { return s.gets + s.creates + s.appends }

func (s *fakeStore) GetUserByID(_ context.Context, userID string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *fakeStore) CreateUser(_ context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.users[user.UserID]; ok {
		return store.ErrDuplicate
	}
	s.users[user.UserID] = *user
	return nil
}

func (s *fakeStore) ListUsers(_ context.Context) ([]store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]store.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *fakeStore) AppendChatLog(_ context.Context, userID, message, reply string) (*store.ChatLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	entry := store.ChatLog{ID: fmt.Sprintf("log-%d", len(s.logs)+1), UserID: userID, Message: message, Reply: reply, CreatedAt: time.Now()}
	s.logs = append(s.logs, entry)
	return &entry, nil
}

func (s *fakeStore) GetChatLogsByUserID(_ context.Context, userID string) ([]store.ChatLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.ChatLog{}
	for _, l := range s.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (l *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	return l.reply, l.err
}
