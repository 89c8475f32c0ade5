package core

import (
	"context"

	"chatrelay.io/ai-chat-server/internal/store"
)

const (
	// DirectoryRole is the role given to every user created in the directory.
	DirectoryRole = "user"
	// BotUserID owns every conversation channel and authors every reply.
	BotUserID = "ai_bot"
)

// DirectoryUser is a user record in the chat provider's directory.
type DirectoryUser struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Directory is the chat provider: its user directory and its channels.
type Directory interface {
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id string) (*DirectoryUser, error)
	UpsertUser(ctx context.Context, user DirectoryUser) error
	ListUsers(ctx context.Context) ([]DirectoryUser, error)
	// EnsureChannel creates the channel if it does not exist yet and is a
	// no-op otherwise.
	EnsureChannel(ctx context.Context, channelID, ownerID string) error
	SendMessage(ctx context.Context, channelID, authorID, text string) error
}

type UserStore interface {
	// GetUserByID returns nil, nil when the user does not exist.
	GetUserByID(ctx context.Context, userID string) (*store.User, error)
	CreateUser(ctx context.Context, user *store.User) error
	ListUsers(ctx context.Context) ([]store.User, error)
}

type ChatLogStore interface {
	AppendChatLog(ctx context.Context, userID, message, reply string) (*store.ChatLog, error)
	GetChatLogsByUserID(ctx context.Context, userID string) ([]store.ChatLog, error)
}

// Generator is the inference provider. An empty string with a nil error
// means the model produced no text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
