package directory

import (
	"context"
	"fmt"

	stream "github.com/GetStream/stream-chat-go/v6"

	"chatrelay.io/ai-chat-server/internal/core"
)

const (
	ChannelType = "messaging"
	ChannelName = "AI Chat"

	listPageSize = 100
)

// userQuerier is the part of *stream.Client that ListUsers pages through.
type userQuerier interface {
	QueryUsers(ctx context.Context, q *stream.QueryOption, sorters ...*stream.SortOption) (*stream.QueryUsersResponse, error)
}

// Stream is a core.Directory backed by Stream Chat.
type Stream struct {
	client *stream.Client
	users  userQuerier
}

func NewStream(apiKey, apiSecret string) (*Stream, error) {
	client, err := stream.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream client: %w", err)
	}
	return &Stream{client: client, users: client}, nil
}

func (s *Stream) GetUser(ctx context.Context, id string) (*core.DirectoryUser, error) {
	resp, err := s.client.QueryUsers(ctx, &stream.QueryOption{
		Filter: map[string]interface{}{"id": map[string]interface{}{"$eq": id}},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("stream query users failed: %w", err)
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}
	user := fromStreamUser(resp.Users[0])
	return &user, nil
}

func (s *Stream) UpsertUser(ctx context.Context, user core.DirectoryUser) error {
	if _, err := s.client.UpsertUser(ctx, toStreamUser(user)); err != nil {
		return fmt.Errorf("stream upsert user failed: %w", err)
	}
	return nil
}

// ListUsers pages by ascending id. Stream caps query offsets.
func (s *Stream) ListUsers(ctx context.Context) ([]core.DirectoryUser, error) {
	var users []core.DirectoryUser
	lastID := ""
	for {
		filter := map[string]interface{}{"role": map[string]interface{}{"$eq": core.DirectoryRole}}
		if lastID != "" {
			filter["id"] = map[string]interface{}{"$gt": lastID}
		}
		resp, err := s.users.QueryUsers(ctx, &stream.QueryOption{Filter: filter, Limit: listPageSize},
			&stream.SortOption{Field: "id", Direction: 1})
		if err != nil {
			return nil, fmt.Errorf("stream query users failed after id %q: %w", lastID, err)
		}
		for _, u := range resp.Users {
			users = append(users, fromStreamUser(u))
		}
		if len(resp.Users) < listPageSize {
			return users, nil
		}
		lastID = resp.Users[len(resp.Users)-1].ID
	}
}

// EnsureChannel relies on Stream's CreateChannel being get-or-create: calling
// it for an existing channel returns that channel unchanged.
func (s *Stream) EnsureChannel(ctx context.Context, channelID, ownerID string) error {
	_, err := s.client.CreateChannel(ctx, ChannelType, channelID, ownerID, &stream.ChannelRequest{
		ExtraData: map[string]interface{}{"name": ChannelName},
	})
	if err != nil {
		return fmt.Errorf("stream create channel %s failed: %w", channelID, err)
	}
	return nil
}

func (s *Stream) SendMessage(ctx context.Context, channelID, authorID, text string) error {
	ch := s.client.Channel(ChannelType, channelID)
	if _, err := ch.SendMessage(ctx, &stream.Message{Text: text}, authorID); err != nil {
		return fmt.Errorf("stream send message to %s failed: %w", channelID, err)
	}
	return nil
}

func toStreamUser(user core.DirectoryUser) *stream.User {
	return &stream.User{
		ID:        user.ID,
		Name:      user.Name,
		Role:      user.Role,
		ExtraData: map[string]interface{}{"email": user.Email},
	}
}

func fromStreamUser(u *stream.User) core.DirectoryUser {
	user := core.DirectoryUser{ID: u.ID, Name: u.Name, Role: u.Role}
	if email, ok := u.ExtraData["email"].(string); ok {
		user.Email = email
	}
	return user
}
