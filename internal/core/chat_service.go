package core

import (
	"context"
	"log/slog"

	"chatrelay.io/ai-chat-server/internal/identity"
	"chatrelay.io/ai-chat-server/internal/store"
)

// FallbackReply replaces a model answer that contained no text.
const FallbackReply = "No response from AI"

type ChatService struct {
	directory Directory
	users     UserStore
	logs      ChatLogStore
	llm       Generator
	logger    *slog.Logger
}

func NewChatService(directory Directory, users UserStore, logs ChatLogStore, llm Generator, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		directory: directory,
		users:     users,
		logs:      logs,
		llm:       llm,
		logger:    logger.With(slog.String("service", "chat")),
	}
}

// Converse answers message for userID and delivers the answer to the user's
// channel. The reply is written to the chat log before it is sent, so a
// delivery failure returns a *DeliveryError and the reply stays recoverable.
func (s *ChatService) Converse(ctx context.Context, userID, message string) (string, error) {
	if userID == "" || message == "" {
		return "", invalidArgument("message and user id are required")
	}

	// The directory and the database are checked independently; a user
	// missing from either one is unknown.
	dirUser, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return "", internalError("query directory user", err)
	}
	if dirUser == nil {
		return "", ErrNotFound
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", internalError("query user", err)
	}
	if user == nil {
		s.logger.Warn("user exists in directory only", slog.String("user_id", userID))
		return "", ErrNotFound
	}

	reply, err := s.llm.Generate(ctx, message)
	if err != nil {
		return "", internalError("generate reply", err)
	}
	if reply == "" {
		reply = FallbackReply
	}

	entry, err := s.logs.AppendChatLog(ctx, userID, message, reply)
	if err != nil {
		return "", internalError("save chat log", err)
	}

	channelID := identity.ChannelID(userID)
	if err := s.directory.EnsureChannel(ctx, channelID, BotUserID); err != nil {
		s.logger.Error("failed to ensure channel", slog.String("channel_id", channelID), slog.String("chat_log_id", entry.ID), slog.Any("error", err))
		return "", &DeliveryError{ChatLogID: entry.ID, Err: err}
	}
	if err := s.directory.SendMessage(ctx, channelID, BotUserID, reply); err != nil {
		s.logger.Error("failed to send reply", slog.String("channel_id", channelID), slog.String("chat_log_id", entry.ID), slog.Any("error", err))
		return "", &DeliveryError{ChatLogID: entry.ID, Err: err}
	}

	return reply, nil
}

// History returns every logged exchange for userID, oldest first. Unknown
// users have an empty history.
func (s *ChatService) History(ctx context.Context, userID string) ([]store.ChatLog, error) {
	if userID == "" {
		return nil, invalidArgument("user id is required")
	}
	logs, err := s.logs.GetChatLogsByUserID(ctx, userID)
	if err != nil {
		return nil, internalError("query chat logs", err)
	}
	return logs, nil
}
