package core

import (
	"context"
	"errors"
	"log/slog"

	"chatrelay.io/ai-chat-server/internal/identity"
	"chatrelay.io/ai-chat-server/internal/store"
)

// UserService provisions users in both the chat directory and the database.
//
// The two writes are not transactional. Each store's existence check is the
// only deduplication, so a failure between the directory upsert and the
// database insert leaves the user in the directory only. Registering the same
// email again, or running the Reconciler, repairs that state. Two concurrent
// registrations for one email can both pass the existence checks; the
// database primary key absorbs the losing insert.
type UserService struct {
	directory Directory
	users     UserStore
	logger    *slog.Logger
}

func NewUserService(directory Directory, users UserStore, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		directory: directory,
		users:     users,
		logger:    logger.With(slog.String("service", "users")),
	}
}

func (s *UserService) Register(ctx context.Context, name, email string) (*store.User, error) {
	if name == "" || email == "" {
		return nil, invalidArgument("name and email are required")
	}
	userID, err := identity.Normalize(email)
	if err != nil {
		return nil, invalidArgument(err.Error())
	}

	dirUser, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, internalError("query directory user", err)
	}
	createdInDirectory := false
	if dirUser == nil {
		err := s.directory.UpsertUser(ctx, DirectoryUser{ID: userID, Name: name, Email: email, Role: DirectoryRole})
		if err != nil {
			return nil, internalError("upsert directory user", err)
		}
		createdInDirectory = true
		s.logger.Info("created directory user", slog.String("user_id", userID))
	}

	existing, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		s.warnStranded(createdInDirectory, userID, err)
		return nil, internalError("query user", err)
	}
	if existing == nil {
		s.logger.Info("no user found, adding new user", slog.String("user_id", userID))
		err := s.users.CreateUser(ctx, &store.User{UserID: userID, Name: name, Email: email})
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Info("user inserted by a concurrent registration", slog.String("user_id", userID))
		} else if err != nil {
			s.warnStranded(createdInDirectory, userID, err)
			return nil, internalError("insert user", err)
		}
	}

	return &store.User{UserID: userID, Name: name, Email: email}, nil
}

// warnStranded reports a directory user this call created but could not
// mirror into the database.
func (s *UserService) warnStranded(createdInDirectory bool, userID string, err error) {
	if !createdInDirectory {
		return
	}
	s.logger.Warn("user exists in directory only", slog.String("user_id", userID), slog.Any("error", err))
}
