package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatrelay.io/ai-chat-server/internal/store"
)

type ReconcileReport struct {
	DirectoryUpserts int `json:"directoryUpserts"`
	StoreInserts     int `json:"storeInserts"`
	Skipped          int `json:"skipped"`
	Failures         int `json:"failures"`
}

// Reconciler copies users that exist in only one of the two stores into the
// other one. Per-user failures are counted and logged; only failing to list
// either store aborts a run.
type Reconciler struct {
	directory Directory
	users     UserStore
	logger    *slog.Logger
}

func NewReconciler(directory Directory, users UserStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		directory: directory,
		users:     users,
		logger:    logger.With(slog.String("service", "reconciler")),
	}
}

func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	dbUsers, err := r.users.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}
	dirUsers, err := r.directory.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list directory users: %w", err)
	}

	inDirectory := make(map[string]bool, len(dirUsers))
	for _, u := range dirUsers {
		inDirectory[u.ID] = true
	}
	inStore := make(map[string]bool, len(dbUsers))
	for _, u := range dbUsers {
		inStore[u.UserID] = true
	}

	for _, u := range dbUsers {
		if inDirectory[u.UserID] {
			continue
		}
		err := r.directory.UpsertUser(ctx, DirectoryUser{ID: u.UserID, Name: u.Name, Email: u.Email, Role: DirectoryRole})
		if err != nil {
			report.Failures++
			r.logger.Error("failed to upsert directory user", slog.String("user_id", u.UserID), slog.Any("error", err))
			continue
		}
		report.DirectoryUpserts++
		r.logger.Info("restored directory user", slog.String("user_id", u.UserID))
	}

	for _, u := range dirUsers {
		if inStore[u.ID] || u.ID == BotUserID || u.Role != DirectoryRole {
			continue
		}
		if u.Email == "" {
			report.Skipped++
			r.logger.Warn("directory user has no email, skipping", slog.String("user_id", u.ID))
			continue
		}
		err := r.users.CreateUser(ctx, &store.User{UserID: u.ID, Name: u.Name, Email: u.Email})
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			report.Failures++
			r.logger.Error("failed to insert user", slog.String("user_id", u.ID), slog.Any("error", err))
			continue
		}
		report.StoreInserts++
		r.logger.Info("restored user", slog.String("user_id", u.ID))
	}

	r.logger.Info("reconciliation finished",
		slog.Int("directory_upserts", report.DirectoryUpserts),
		slog.Int("store_inserts", report.StoreInserts),
		slog.Int("skipped", report.Skipped),
		slog.Int("failures", report.Failures))
	return report, nil
}
