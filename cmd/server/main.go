package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatrelay.io/ai-chat-server/internal/api"
	"chatrelay.io/ai-chat-server/internal/config"
	"chatrelay.io/ai-chat-server/internal/core"
	"chatrelay.io/ai-chat-server/internal/directory"
	"chatrelay.io/ai-chat-server/internal/scheduler"
	"chatrelay.io/ai-chat-server/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "AI chat relay: registers chat users and answers their messages with Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE:  func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Copy users missing from the chat directory or the database into the other store and exit",
			RunE:  func(cmd *cobra.Command, args []string) error { return runReconcile(cmd.Context()) },
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// deps holds the long-lived clients shared by every request.
type deps struct {
	cfg       *config.Config
	logger    *slog.Logger
	dbStore   *store.SQLStore
	directory core.Directory
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func loadDeps() (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	d := &deps{cfg: cfg, logger: logger}

	dbStore, err := store.NewSQLStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	d.dbStore = dbStore
	d.closers = append(d.closers, func() { dbStore.Close() })

	switch cfg.DirectoryBackend {
	case "memory":
		logger.Warn("using in-memory chat directory; users and channels are lost on exit")
		d.directory = directory.NewMemory()
	default:
		dir, err := directory.NewStream(cfg.StreamAPIKey, cfg.StreamAPISecret)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.directory = dir
	}
	return d, nil
}

func runServe(ctx context.Context) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}
	defer d.Close()
	logger := d.logger

	llmService, err := core.NewLLMService(ctx, d.cfg.GeminiAPIKey, d.cfg.GeminiModel, logger)
	if err != nil {
		return err
	}
	defer llmService.Close()

	// Channels are created by, and replies authored by, the bot user.
	if err := d.directory.UpsertUser(ctx, core.DirectoryUser{ID: core.BotUserID, Name: "AI Bot", Role: core.DirectoryRole}); err != nil {
		return fmt.Errorf("failed to provision %s: %w", core.BotUserID, err)
	}

	userService := core.NewUserService(d.directory, d.dbStore, logger)
	chatService := core.NewChatService(d.directory, d.dbStore, d.dbStore, llmService, logger)

	if d.cfg.ReconcileSchedule != "" {
		sched := scheduler.New(logger)
		reconciler := core.NewReconciler(d.directory, d.dbStore, logger)
		err := sched.Add(d.cfg.ReconcileSchedule, "reconcile-users", func(ctx context.Context) error {
			_, err := reconciler.Reconcile(ctx)
			return err
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	apiHandler := api.NewAPIHandler(userService, chatService, logger)
	router := api.NewRouter(apiHandler, d.cfg.RequestTimeout)

	serverAddr := fmt.Sprintf(":%s", d.cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(d.cfg.RequestTimeout),
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting gracefully")
	return nil
}

// defaultWriteTimeout bounds responses when REQUEST_TIMEOUT disables the
// per-request deadline.
const defaultWriteTimeout = 60 * time.Second

// writeTimeout leaves room past the request deadline to write the timeout
// response itself.
func writeTimeout(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return defaultWriteTimeout
	}
	return requestTimeout + 5*time.Second
}

func runReconcile(ctx context.Context) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := core.NewReconciler(d.directory, d.dbStore, d.logger).Reconcile(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(report)
}
