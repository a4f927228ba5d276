package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pauljones0/epic-free-games-bot/internal/catalog"
	"github.com/pauljones0/epic-free-games-bot/internal/config"
	"github.com/pauljones0/epic-free-games-bot/internal/metrics"
	"github.com/pauljones0/epic-free-games-bot/internal/models"
	"github.com/pauljones0/epic-free-games-bot/internal/notifier"
	"github.com/pauljones0/epic-free-games-bot/internal/processor"
	"github.com/pauljones0/epic-free-games-bot/internal/scheduler"
	"github.com/pauljones0/epic-free-games-bot/internal/storage"
	"github.com/pauljones0/epic-free-games-bot/internal/validator"
)

var rootCmd = &cobra.Command{
	Use:   "freegames",
	Short: "Epic Games Store free game tracker",
	Long:  "Fetches currently free Epic Games Store promotions, stores new ones and sends a notification.",
	// Cloud Run starts the container without arguments.
	RunE: func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger and the daily scheduler",
	RunE:  func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch and store promotions once, then exit",
	RunE:  func(cmd *cobra.Command, args []string) error { return runOnce(cmd.Context()) },
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd)
	rootCmd.SilenceUsage = true
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Exiting with error", "error", err)
		os.Exit(1)
	}
}

type promotionStore interface {
	processor.PromotionStore
	List(ctx context.Context, limit int) ([]models.Promotion, error)
	Close() error
}

type app struct {
	cfg     *config.Config
	store   promotionStore
	job     *processor.Job
	metrics *metrics.Registry
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewRegistry()
	c := catalog.New(cfg.CatalogURL, cfg.FetchTimeout)
	p := processor.New(c, store, validator.New(), m)

	senders, err := buildNotifiers(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   store,
		job:     processor.NewJob(p, senders, m),
		metrics: m,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (promotionStore, error) {
	switch cfg.StoreBackend {
	case config.BackendPebble:
		store, err := storage.NewPebbleStore(cfg.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("initializing pebble store: %w", err)
		}
		slog.Info("Using pebble store", "dir", cfg.PebbleDir)
		return store, nil
	default:
		store, err := storage.New(ctx, cfg.ProjectID, cfg.FirestoreCollection)
		if err != nil {
			return nil, fmt.Errorf("initializing Firestore client: %w", err)
		}
		slog.Info("Using Firestore store", "project", cfg.ProjectID, "collection", cfg.FirestoreCollection)
		return store, nil
	}
}

func buildNotifiers(cfg *config.Config) (notifier.Multi, error) {
	var senders notifier.Multi
	if cfg.EmailEnabled() {
		email, err := notifier.NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.MailSender, cfg.MailPassword, cfg.MailRecipient)
		if err != nil {
			return nil, err
		}
		senders = append(senders, email)
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notifier.NewDiscord(cfg.DiscordWebhookURL))
	}
	return senders, nil
}

func runOnce(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.store.Close()

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout)
	defer cancel()

	n, err := a.job.Execute(runCtx)
	if err != nil {
		return err
	}
	slog.Info("Run complete", "stored", n)
	return nil
}

func serve(ctx context.Context) error {
	slog.Info("Starting Epic free games server...")
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if a.cfg.ScheduleEnabled {
		sched := scheduler.New(a.job, a.cfg.ScheduleHour, a.cfg.ScheduleMinute, a.cfg.ScheduleLocation, a.cfg.RunTimeout)
		go sched.Start(ctx)
	}

	srv := &Server{job: a.job, store: a.store, runTimeout: a.cfg.RunTimeout}
	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      srv.routes(a.metrics.Handler()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		<-ctx.Done()
		slog.Info("Received signal, shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", a.cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	slog.Info("Server stopped.")
	return nil
}
