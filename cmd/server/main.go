// Package main is the entry point for the MeetAssist calendar server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/meetassist/backend/internal/api"
	"github.com/meetassist/backend/internal/calendar"
	"github.com/meetassist/backend/internal/config"
	"github.com/meetassist/backend/internal/notify"
	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/storage/models"
	"github.com/meetassist/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "meetassist",
		Usage:   "Sync calendar events and serve week layouts and notifications.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the env config file",
				EnvVars: []string{config.EnvConfigFile},
			},
		},
		Before: func(c *cli.Context) error {
			if c.IsSet("config") {
				return os.Setenv(config.EnvConfigFile, c.String("config"))
			}
			return nil
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCommand(),
			layoutCommand(),
			healthCheckCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("meetassist: %v", err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API server and the sync scheduler.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(c.Context, cfg)
		},
	}
}

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Print the week layout of the stored events as JSON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "First day of the week (YYYY-MM-DD), defaults to today"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			start := time.Now().In(cfg.Location)
			if raw := c.String("start"); raw != "" {
				if start, err = time.ParseInLocation(models.DateLayout, raw, cfg.Location); err != nil {
					return fmt.Errorf("invalid --start %q: %w", raw, err)
				}
			}

			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			session := calendar.NewSession(eventSource(cfg, storage.NewEventRepository(db)), nil, calendar.SessionOptions{
				Location: cfg.Location,
				Metrics:  &cfg.Metrics,
			})
			defer session.Close()

			if _, err := session.Tick(c.Context); err != nil {
				return fmt.Errorf("loading events: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(session.WeekLayout(start))
		},
	}
}

func healthCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "health-check",
		Usage: "Check a running server and exit non-zero when it is unhealthy.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runHealthCheck(c.Context, cfg.Addr)
		},
	}
}

func serve(ctx context.Context, cfg config.Runtime) error {
	log.Printf("Starting MeetAssist (version: %s)...", version)
	if cfg.ConfigFile != "" {
		log.Printf("Using config file %s", cfg.ConfigFile)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)
	broadcaster := websocket.NewEventBroadcaster(hub)

	eventRepo := storage.NewEventRepository(db)
	plannerRepo := storage.NewPlannerRepository(db)
	notificationRepo := storage.NewNotificationRepository(db)

	session := calendar.NewSession(eventSource(cfg, eventRepo), notify.Fanout{notificationRepo, broadcaster}, calendar.SessionOptions{
		Location: cfg.Location,
		Metrics:  &cfg.Metrics,
	})

	var plannerSource calendar.PlannerSource = calendar.NewRepositoryPlannerSource(plannerRepo)
	if cfg.RemoteURL != "" {
		plannerSource = calendar.NewHTTPSource(cfg.RemoteURL)
	}
	planner := calendar.NewPlannerCache(plannerSource, cfg.PlannerDays, cfg.Location)

	importer := calendar.NewImportService(calendar.NewFeedParser(cfg.Location, cfg.Horizon), eventRepo)

	scheduler := calendar.NewScheduler(session, planner, importer, broadcaster, calendar.SchedulerOptions{
		PollInterval: cfg.PollInterval,
		FeedInterval: cfg.FeedInterval,
	})
	if err := scheduler.Start(ctx, cfg.Feeds); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.Services{
		DB:            db,
		Events:        eventRepo,
		Planner:       plannerRepo,
		Notifications: notificationRepo,
		Hub:           hub,
		Session:       session,
		Feeds:         scheduler,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// eventSource reads from the remote API when one is configured, otherwise
// from the local store.
func eventSource(cfg config.Runtime, events *storage.EventRepository) calendar.Source {
	if cfg.RemoteURL != "" {
		log.Printf("Polling events from %s", cfg.RemoteURL)
		return calendar.NewHTTPSource(cfg.RemoteURL)
	}
	return calendar.NewRepositorySource(events)
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("health check: address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	url := "http://" + net.JoinHostPort(host, port) + "/api/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}
