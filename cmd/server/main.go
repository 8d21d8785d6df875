package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-notes-server/internal/config"
	"smart-notes-server/internal/handler"
	"smart-notes-server/internal/repository"
	"smart-notes-server/internal/service"
	"smart-notes-server/pkg/completion"
	"smart-notes-server/pkg/jwt"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

type store struct {
	notes    repository.NoteRepository
	versions repository.NoteVersionRepository
	close    func() error
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if driver := cmd.String("store"); driver != "" {
		cfg.Database.Driver = driver
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*store, error) {
	switch cfg.Driver {
	case config.DriverCouchDB:
		client, err := kivik.New("couch", cfg.CouchURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}

		exists, err := client.DBExists(ctx, cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check database existence: %w", err)
		}

		if !exists {
			if err := client.CreateDB(ctx, cfg.Name); err != nil {
				return nil, fmt.Errorf("failed to create database: %w", err)
			}
			logger.Info("Created database", slog.String("name", cfg.Name))
		}

		logger.Info("Connected to CouchDB", slog.String("host", cfg.Host), slog.String("port", cfg.Port))

		return &store{
			notes:    repository.NewNoteRepository(client, cfg.Name),
			versions: repository.NewNoteVersionRepository(client, cfg.Name),
			close:    client.Close,
		}, nil

	default:
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		logger.Info("Opened SQLite store", slog.String("path", cfg.SQLitePath))

		return &store{
			notes:    repository.NewSQLiteNoteRepository(db),
			versions: repository.NewSQLiteNoteVersionRepository(db),
			close:    db.Close,
		}, nil
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("address", cfg.Server.Address()),
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Database.Driver),
		slog.String("ai_model", cfg.AI.Model),
		slog.Bool("ai_configured", cfg.AI.APIKey != ""))

	if cfg.AI.APIKey == "" {
		logger.Warn("AI_API_KEY is not set, AI requests will fail")
	}

	st, err := openStore(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("Failed to close store", slog.String("error", err.Error()))
		}
	}()

	noteService := service.NewNoteService(st.notes, st.versions)
	encryptionService := service.NewEncryptionService(st.notes)
	aiService := service.NewAIService(completion.NewClient(cfg.AI.URL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout))

	router := handler.NewRouter(handler.Handlers{
		Notes:      handler.NewNoteHandler(noteService),
		Encryption: handler.NewEncryptionHandler(encryptionService),
		AI:         handler.NewAIHandler(aiService),
	}, handler.RouterOptions{
		JWTSecret: cfg.JWT.Secret,
		CORS:      cfg.CORS,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Smart Notes Server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// issueToken prints a bearer token signed with the configured secret, for
// local development without the auth provider.
func issueToken(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Server.IsProduction() {
		return errors.New("issue-token is disabled in production")
	}

	ttl := cmd.Duration("ttl")
	if ttl == 0 {
		ttl = cfg.JWT.Expiration
	}

	token, err := jwt.GenerateToken(cmd.String("user"), ttl, cfg.JWT.Secret)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "smart-notes-server",
		Usage:  "Notes API with version history, password-locked notes and an AI writing assistant",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Path to a .env file",
				Value:   ".env",
				Sources: cli.EnvVars("ENV_FILE"),
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store driver (sqlite or couchdb), overrides STORE_DRIVER",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "issue-token",
				Usage:  "Print a signed bearer token for a user id",
				Action: issueToken,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "User id to put in the token subject",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime, defaults to JWT_EXPIRATION",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
