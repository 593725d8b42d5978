package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizforge/deskbank/backend/internal/assets"
	"github.com/quizforge/deskbank/backend/internal/auth"
	"github.com/quizforge/deskbank/backend/internal/config"
	"github.com/quizforge/deskbank/backend/internal/database"
	"github.com/quizforge/deskbank/backend/internal/desks"
	"github.com/quizforge/deskbank/backend/internal/library"
	"github.com/quizforge/deskbank/backend/internal/logging"
	"github.com/quizforge/deskbank/backend/internal/outbox"
	"github.com/quizforge/deskbank/backend/internal/remote"
	"github.com/quizforge/deskbank/backend/internal/seed"
	"github.com/quizforge/deskbank/backend/internal/server"
	"github.com/quizforge/deskbank/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deskbank-api",
		Short: "Deskbank question-bank synchronization service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed <bank.yaml>",
		Short: "Load a YAML question bank into the library",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), args[0])
		},
	}
	rootCmd.AddCommand(seedCmd)

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Bearer token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("issue-secret", "", "Token issue secret (overrides env)")
	cmd.PersistentFlags().String("remote-base-url", defaults.GetString("remote.base_url"), "Remote document store base URL (empty disables mirroring)")
	cmd.PersistentFlags().String("remote-collection", defaults.GetString("remote.collection"), "Remote collection for coaching records")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.issue_secret", "issue-secret")
	bindFlag(cmd, "remote.base_url", "remote-base-url")
	bindFlag(cmd, "remote.collection", "remote-collection")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	libraryStore, err := library.NewStore(library.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	deskStore, err := desks.NewStore(desks.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	recordOutbox, err := outbox.New(outbox.Config{
		Database:     db,
		Logger:       logger,
		MaxAttempts:  appConfig.OutboxMaxRetries,
		RetryBackoff: appConfig.OutboxBackoff,
	})
	if err != nil {
		return err
	}

	var deliverer outbox.Deliverer
	if appConfig.RemoteBaseURL != "" {
		remoteClient, err := remote.NewClient(remote.ClientConfig{
			BaseURL: appConfig.RemoteBaseURL,
			APIKey:  appConfig.RemoteAPIKey,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		deliverer = remoteClient
	}

	worker, err := outbox.NewWorker(outbox.WorkerConfig{
		Outbox:       recordOutbox,
		Deliverer:    deliverer,
		Logger:       logger,
		PollInterval: appConfig.OutboxPoll,
	})
	if err != nil {
		return err
	}

	assetsService, err := assets.NewService(assets.ServiceConfig{
		Library:          libraryStore,
		Desks:            deskStore,
		Remote:           recordOutbox,
		RemoteCollection: appConfig.RemoteCollection,
		Clock:            time.Now,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	creatorRegistry, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		IssueSecret:   []byte(appConfig.IssueSecret),
		TokenTTL:      appConfig.TokenTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:  tokenManager,
		AssetsService: assetsService,
		Creators:      creatorRegistry,
		Events:        server.NewEventDispatcher(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go worker.Run(signalCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runSeed(ctx context.Context, path string) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	libraryStore, err := library.NewStore(library.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	count, err := seed.LoadFile(ctx, path, libraryStore, logger)
	if err != nil {
		return err
	}
	logger.Info("library seeded", zap.Int("assets", count), zap.String("path", path))
	return nil
}
