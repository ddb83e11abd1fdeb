package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/agrof66/machine-dashboard/internal/audit"
	"github.com/agrof66/machine-dashboard/internal/auth"
	"github.com/agrof66/machine-dashboard/internal/chat"
	"github.com/agrof66/machine-dashboard/internal/config"
	"github.com/agrof66/machine-dashboard/internal/logging"
	"github.com/agrof66/machine-dashboard/internal/server"
	"github.com/agrof66/machine-dashboard/internal/source"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	address := flag.String("address", "", "listen address override, e.g. :8080")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	// A missing default config file means built-in defaults plus MD_ env overrides.
	configPath := *configLocation
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && configPath == constants.DefaultConfigFile {
		configPath = ""
	}
	conf, err := config.LoadConfiguration(configPath)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	serverConf, err := server.LoadConfig(*serverConfigLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigLocation, err)
		os.Exit(1)
	}
	if *address != "" {
		serverConf.Address = *address
	}

	logger, err := logging.New(logging.Merge(conf.Logging, serverConf.Logging), *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := conf.Validate(); err != nil {
		logger.Fatal("invalid configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	if err := run(conf, serverConf, logger); err != nil {
		logger.Fatal("server stopped with error",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}

func loadDirectory(path string) (*auth.Directory, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return auth.LoadDirectoryXLSX(path)
	}
	return auth.LoadDirectory(path)
}

func run(conf *config.Configuration, serverConf *server.Config, logger *zap.Logger) error {
	users, err := loadDirectory(conf.Auth.UsersFile)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	deps := server.Deps{
		Logger:                 logger,
		Config:                 conf,
		MaxUploadSize:          serverConf.UploadSizeBytes(),
		Version:                version,
		Directory:              users,
		Sessions:               auth.NewSessions(conf.SessionTTL()),
		Cache:                  source.NewCache(conf.CacheTTL(), logger),
		Assistant:              chat.NewAssistant(nil, logger),
		LoginAttemptsPerMinute: serverConf.LoginAttemptsPerMinute,
	}
	if conf.Auth.Mode == config.AuthGoogle {
		g := conf.Auth.Google
		deps.OAuth = auth.NewOAuth(g.ClientID, g.ClientSecret, g.RedirectURL)
	}
	if conf.Chat.APIKey != "" {
		client, err := chat.NewGeminiClient(context.Background(), conf.Chat.APIKey, conf.Chat.Model, conf.Chat.Endpoint)
		if err != nil {
			return err
		}
		deps.Assistant = chat.NewAssistant(client, logger)
	}
	if conf.Export.AuditDB != "" {
		log, err := audit.Open(conf.Export.AuditDB)
		if err != nil {
			return fmt.Errorf("failed to open download log: %w", err)
		}
		defer func() {
			_ = log.Close()
		}()
		deps.Audit = log
	}

	handler, err := server.NewHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              serverConf.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening",
			zap.String("op", "main.run"),
			zap.String("address", serverConf.Address),
			zap.String("version", version),
			zap.String("environment", conf.Environment),
			zap.String("authMode", conf.Auth.Mode),
			zap.String("dataSource", conf.Data.Source),
			zap.Int("users", users.Len()),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down",
			zap.String("op", "main.run"),
		)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
