// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/go-core-stack/nim-auth-proxy/pkg/config"
	"github.com/go-core-stack/nim-auth-proxy/pkg/proxy"
)

const defaultEnvFile = ".env"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	flags := pflag.NewFlagSet("nim-auth-proxy", pflag.ExitOnError)
	configPath := flags.String("config", config.ConfigPath(), "path to an optional TOML config file")
	envFile := flags.String("env-file", defaultEnvFile, "dotenv file loaded before reading the environment")
	port := flags.String("port", "", "listen port or host:port (overrides PORT)")
	logLevel := flags.String("log-level", "", "log level (overrides LOG_LEVEL)")
	showVersion := flags.Bool("version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("nim-auth-proxy", version)
		return
	}

	if err := loadEnvFile(*envFile, flags.Changed("env-file")); err != nil {
		log.Fatal().Err(err).Str("env_file", *envFile).Msg("failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != "" {
		if cfg.ListenAddr, err = config.ListenAddr(*port); err != nil {
			log.Fatal().Err(err).Msg("invalid --port")
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := setupLogger(cfg); err != nil {
		log.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("invalid log level")
	}

	handler, err := proxy.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct proxy")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       cfg.ServerReadTimeout,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	go func() {
		authMode := "disabled"
		if cfg.AuthEnabled() {
			authMode = "enabled (Bearer token or " + cfg.AuthHeader + " header)"
		}
		log.Info().
			Str("listen_addr", cfg.ListenAddr).
			Str("upstream", cfg.Upstream.String()).
			Str("custom_auth", authMode).
			Msg("starting NVIDIA NIM proxy")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("proxy server exited unexpectedly")
		}
	}()

	waitForShutdown(context.Background(), server, cfg.GracefulShutdownTimeout)
}

// loadEnvFile populates unset variables from a dotenv file. The default file
// is optional; one named explicitly must exist.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func setupLogger(cfg config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger := log.Logger
	if cfg.LogFormat == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = logger.Level(level)
	return nil
}

func waitForShutdown(ctx context.Context, srv *http.Server, timeout time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop

	log.Info().Msg("shutting down NVIDIA NIM proxy")

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	log.Info().Msg("proxy stopped")
}
