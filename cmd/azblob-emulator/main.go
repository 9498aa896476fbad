// Package main is the entry point for the local Azure Blob Storage emulator.
// It serves one account, provisioned from the same configuration the client
// reads, with its container created up front.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/alexander-azblob/internal/config"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/emulator"
	"github.com/prn-tf/alexander-azblob/internal/logging"
	"github.com/prn-tf/alexander-azblob/internal/metrics"
	"github.com/prn-tf/alexander-azblob/internal/pkg/crypto"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	keygen := flag.Bool("keygen", false, "print a random account name and key, then exit")
	flag.Parse()

	if *keygen {
		if err := printCredentials(); err != nil {
			log.Fatal().Err(err).Msg("failed to generate credentials")
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting blob storage emulator")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("emulator stopped with error")
	}
}

// printCredentials writes a fresh account in the environment form the
// client and the emulator both read.
func printCredentials() error {
	name, err := crypto.GenerateAccountName("dev", 8)
	if err != nil {
		return err
	}
	key, err := crypto.GenerateAccountKey()
	if err != nil {
		return err
	}
	fmt.Printf("%s_ACCOUNT_NAME=%s\n%s_ACCOUNT_KEY=%s\n", config.EnvPrefix, name, config.EnvPrefix, key)
	return nil
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	store := emulator.NewStore(nil)
	if err := store.AddAccount(cfg.AccountName, cfg.AccountKey); err != nil {
		return err
	}
	if err := store.CreateContainer(cfg.AccountName, cfg.Container, domain.AccessPrivate); err != nil {
		return err
	}

	routerConfig := emulator.RouterConfig{
		Store:       store,
		Logger:      logger,
		MaxBodySize: cfg.Emulator.MaxBodySize,
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		routerConfig.Metrics = metrics.New(reg)
		routerConfig.MetricsHandler = metrics.Handler(reg)
		routerConfig.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:         cfg.Emulator.Addr(),
		Handler:      emulator.NewRouter(routerConfig).Handler(),
		ReadTimeout:  cfg.Emulator.ReadTimeout,
		WriteTimeout: cfg.Emulator.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("account", cfg.AccountName).
			Str("container", cfg.Container).
			Msg("emulator listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down emulator...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Emulator.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
