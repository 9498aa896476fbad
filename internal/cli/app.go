// Package cli implements the azblob command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/cache"
	"github.com/prn-tf/alexander-azblob/internal/config"
	"github.com/prn-tf/alexander-azblob/internal/logging"
	"github.com/prn-tf/alexander-azblob/internal/metrics"
	"github.com/prn-tf/alexander-azblob/internal/service"
	"github.com/prn-tf/alexander-azblob/internal/storage/azure"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Options customizes the I/O and transport of the command tree.
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// HTTPClient replaces the transport built from configuration.
	HTTPClient azure.Doer

	// Logger replaces the logger built from configuration.
	Logger *zerolog.Logger
}

// app holds the collaborators built once configuration is known.
type app struct {
	opts       Options
	v          *viper.Viper
	configPath string

	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *azure.Client
	access   *cache.AccessCache
	blobs    *service.BlobService
	presign  *service.PresignService
}

// flagBindings maps persistent flags onto configuration keys.
var flagBindings = map[string]string{
	"account":      "account_name",
	"account-key":  "account_key",
	"container":    "container",
	"endpoint":     "endpoint",
	"public-url":   "url",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"metrics-file": "metrics.file",
}

// NewRootCommand builds the azblob command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	a := &app{opts: opts, v: config.New()}

	cmd := &cobra.Command{
		Use:           "azblob",
		Short:         "Work with files in an Azure Blob Storage container",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoClient] == "true" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.writeMetrics()
		},
	}
	cmd.SetIn(opts.In)
	cmd.SetOut(opts.Out)
	cmd.SetErr(opts.Err)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to config file (default ./azblob.yaml)")
	flags.String("account", "", "storage account name ($AZURE_STORAGE_ACCOUNT_NAME)")
	flags.String("account-key", "", "base64 account key ($AZURE_STORAGE_ACCOUNT_KEY)")
	flags.String("container", "", "container name ($AZURE_STORAGE_CONTAINER)")
	flags.String("endpoint", "", "path-style endpoint including the account, e.g. http://127.0.0.1:10000/devaccount")
	flags.String("public-url", "", "base URL used by the url command instead of the service URL")
	flags.String("log-level", "", "log level (trace|debug|info|warn|error)")
	flags.String("log-format", "", "log format (console|json)")
	flags.String("metrics-file", "", "write request metrics to this file in Prometheus text format")
	mustBindFlags(a.v, flags)

	cmd.AddCommand(
		newPutCommand(a),
		newGetCommand(a),
		newRemoveCommand(a),
		newCopyCommand(a),
		newMoveCommand(a),
		newListCommand(a),
		newStatCommand(a),
		newExistsCommand(a),
		newRemoveDirCommand(a),
		newURLCommand(a),
		newSASCommand(a),
		newACLCommand(a),
		newVersionCommand(),
	)

	return cmd
}

const annotationNoClient = "azblob/no-client"

func mustBindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagBindings {
		flag := flags.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag %s not found", name))
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
}

// setup loads configuration and wires the client stack.
func (a *app) setup() error {
	if err := config.ReadFile(a.v, a.configPath); err != nil {
		return err
	}
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.opts.Logger != nil {
		a.logger = *a.opts.Logger
	} else {
		a.logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
	}

	httpClient := a.opts.HTTPClient
	if httpClient == nil {
		httpClient = azure.NewHTTPClient(azure.HTTPConfig{
			Timeout:        cfg.HTTP.Timeout,
			ConnectTimeout: cfg.HTTP.ConnectTimeout,
			Tracing:        cfg.Tracing.Enabled,
		})
	}

	if cfg.Metrics.File != "" {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(a.registry)
	}

	a.client, err = azure.New(azure.Options{
		AccountName: cfg.AccountName,
		AccountKey:  cfg.AccountKey,
		Container:   cfg.Container,
		APIVersion:  cfg.APIVersion,
		ServiceHost: cfg.ServiceHost,
		Endpoint:    cfg.Endpoint,
		HTTPClient:  httpClient,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	if err != nil {
		return err
	}

	store, err := cache.NewStore(cfg)
	if err != nil {
		return err
	}
	a.access = cache.NewAccessCache(a.client, cache.Config{
		Account:   cfg.AccountName,
		Container: cfg.Container,
		Store:     store,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})

	creds, err := auth.NewCredentials(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return err
	}
	a.presign = service.NewPresignService(creds, a.client, service.PresignConfigFrom(cfg), a.logger)

	a.blobs = service.NewBlobService(service.BlobServiceConfig{
		Storage:            a.client,
		Access:             a.access,
		Presign:            a.presign,
		PublicURL:          cfg.URL,
		DefaultVisibility:  cfg.Visibility.Default,
		AllowSetVisibility: cfg.Visibility.AllowSet,
		Logger:             a.logger,
	})

	return nil
}

// writeMetrics dumps the collected metrics to the configured textfile.
func (a *app) writeMetrics() error {
	if a.registry == nil || a.cfg == nil || a.cfg.Metrics.File == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.cfg.Metrics.File, a.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, opts Options, args []string) int {
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(cmd.ErrOrStderr(), "azblob: %v\n", err)
		}
		return 1
	}
	return 0
}
