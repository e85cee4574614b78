// gindex-sim distributes a structured quad mesh over a group of in-process
// workers and computes cell centroids through global-to-local index
// exchange.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-gindex/log"
	"github.com/spacemeshos/go-gindex/metrics"
)

const envPrefix = "GINDEX"

func main() {
	if err := getCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addFlags(flags *pflag.FlagSet, cfg Config) *string {
	configPath := flags.StringP("config", "c", "", "load configuration from file")
	flags.Int("workers", cfg.Workers, "number of simulated workers")
	flags.Int("nx", cfg.NX, "mesh cells along x")
	flags.Int("ny", cfg.NY, "mesh cells along y")
	flags.String("transport", cfg.Transport, "communicator: local or p2p")
	flags.Int("compression", cfg.Compression,
		"compress p2p messages of at least this many bytes, 0 disables compression")
	flags.Bool("dedup", cfg.Indexer.Deduplicate, "request each distinct vertex once per owner")
	flags.Duration("timeout", cfg.Indexer.Timeout, "bound on every collective round")
	flags.String("log-level", cfg.LogLevel, "logging level")
	flags.Bool("log-json", cfg.LogJSON, "log as JSON instead of plain text")
	flags.String("metrics-addr", cfg.MetricsAddr, "serve prometheus metrics on this address")
	return configPath
}

// flag names that differ from their configuration keys.
var flagKeys = map[string]string{
	"dedup":   "indexer.deduplicate",
	"timeout": "indexer.timeout",
}

func getCommand() *cobra.Command {
	var configPath *string
	c := &cobra.Command{
		Use:          "gindex-sim",
		Short:        "compute mesh cell centroids with distributed index exchange",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c.Flags(), *configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := log.New("sim", cfg.LogLevel, cfg.LogJSON)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if cfg.MetricsAddr != "" {
				addr, err := metrics.StartCollectingMetrics(ctx, logger, cfg.MetricsAddr)
				if err != nil {
					return fmt.Errorf("start metrics server: %w", err)
				}
				logger.Info("serving metrics", zap.Stringer("addr", addr))
			}

			report, err := Run(ctx, logger, cfg)
			if report != nil {
				fmt.Fprintln(c.OutOrStdout(), report)
			}
			return err
		},
	}
	configPath = addFlags(c.Flags(), DefaultConfig())
	return c
}

// loadConfig layers defaults, the config file, GINDEX_ environment variables
// and flags set on the command line, in increasing priority.
func loadConfig(flags *pflag.FlagSet, path string) (Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || err != nil {
			return
		}
		key := f.Name
		if mapped, ok := flagKeys[key]; ok {
			key = mapped
		}
		err = v.BindPFlag(key, f)
	})
	if err != nil {
		return cfg, fmt.Errorf("bind flags: %w", err)
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.validate()
}
