package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/solatis/normprops/internal/core/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the normprops release.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "normprops",
	Short:        "Reactive property and query layer",
	Long:         `normprops declares model properties from a schema file, resolves dependent-property filters onto stored properties, and serves queries over them.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or text)", logFormat)
	}
}

// loadConfig loads configuration with cmd's flags bound over it.
// flags maps flag names to config keys.
func loadConfig(cmd *cobra.Command, flags map[string]string) (*config.ServerConfig, error) {
	v := viper.New()
	if f := cmd.Flag("db-url"); f != nil {
		if err := v.BindPFlag("server.db_url", f); err != nil {
			return nil, err
		}
	}
	for name, key := range flags {
		if err := v.BindPFlag(key, cmd.Flag(name)); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setup is the common prologue of every command.
func setup(cmd *cobra.Command, flags map[string]string) (*config.ServerConfig, *slog.Logger, error) {
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
