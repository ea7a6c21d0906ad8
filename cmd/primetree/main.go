// Command primetree drives the truncatable prime pipeline: generating
// search trees, decoding them to text, merging job partitions and
// aggregating job statistics.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/INLOpen/primetree/config"
)

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// loadConfig reads the config file named by --config (defaults when the
// file is absent) and overlays the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	overlay := map[string]func(){
		"prime-type": func() { cfg.Pipeline.PrimeType, _ = cmd.Flags().GetString("prime-type") },
		"base":       func() { cfg.Pipeline.Base, _ = cmd.Flags().GetInt("base") },
		"root":       func() { cfg.Pipeline.Root, _ = cmd.Flags().GetString("root") },
		"max-length": func() { cfg.Pipeline.MaxLength, _ = cmd.Flags().GetUint32("max-length") },
		"split-length": func() {
			cfg.Pipeline.SplitLength, _ = cmd.Flags().GetInt("split-length")
		},
		"data-dir":    func() { cfg.Pipeline.DataDir, _ = cmd.Flags().GetString("data-dir") },
		"compression": func() { cfg.Pipeline.Compression, _ = cmd.Flags().GetString("compression") },
		"workers":     func() { cfg.Pipeline.Workers, _ = cmd.Flags().GetInt("workers") },
		"log-level":   func() { cfg.Logging.Level, _ = cmd.Flags().GetString("log-level") },
	}
	for name, apply := range overlay {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// pipelineFlags registers the flags shared by every pipeline subcommand.
func pipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "primetree.yaml", "path to the YAML config file")
	cmd.Flags().String("prime-type", "r", "truncation discipline: r, l, lor or lar")
	cmd.Flags().Int("base", 10, "number base of the search")
	cmd.Flags().String("data-dir", "./data", "partition directory")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	root := &cobra.Command{
		Use:           "primetree",
		Short:         "Truncatable prime tree pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newGenerateCommand(),
		newDecodeCommand(),
		newMergeCommand(),
		newCombineCommand(),
		newRunCommand(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "primetree:", err)
		os.Exit(1)
	}
}
