package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelhost/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	dataDir    string
	modelsDir  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "modelhost",
		Short:         "Serve local language models, one worker process per active model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Config file (.yaml, .json or .toml)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&g.dataDir, "data-dir", "", "Directory holding the database")
	pf.StringVar(&g.modelsDir, "models-dir", "", "Directory scanned for model subdirectories")

	root.AddCommand(newServeCmd(g), newWorkerCmd(), newModelsCmd(g))
	return root
}

// resolveConfig layers defaults, the config file, MODELHOST_* variables
// and explicitly set flags, in that order. changed reports whether a flag
// was set on the command line.
func resolveConfig(g *globalFlags, changed func(string) bool, lookup func(string) (string, bool)) (config.Config, error) {
	cfg := config.Defaults()
	if g.configFile != "" {
		fileCfg, err := config.Load(g.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := config.FromEnv(lookup)
	if err != nil {
		return cfg, err
	}
	cfg = cfg.Merge(envCfg)

	var flagCfg config.Config
	if changed("log-level") {
		flagCfg.LogLevel = g.logLevel
	}
	if changed("data-dir") {
		flagCfg.DataDir = g.dataDir
	}
	if changed("models-dir") {
		flagCfg.ModelsDir = g.modelsDir
	}
	return cfg.Merge(flagCfg), nil
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func stderrLogger(level string) (zerolog.Logger, error) { return newLogger(os.Stderr, level) }
