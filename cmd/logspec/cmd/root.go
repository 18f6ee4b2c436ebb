package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/solatis/logspec/internal/core/config"
	"github.com/solatis/logspec/internal/core/logging"
	"github.com/solatis/logspec/internal/rules"
	"github.com/solatis/logspec/internal/types"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "logspec",
	Short:        "logspec shipping rule engine",
	Long:         `logspec classifies order records against a LogSpec rule table mapping ship methods to destination countries.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration for cmd and builds its logger.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadEngine builds an engine from cfg and loads the configured rule table,
// or the embedded one when no path is set.
func loadEngine(cfg *config.Config, log logrus.FieldLogger) (*rules.Engine, *rules.Snapshot, error) {
	builder, err := cfg.Builder()
	if err != nil {
		return nil, nil, err
	}
	engine := rules.NewEngine(builder, log)

	if cfg.Rules.TablePath == "" {
		return engine, engine.LoadDefault(), nil
	}
	text, err := readRuleTable(cfg.Rules.TablePath)
	if err != nil {
		return nil, nil, err
	}
	return engine, engine.Load(text, cfg.Rules.TablePath), nil
}

func readRuleTable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("rule table: %w", err)
	}
	if info.Size() > types.MaxRuleTableSize {
		return "", fmt.Errorf("%w: %s is %d bytes (max %d)", types.ErrRuleTableTooLarge, path, info.Size(), types.MaxRuleTableSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("rule table: %w", err)
	}
	return string(data), nil
}
