package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/solatis/logspec/internal/rules"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps config keys to CLI flag names.
var flagBindings = map[string]string{
	"rules.table_path": "rules",
	"rules.inference":  "inference",
	"server.host":      "host",
	"server.grpc_port": "grpc-port",
	"server.http_port": "http-port",
	"log.level":        "log-level",
	"log.format":       "log-format",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags that were explicitly set override.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("rules.table_path", d.Rules.TablePath)
	v.SetDefault("rules.inference", d.Rules.Inference)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.grpc_port", d.Server.GRPCPort)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Bind environment variables with LS_ prefix
	v.SetEnvPrefix("LS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	if err := v.BindEnv("rules.deny_list"); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for key, name := range flagBindings {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		Rules: RulesConfig{
			TablePath: v.GetString("rules.table_path"),
			Inference: v.GetString("rules.inference"),
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			GRPCPort:       v.GetInt("server.grpc_port"),
			HTTPPort:       v.GetInt("server.http_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxBatchSize:   v.GetInt("server.max_batch_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if v.IsSet("rules.deny_list") {
		cfg.Rules.DenyList = tokenList(v.Get("rules.deny_list"))
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// tokenList reads a list value given as a YAML sequence or as a single string
// separated by commas and/or whitespace ("EU,NC", "EU NC").
func tokenList(raw interface{}) []string {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
	}

	out := []string{}
	switch val := raw.(type) {
	case string:
		out = append(out, split(val)...)
	default:
		for _, item := range cast.ToStringSlice(val) {
			out = append(out, split(item)...)
		}
	}
	return out
}

// validateConfig checks port ranges, positive limits and the inference name.
func validateConfig(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port must be between 1 and 65535, got %d", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.Server.MaxBatchSize)
	}
	if _, err := rules.InferenceByName(cfg.Rules.Inference); err != nil {
		return err
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use LS_HMAC_SECRET environment variable)")
	}
	return nil
}

// Builder returns a rule builder configured from cfg.
func (c *Config) Builder() (*rules.Builder, error) {
	inf, err := rules.InferenceByName(c.Rules.Inference)
	if err != nil {
		return nil, err
	}
	return rules.NewBuilder(
		rules.WithExtractor(rules.NewExtractor(c.Rules.DenyList)),
		rules.WithInference(inf),
	), nil
}
