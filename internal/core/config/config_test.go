package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const (
	testSecretID  = "0123456789abcdef0123456789abcdef"
	testSecretB64 = "dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHMACSecrets(t *testing.T) {
	// Clean environment
	os.Unsetenv("LS_HMAC_SECRET")
	os.Unsetenv("LS_HMAC_SECRET_1")
	os.Unsetenv("LS_HMAC_SECRET_2")

	t.Run("none configured", func(t *testing.T) {
		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 0 {
			t.Errorf("expected no secrets, got %d", len(secrets))
		}
	})

	t.Run("single secret", func(t *testing.T) {
		t.Setenv("LS_HMAC_SECRET", testSecretID+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		t.Setenv("LS_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("LS_HMAC_SECRET_2", "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("numbering stops at first gap", func(t *testing.T) {
		t.Setenv("LS_HMAC_SECRET_1", testSecretID+":"+testSecretB64)
		t.Setenv("LS_HMAC_SECRET_3", "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Setenv("LS_HMAC_SECRET", "invalid_format")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("duplicate secret_id between single and numbered", func(t *testing.T) {
		t.Setenv("LS_HMAC_SECRET", testSecretID+":"+testSecretB64)
		t.Setenv("LS_HMAC_SECRET_1", testSecretID+":YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for duplicate secret_id between LS_HMAC_SECRET and LS_HMAC_SECRET_1")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid format", testSecretID + ":" + testSecretB64, false},
		{"surrounding whitespace", "  " + testSecretID + ":" + testSecretB64 + "\n", false},
		{"missing colon", testSecretID, true},
		{"short secret_id", "tooshort:" + testSecretB64, true},
		{"non-hex secret_id", "0123456789abcdefGHIJKLMNOPQRSTUV:" + testSecretB64, true},
		{"uppercase hex secret_id", "0123456789ABCDEF0123456789ABCDEF:" + testSecretB64, true},
		{"invalid base64", testSecretID + ":not-valid-base64!!!", true},
		{"secret too short", testSecretID + ":c2hvcnQ=", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, err := ParseHMACSecretWithID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHMACSecretWithID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if id != testSecretID {
				t.Errorf("secret_id = %s, want %s", id, testSecretID)
			}
			if len(secret) < 32 {
				t.Errorf("secret too short: %d bytes", len(secret))
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		// Loaded defaults match DefaultConfig field for field
		if !reflect.DeepEqual(cfg, DefaultConfig()) {
			t.Errorf("LoadConfig() = %+v, want DefaultConfig() %+v", cfg, DefaultConfig())
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
		}
		if cfg.Server.GRPCPort != 50061 {
			t.Errorf("expected grpc_port 50061, got %d", cfg.Server.GRPCPort)
		}
		if cfg.Server.HTTPPort != 8080 {
			t.Errorf("expected http_port 8080, got %d", cfg.Server.HTTPPort)
		}
		if cfg.Server.RequestTimeout != 30*time.Second {
			t.Errorf("expected timeout 30s, got %v", cfg.Server.RequestTimeout)
		}
		if cfg.Server.MaxBatchSize != 10000 {
			t.Errorf("expected max_batch_size 10000, got %d", cfg.Server.MaxBatchSize)
		}
		if cfg.Rules.Inference != "similarity" {
			t.Errorf("expected inference similarity, got %s", cfg.Rules.Inference)
		}
		if cfg.Rules.DenyList != nil {
			t.Errorf("expected nil deny list, got %v", cfg.Rules.DenyList)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Errorf("expected info/json logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("LS_SERVER_GRPC_PORT", "9999")
		t.Setenv("LS_SERVER_HOST", "127.0.0.1")
		t.Setenv("LS_RULES_INFERENCE", "none")
		t.Setenv("LS_RULES_DENY_LIST", "EU NC")

		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Server.GRPCPort != 9999 {
			t.Errorf("expected grpc_port 9999, got %d", cfg.Server.GRPCPort)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
		}
		if cfg.Rules.Inference != "none" {
			t.Errorf("expected inference none, got %s", cfg.Rules.Inference)
		}
		if len(cfg.Rules.DenyList) != 2 || cfg.Rules.DenyList[1] != "NC" {
			t.Errorf("expected deny list [EU NC], got %v", cfg.Rules.DenyList)
		}
	})

	t.Run("environment deny list separators", func(t *testing.T) {
		tests := []struct {
			env  string
			want []string
		}{
			{"EU,NC", []string{"EU", "NC"}},
			{"EU, NC", []string{"EU", "NC"}},
			{" EU\tNC ,TBD", []string{"EU", "NC", "TBD"}},
		}
		for _, tt := range tests {
			t.Setenv("LS_RULES_DENY_LIST", tt.env)
			cfg, err := LoadConfig("", nil)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if !reflect.DeepEqual(cfg.Rules.DenyList, tt.want) {
				t.Errorf("LS_RULES_DENY_LIST=%q: deny list = %q, want %q", tt.env, cfg.Rules.DenyList, tt.want)
			}
		}
	})

	t.Run("comma deny list still denies", func(t *testing.T) {
		t.Setenv("LS_RULES_DENY_LIST", "EU,NC")
		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		b, err := cfg.Builder()
		if err != nil {
			t.Fatal(err)
		}
		set, _ := b.Build("LogSpec\tM\tNC Import Only, EU, FR").Get("M")
		if set.Contains("NC") || set.Contains("EU") || !set.Contains("FR") {
			t.Errorf("set = %v, want FR only", set)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := writeConfig(t, `rules:
  table_path: /etc/logspec/matrix.tsv
  deny_list: [EU, TBD]
server:
  http_port: 0
  request_timeout: 5s
`)
		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Rules.TablePath != "/etc/logspec/matrix.tsv" {
			t.Errorf("expected table_path from file, got %s", cfg.Rules.TablePath)
		}
		if len(cfg.Rules.DenyList) != 2 {
			t.Errorf("expected 2 deny list entries, got %v", cfg.Rules.DenyList)
		}
		if cfg.Server.HTTPPort != 0 {
			t.Errorf("expected http_port 0, got %d", cfg.Server.HTTPPort)
		}
		if cfg.Server.RequestTimeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %v", cfg.Server.RequestTimeout)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		t.Setenv("LS_SERVER_GRPC_PORT", "70000")

		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for port > 65535")
		}
	})

	t.Run("invalid negative values", func(t *testing.T) {
		t.Setenv("LS_SERVER_MAX_BATCH_SIZE", "-1")

		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for negative max_batch_size")
		}
	})

	t.Run("unknown inference", func(t *testing.T) {
		t.Setenv("LS_RULES_INFERENCE", "fuzzy")

		if _, err := LoadConfig("", nil); err == nil {
			t.Error("expected error for unknown inference strategy")
		}
	})
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	t.Setenv("LS_LOG_LEVEL", "warn")
	t.Setenv("LS_SERVER_HTTP_PORT", "9090")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int("http-port", 8080, "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("", flags)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected flag to win, got log level %s", cfg.Log.Level)
	}
	// Unset flags must not shadow the environment
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("expected env http_port 9090, got %d", cfg.Server.HTTPPort)
	}
}

func TestConfig_Builder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.Inference = "none"

	b, err := cfg.Builder()
	if err != nil {
		t.Fatalf("Builder() error = %v", err)
	}
	if b.Inference().Name() != "none" {
		t.Errorf("Builder().Inference().Name() = %s, want none", b.Inference().Name())
	}

	cfg.Rules.Inference = "bogus"
	if _, err := cfg.Builder(); err == nil {
		t.Error("expected error for unknown inference")
	}
}
