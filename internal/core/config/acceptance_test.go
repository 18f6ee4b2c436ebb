package config

import (
	"testing"
)

// TestAcceptanceCriteria verifies the secret-handling and precedence guarantees.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: Environment variable LS_HMAC_SECRET accessible via HMACSecrets", func(t *testing.T) {
		t.Setenv("LS_HMAC_SECRET", testSecretID+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("AC1 FAIL: HMACSecrets error: %v", err)
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Fatal("AC1 FAIL: Secret not accessible")
		}
	})

	t.Run("AC2: Config file with hmac_secret rejected with clear error", func(t *testing.T) {
		path := writeConfig(t, `server:
  host: "localhost"
  hmac_secret: "should_be_rejected"
`)
		_, err := LoadConfig(path, nil)
		if err == nil {
			t.Fatal("AC2 FAIL: Expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use LS_HMAC_SECRET environment variable)" {
			t.Fatalf("AC2 FAIL: Wrong error message: %v", err)
		}
	})

	t.Run("AC3: Environment overrides config file", func(t *testing.T) {
		t.Setenv("LS_SERVER_GRPC_PORT", "8081")

		path := writeConfig(t, `server:
  grpc_port: 9090
`)
		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.Server.GRPCPort != 8081 {
			t.Fatalf("AC3 FAIL: Environment should override config file. Expected 8081, got %d", cfg.Server.GRPCPort)
		}
	})
}
