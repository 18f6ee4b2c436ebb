package auth

import (
	"strings"
	"testing"
)

const (
	testSecretID = "0123456789abcdef0123456789abcdef"
	testRandom   = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
)

func TestParseAPIKey(t *testing.T) {
	valid := FormatAPIKey(testSecretID, testRandom)

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"wrong prefix", strings.Replace(valid, "ls-", "tk-", 1), true},
		{"wrong version", strings.Replace(valid, "-v1-", "-v2-", 1), true},
		{"short secret_id", "ls-v1-0123-" + testRandom, true},
		{"short random", "ls-v1-" + testSecretID + "-0011", true},
		{"uppercase hex", "ls-v1-" + strings.ToUpper(testSecretID) + "-" + testRandom, true},
		{"extra segment", valid + "-x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, random, err := ParseAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (id != testSecretID || random != testRandom) {
				t.Errorf("ParseAPIKey() = %s, %s", id, random)
			}
		})
	}
}

func TestFormatAPIKey_Length(t *testing.T) {
	if got := len(FormatAPIKey(testSecretID, testRandom)); got != 103 {
		t.Errorf("len(FormatAPIKey()) = %d, want 103", got)
	}
}

func TestComputeHMAC(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	key := FormatAPIKey(testSecretID, testRandom)

	a := ComputeHMAC(secret, key)
	b := ComputeHMAC(secret, key)
	if !VerifyHMAC(a, b) {
		t.Error("ComputeHMAC() is not deterministic")
	}
	if VerifyHMAC(a, ComputeHMAC([]byte("another-secret-another-secret-xx"), key)) {
		t.Error("different secrets produced equal signatures")
	}
	if len(a) != 32 {
		t.Errorf("len(ComputeHMAC()) = %d, want 32", len(a))
	}
}

func TestNewRandomData(t *testing.T) {
	a, err := NewRandomData()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewRandomData()
	if len(a) != 64 || !isLowerHex(a) {
		t.Errorf("NewRandomData() = %q, want 64 lowercase hex chars", a)
	}
	if a == b {
		t.Error("NewRandomData() repeated")
	}
	if _, _, err := ParseAPIKey(FormatAPIKey(testSecretID, a)); err != nil {
		t.Errorf("generated key does not parse: %v", err)
	}
}
