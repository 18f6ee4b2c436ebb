package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/logspec/internal/core/ingest"
	"gopkg.in/yaml.v3"
)

const cliTable = "LogSpec\tFEDEX_GROUND\tFR|DE\n" +
	"LogSpec\tDHL_INTL\tOutside of EU\n" +
	"LogSpec\tCARRIER_AIR_STD\tGB|IE\n" +
	"LogSpec\tCARRIER_AIR_UD_STD\t\n"

// execute runs the root command with args. Flag values persist across calls,
// so tests pass every flag they depend on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFilterCommand(t *testing.T) {
	rulesPath := writeFile(t, "rules.tsv", cliTable)
	records := writeFile(t, "orders.csv", "order,ship_method,country\n1,FEDEX_GROUND,FR\n2,FEDEX_GROUND,US\n3,UPS,FR\n4,DHL_INTL,JP\n")

	out, err := execute(t, "filter", "--db-url=", "--rules", rulesPath, "--inference", "similarity",
		"--records", records, "--out", "-", "--delimiter", "")
	if err != nil {
		t.Fatalf("filter error = %v", err)
	}

	want := "order,ship_method,country\n1,FEDEX_GROUND,FR\n4,DHL_INTL,JP\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestFilterCommand_RecordsRun(t *testing.T) {
	rulesPath := writeFile(t, "rules.tsv", cliTable)
	records := writeFile(t, "orders.tsv", "Ship Method\tCountry\nFEDEX_GROUND\tDE\nFEDEX_GROUND\tPL\nCARRIER_AIR_UD_STD\tIE\n")
	outPath := filepath.Join(t.TempDir(), "matched.tsv")
	dbPath := "sqlite://" + filepath.Join(t.TempDir(), "runs.db")

	if _, err := execute(t, "filter", "--db-url", dbPath, "--rules", rulesPath, "--inference", "similarity",
		"--records", records, "--out", outPath, "--delimiter", "tab"); err != nil {
		t.Fatalf("filter error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "Ship Method\tCountry\nFEDEX_GROUND\tDE\nCARRIER_AIR_UD_STD\tIE\n" {
		t.Errorf("output file = %q", got)
	}

	out, err := execute(t, "runs", "--db-url", dbPath, "--limit", "5")
	if err != nil {
		t.Fatalf("runs error = %v", err)
	}
	if !strings.Contains(out, "2/3") || !strings.Contains(out, records) {
		t.Errorf("runs output = %q, want one 2/3 run for %s", out, records)
	}
}

func TestWriteFiltered(t *testing.T) {
	table, err := ingest.Read(strings.NewReader("ship_method,country\nM,FR\n"), ingest.Options{})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := writeFiltered(io.Discard, path, table, table.Records); err != nil {
		t.Fatalf("writeFiltered() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ship_method,country\nM,FR\n" {
		t.Errorf("file = %q", data)
	}

	var stdout bytes.Buffer
	if err := writeFiltered(&stdout, "-", table, nil); err != nil {
		t.Fatalf("writeFiltered(-) error = %v", err)
	}
	if stdout.String() != "ship_method,country\n" {
		t.Errorf("stdout = %q", stdout.String())
	}

	missing := filepath.Join(t.TempDir(), "no-such-dir", "out.csv")
	if err := writeFiltered(io.Discard, missing, table, nil); err == nil {
		t.Error("expected error for unwritable output path")
	}
}

func TestFilterCommand_MissingColumn(t *testing.T) {
	records := writeFile(t, "orders.csv", "order,country\n1,FR\n")
	_, err := execute(t, "filter", "--db-url=", "--rules", "", "--inference", "similarity",
		"--records", records, "--out", "-", "--delimiter", "")
	if err == nil || !strings.Contains(err.Error(), "required column") {
		t.Errorf("error = %v, want missing column", err)
	}
}

func TestLookupCommand_Text(t *testing.T) {
	rulesPath := writeFile(t, "rules.tsv", cliTable)

	out, err := execute(t, "lookup", "--db-url=", "--rules", rulesPath, "--inference", "similarity",
		"--ship-method", "", "--format", "text")
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}

	for _, want := range []string{
		"FEDEX_GROUND\tDE|FR\n",
		"DHL_INTL\t<outside EU>\n",
		"CARRIER_AIR_UD_STD\tGB|IE\tinferred from CARRIER_AIR_STD\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLookupCommand_YAML(t *testing.T) {
	rulesPath := writeFile(t, "rules.tsv", cliTable)

	out, err := execute(t, "lookup", "--db-url=", "--rules", rulesPath, "--inference", "none",
		"--ship-method", "CARRIER_AIR_UD_STD", "--format", "yaml")
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}

	var doc lookupDocument
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("yaml: %v\n%s", err, out)
	}
	if doc.Inference != "none" || doc.Source != rulesPath || len(doc.ShipMethods) != 1 {
		t.Fatalf("doc = %+v", doc)
	}
	e := doc.ShipMethods[0]
	if !e.Found || len(e.Countries) != 0 || len(e.InferredFrom) != 0 {
		t.Errorf("entry = %+v, want found and empty without inference", e)
	}
}

func TestLookupCommand_DefaultTable(t *testing.T) {
	out, err := execute(t, "lookup", "--db-url=", "--rules", "", "--inference", "similarity",
		"--ship-method", "NOT_A_METHOD", "--format", "text")
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}
	if out != "NOT_A_METHOD\t(unknown)\n" {
		t.Errorf("output = %q", out)
	}
}

func TestLookupCommand_BadFormat(t *testing.T) {
	if _, err := execute(t, "lookup", "--db-url=", "--rules", "", "--format", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestMigrateCommands(t *testing.T) {
	dbPath := "sqlite://" + filepath.Join(t.TempDir(), "migrate.db")

	out, err := execute(t, "migrate", "status", "--db-url", dbPath)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "001_initial_schema.sql") || !strings.Contains(out, "pending") {
		t.Errorf("status before up = %q", out)
	}

	if _, err := execute(t, "migrate", "up", "--db-url", dbPath); err != nil {
		t.Fatalf("up error = %v", err)
	}

	out, err = execute(t, "migrate", "status", "--db-url", dbPath)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "applied") || strings.Contains(out, "pending") {
		t.Errorf("status after up = %q", out)
	}
}

func TestAPIKeyCommands(t *testing.T) {
	t.Setenv("LS_HMAC_SECRET", "0190a1b2c3d4e5f60718293a4b5c6d7e:MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	dbPath := "sqlite://" + filepath.Join(t.TempDir(), "keys.db")

	out, err := execute(t, "apikey", "create", "--db-url", dbPath, "--label", "ci", "--secret-id", "")
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	var id string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "id:") {
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		}
	}
	if id == "" || !strings.Contains(out, "key: ls-v1-0190a1b2c3d4e5f60718293a4b5c6d7e-") {
		t.Fatalf("create output = %q", out)
	}

	if _, err := execute(t, "apikey", "revoke", "--db-url", dbPath, "--id", id); err != nil {
		t.Fatalf("revoke error = %v", err)
	}
	if _, err := execute(t, "apikey", "revoke", "--db-url", dbPath, "--id", id); err == nil {
		t.Error("second revoke should fail")
	}

	out, err = execute(t, "apikey", "list", "--db-url", dbPath)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "ci") {
		t.Errorf("list output = %q", out)
	}
}

func TestCommandsRequireDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"migrate", "up", "--db-url="},
		{"runs", "--db-url="},
		{"apikey", "list", "--db-url="},
	} {
		if _, err := execute(t, args...); err == nil || !strings.Contains(err.Error(), "--db-url required") {
			t.Errorf("%v: error = %v, want --db-url required", args, err)
		}
	}
}
