package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/solatis/logspec/internal/core/api"
	"github.com/solatis/logspec/internal/rules"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print the resolved country set for every ship method, or one",
	RunE:  runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().String("rules", "", "rule table path (default: embedded table)")
	lookupCmd.Flags().String("inference", "similarity", "inference strategy (similarity, none)")
	lookupCmd.Flags().String("ship-method", "", "print only this ship method")
	lookupCmd.Flags().String("format", "text", "output format (text, yaml)")
}

// lookupEntry is the printed form of one ship method.
type lookupEntry struct {
	ShipMethod    string   `yaml:"ship_method"`
	Found         bool     `yaml:"found"`
	Countries     []string `yaml:"countries,flow"`
	OutsideRegion bool     `yaml:"outside_region,omitempty"`
	InferredFrom  []string `yaml:"inferred_from,omitempty,flow"`
}

// lookupDocument is the yaml output of the lookup command.
type lookupDocument struct {
	LoadID      string        `yaml:"load_id"`
	Source      string        `yaml:"source"`
	Checksum    string        `yaml:"checksum"`
	Inference   string        `yaml:"inference"`
	ShipMethods []lookupEntry `yaml:"ship_methods"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	key, _ := cmd.Flags().GetString("ship-method")
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "yaml" {
		return fmt.Errorf("unsupported format %q (want text or yaml)", format)
	}

	engine, snap, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}

	keys := []string{key}
	if key == "" {
		keys = keys[:0]
		for _, k := range snap.Lookup.Keys() {
			keys = append(keys, string(k))
		}
	}

	doc := lookupDocument{
		LoadID:    string(snap.LoadID),
		Source:    snap.Source,
		Checksum:  snap.Lookup.Checksum(),
		Inference: engine.InferenceName(),
	}
	for _, k := range keys {
		info, err := api.Describe(snap.Lookup, k)
		if err != nil {
			return err
		}
		doc.ShipMethods = append(doc.ShipMethods, newLookupEntry(info))
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeLookupText(cmd.OutOrStdout(), doc)
}

func newLookupEntry(info api.ShipMethodInfo) lookupEntry {
	e := lookupEntry{
		ShipMethod:    string(info.ShipMethod),
		Found:         info.Found,
		Countries:     make([]string, 0, len(info.Countries)),
		OutsideRegion: info.OutsideRegion,
	}
	for _, c := range info.Countries {
		e.Countries = append(e.Countries, string(c))
	}
	for _, s := range info.Sources {
		e.InferredFrom = append(e.InferredFrom, string(s))
	}
	return e
}

// writeLookupText prints one tab-separated line per ship method.
func writeLookupText(w io.Writer, doc lookupDocument) error {
	for _, e := range doc.ShipMethods {
		var countries string
		switch {
		case !e.Found:
			countries = "(unknown)"
		default:
			entries := append([]string{}, e.Countries...)
			if e.OutsideRegion {
				entries = append(entries, rules.OutsideRegion)
			}
			countries = strings.Join(entries, "|")
			if countries == "" {
				countries = "(empty)"
			}
		}

		line := e.ShipMethod + "\t" + countries
		if len(e.InferredFrom) > 0 {
			line += "\tinferred from " + strings.Join(e.InferredFrom, ", ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
