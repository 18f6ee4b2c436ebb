// internal/rules/engine.go
package rules

import (
	_ "embed"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/logspec/internal/types"
)

//go:embed default_matrix.tsv
var defaultMatrix string

// DefaultMatrix returns the rule table shipped with the binary.
func DefaultMatrix() string {
	return defaultMatrix
}

// Snapshot is one loaded rule table.
type Snapshot struct {
	LoadID   types.LoadID
	Source   string
	LoadedAt time.Time
	Lookup   *Lookup
}

// Engine owns the active rule table for an application.
// Reload builds a new Lookup and swaps it in atomically; readers holding an older
// snapshot keep using it until they finish.
type Engine struct {
	builder *Builder
	current atomic.Pointer[Snapshot]
	log     logrus.FieldLogger
}

// NewEngine creates an engine with no table loaded. A nil builder uses defaults.
func NewEngine(builder *Builder, log logrus.FieldLogger) *Engine {
	if builder == nil {
		builder = NewBuilder()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{builder: builder, log: log}
}

// Load compiles text and makes it the active table.
func (e *Engine) Load(text, source string) *Snapshot {
	lookup := e.builder.Build(text)
	snap := &Snapshot{
		LoadID:   types.NewLoadID(),
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Lookup:   lookup,
	}
	e.current.Store(snap)

	report := lookup.Report()
	e.log.WithFields(logrus.Fields{
		"load_id":      snap.LoadID,
		"source":       source,
		"ship_methods": lookup.Len(),
		"accepted":     report.Accepted,
		"skipped":      report.Skipped,
		"inferred":     len(report.Inferred),
		"empty":        len(report.EmptyKeys),
		"inference":    e.builder.Inference().Name(),
		"checksum":     lookup.Checksum(),
	}).Info("rule table loaded")

	return snap
}

// LoadDefault activates the embedded rule table.
func (e *Engine) LoadDefault() *Snapshot {
	return e.Load(defaultMatrix, "default")
}

// Current returns the active snapshot, or nil before the first load.
func (e *Engine) Current() *Snapshot {
	return e.current.Load()
}

// Lookup returns the active lookup. A nil result matches nothing.
func (e *Engine) Lookup() *Lookup {
	if snap := e.current.Load(); snap != nil {
		return snap.Lookup
	}
	return nil
}

// Filter runs records against one snapshot of the active table.
func (e *Engine) Filter(records []types.Record) (FilterResult, *Snapshot) {
	snap := e.current.Load()
	var lookup *Lookup
	if snap != nil {
		lookup = snap.Lookup
	}
	return FilterLogspecLines(records, lookup), snap
}

// InferenceName names the strategy applied on every load.
func (e *Engine) InferenceName() string {
	return e.builder.Inference().Name()
}
