// Package api provides the classification service behind the gRPC and HTTP
// surfaces. Transport code decodes requests into the types here and maps
// returned errors with Code and HTTPStatus.
package api

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/solatis/logspec/internal/rules"
	"github.com/solatis/logspec/internal/types"
)

// Service answers classification and lookup queries against the engine's
// active rule table and performs authenticated reloads.
type Service struct {
	engine        *rules.Engine
	maxBatchSize  int
	reloadEnabled bool
	log           logrus.FieldLogger
}

// Options configures a Service.
type Options struct {
	MaxBatchSize int
	// ReloadEnabled is set when API keys can be verified; otherwise
	// ReloadRules returns types.ErrReloadDisabled.
	ReloadEnabled bool
	Log           logrus.FieldLogger
}

// NewService creates service instance with dependencies.
func NewService(engine *rules.Engine, opts Options) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if opts.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("max batch size must be positive, got %d", opts.MaxBatchSize)
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		engine:        engine,
		maxBatchSize:  opts.MaxBatchSize,
		reloadEnabled: opts.ReloadEnabled,
		log:           log,
	}, nil
}

// Decision is the outcome for one classified record.
type Decision struct {
	Matched bool
	Reason  rules.MatchReason
}

// ClassifyResult holds per-record decisions in request order.
type ClassifyResult struct {
	LoadID    types.LoadID
	Checksum  string
	Total     int
	Matched   int
	Decisions []Decision
}

// Classify decides every record against a single snapshot of the active table.
// Before any table is loaded, every record is unmatched.
func (s *Service) Classify(ctx context.Context, records []types.Record) (ClassifyResult, error) {
	if len(records) > s.maxBatchSize {
		return ClassifyResult{}, fmt.Errorf("%w: %d records (max %d)", types.ErrBatchTooLarge, len(records), s.maxBatchSize)
	}
	if err := ctx.Err(); err != nil {
		return ClassifyResult{}, err
	}

	res := ClassifyResult{
		Total:     len(records),
		Decisions: make([]Decision, len(records)),
	}

	var lookup *rules.Lookup
	if snap := s.engine.Current(); snap != nil {
		lookup = snap.Lookup
		res.LoadID = snap.LoadID
		res.Checksum = snap.Lookup.Checksum()
	}

	for i, r := range records {
		reason := rules.Explain(r, lookup)
		res.Decisions[i] = Decision{Matched: reason.Matched(), Reason: reason}
		if reason.Matched() {
			res.Matched++
		}
	}
	return res, nil
}

// ShipMethodInfo describes the resolved rule for one ship method.
type ShipMethodInfo struct {
	ShipMethod    types.ShipMethodKey
	Found         bool
	Countries     []types.CountryCode
	OutsideRegion bool
	// Sources lists the donor keys when the set was inferred.
	Sources []types.ShipMethodKey
}

// Inferred reports whether the set came from similarity inference.
func (i ShipMethodInfo) Inferred() bool {
	return len(i.Sources) > 0
}

// LookupShipMethod returns the resolved set for key. An unknown key is not an
// error; Found is false.
func (s *Service) LookupShipMethod(ctx context.Context, key string) (ShipMethodInfo, error) {
	if err := ctx.Err(); err != nil {
		return ShipMethodInfo{}, err
	}
	return Describe(s.engine.Lookup(), key)
}

// Describe resolves key in lookup.
func Describe(lookup *rules.Lookup, key string) (ShipMethodInfo, error) {
	k := types.ShipMethodKey(trimKey(key))
	if k == "" {
		return ShipMethodInfo{}, fmt.Errorf("%w: ship_method is required", ErrInvalidRequest)
	}

	info := ShipMethodInfo{ShipMethod: k, Countries: []types.CountryCode{}}
	set, ok := lookup.Get(k)
	if !ok {
		return info, nil
	}

	info.Found = true
	info.Countries = set.Codes()
	info.OutsideRegion = set.HasOutsideRegion()
	for _, inf := range lookup.Report().Inferred {
		if inf.Key == k {
			info.Sources = inf.Sources
			break
		}
	}
	return info, nil
}

// ReloadResult summarizes a completed reload.
type ReloadResult struct {
	LoadID      types.LoadID
	Source      string
	ShipMethods int
	Report      rules.BuildReport
	Checksum    string
}

// ReloadRules compiles text and makes it the active table.
func (s *Service) ReloadRules(ctx context.Context, text, source string) (ReloadResult, error) {
	if !s.reloadEnabled {
		return ReloadResult{}, types.ErrReloadDisabled
	}
	if len(text) > types.MaxRuleTableSize {
		return ReloadResult{}, fmt.Errorf("%w: %d bytes (max %d)", types.ErrRuleTableTooLarge, len(text), types.MaxRuleTableSize)
	}
	if err := ctx.Err(); err != nil {
		return ReloadResult{}, err
	}
	if source == "" {
		source = "api"
	}

	snap := s.engine.Load(text, source)
	return ReloadResult{
		LoadID:      snap.LoadID,
		Source:      snap.Source,
		ShipMethods: snap.Lookup.Len(),
		Report:      snap.Lookup.Report(),
		Checksum:    snap.Lookup.Checksum(),
	}, nil
}

// Status describes the active rule table. LoadID is empty before the first load.
type Status struct {
	LoadID      types.LoadID
	Source      string
	Checksum    string
	ShipMethods int
	Inference   string
}

// Status returns the active table's identity.
func (s *Service) Status() Status {
	st := Status{Inference: s.engine.InferenceName()}
	if snap := s.engine.Current(); snap != nil {
		st.LoadID = snap.LoadID
		st.Source = snap.Source
		st.Checksum = snap.Lookup.Checksum()
		st.ShipMethods = snap.Lookup.Len()
	}
	return st
}
