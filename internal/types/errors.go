package types

import "errors"

// Sentinel errors for logspec collaborators. The rule core never returns errors;
// these surface from ingestion, configuration and service boundaries.
var (
	// ErrMissingColumn indicates a record file lacks a required column.
	ErrMissingColumn = errors.New("required column not found in header")

	// ErrEmptyInput indicates a record source with no header row.
	ErrEmptyInput = errors.New("input has no header row")

	// ErrRuleTableTooLarge indicates a rule table exceeds MaxRuleTableSize.
	ErrRuleTableTooLarge = errors.New("rule table exceeds maximum size")

	// ErrRecordFileTooLarge indicates a record file exceeds MaxRecordFileSize.
	ErrRecordFileTooLarge = errors.New("record file exceeds maximum size")

	// ErrBatchTooLarge indicates a classify request exceeds the configured batch size.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrTooManyFields indicates a record exceeds MaxFieldsPerRecord.
	ErrTooManyFields = errors.New("record has too many fields")

	// ErrUnknownInference indicates an unrecognised inference strategy name.
	ErrUnknownInference = errors.New("unknown inference strategy")

	// ErrReloadDisabled indicates rule reload was requested without API keys configured.
	ErrReloadDisabled = errors.New("rule reload disabled: no API keys configured")
)
