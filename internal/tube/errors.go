package tube

import (
	"fmt"
	"strings"
)

// ConfigErrorKind classifies construction-time failures.
type ConfigErrorKind string

const (
	UnknownField       ConfigErrorKind = "unknown_field"
	UnknownSourceField ConfigErrorKind = "unknown_source_field"
	DuplicateField     ConfigErrorKind = "duplicate_field"
	UnknownFunc        ConfigErrorKind = "unknown_func"
	AutoMapUnsupported ConfigErrorKind = "automap_unsupported"
)

// ConfigError reports an invalid mapping or defaults definition. It is
// raised before any record is processed.
type ConfigError struct {
	Kind   ConfigErrorKind
	Fields []string
}

func (e *ConfigError) Error() string {
	if len(e.Fields) == 0 {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Fields, ", "))
}

// TransformErrorKind classifies per-record transform failures.
type TransformErrorKind string

const (
	MissingSourceField TransformErrorKind = "missing_source_field"
	RuleFailed         TransformErrorKind = "rule_failed"
)

// TransformError reports that one field rule could not produce a value for
// one record. It is recoverable: the record is reported failed and the run
// may continue.
type TransformError struct {
	Kind  TransformErrorKind
	Field string
	Cause error
}

func (e *TransformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("field %s: %s: %v", e.Field, e.Kind, e.Cause)
	}
	return fmt.Sprintf("field %s: %s", e.Field, e.Kind)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// StoreFault wraps a target-store error. Recoverable faults (constraint
// violations) are recorded per record; everything else aborts the unit.
type StoreFault struct {
	Recoverable bool
	Err         error
}

func (e *StoreFault) Error() string {
	return fmt.Sprintf("target store: %v", e.Err)
}

func (e *StoreFault) Unwrap() error { return e.Err }
