package accel

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the configuration path wraps exactly
// one of these; classify with errors.Is.
var (
	ErrDeviceIdentityMismatch = errors.New("device identity mismatch")
	ErrCapabilityUnsupported  = errors.New("capability unsupported")
	ErrParameterOutOfRange    = errors.New("parameter out of range")
	ErrShapeInfeasible        = errors.New("shape infeasible")
	ErrEngineBusy             = errors.New("engine busy")
	ErrSubsystemNotEnabled    = errors.New("calculation subsystem not enabled")
	ErrNotConfigured          = errors.New("engine not configured")
	ErrUnsupported            = errors.New("operation unsupported by this build")
)

// IdentityError reports a type code that does not belong to the expected family.
type IdentityError struct {
	Family string
	Want   uint32
	Got    uint32
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s: type code 0x%08x does not match 0x%08x (wrong base address?)", e.Family, e.Got, e.Want)
}

func (e *IdentityError) Unwrap() error { return ErrDeviceIdentityMismatch }

// ConfigError is a rejected descriptor field.
type ConfigError struct {
	Kind   error
	Field  string
	Value  int64
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v (%d)", e.Field, e.Kind, e.Value)
	}
	return fmt.Sprintf("%s: %v (%d): %s", e.Field, e.Kind, e.Value, e.Detail)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

func Unsupported(field string, value int64, detail string) error {
	return &ConfigError{Kind: ErrCapabilityUnsupported, Field: field, Value: value, Detail: detail}
}

func OutOfRange(field string, value int64, lo, hi int64) error {
	return &ConfigError{
		Kind:   ErrParameterOutOfRange,
		Field:  field,
		Value:  value,
		Detail: fmt.Sprintf("must be in [%d, %d]", lo, hi),
	}
}

func Infeasible(field string, value int64, detail string) error {
	return &ConfigError{Kind: ErrShapeInfeasible, Field: field, Value: value, Detail: detail}
}

// CheckRange returns an OutOfRange error unless lo <= v <= hi.
func CheckRange(field string, v int, lo, hi int) error {
	if v < lo || v > hi {
		return OutOfRange(field, int64(v), int64(lo), int64(hi))
	}
	return nil
}

// Kind returns a short label for the class of err, for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDeviceIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, ErrCapabilityUnsupported):
		return "capability_unsupported"
	case errors.Is(err, ErrParameterOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrShapeInfeasible):
		return "shape_infeasible"
	case errors.Is(err, ErrEngineBusy):
		return "busy"
	case errors.Is(err, ErrSubsystemNotEnabled):
		return "not_enabled"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "other"
	}
}
