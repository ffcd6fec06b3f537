package records

import "errors"

// Sentinel error kinds. Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify a failure with errors.Is without string matching.
var (
	// ErrTransientDependency marks a retryable failure in a model call or
	// storage round-trip (timeout, connection reset, 5xx-equivalent).
	ErrTransientDependency = errors.New("transient dependency failure")

	// ErrInvalidInput marks a caller-supplied shape/type mismatch; the
	// caller must fix its request, retrying verbatim will not help.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIntegrityViolation marks a version conflict on a UIConfig upsert
	// (two builders racing for the same user).
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrConfigurationError marks a startup-time failure (malformed KB,
	// missing encryption material) that halts the affected subsystem.
	ErrConfigurationError = errors.New("configuration error")

	// ErrSafetyCritical marks a critical-severity finding; never swallowed,
	// always surfaced to the caller alongside the record that carries it.
	ErrSafetyCritical = errors.New("safety critical finding")
)
