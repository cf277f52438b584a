package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure by what the caller should do about it.
type Kind string

const (
	// KindInput means the request itself was malformed or unservable.
	KindInput Kind = "input"
	// KindQuoteUnavailable means a leg could not be quoted.
	KindQuoteUnavailable Kind = "quote_unavailable"
	// KindNetworkTransient means a retry later may succeed.
	KindNetworkTransient Kind = "network_transient"
	// KindSimulationRejected means the chain refused the transaction in
	// simulation; the opportunity is dead.
	KindSimulationRejected Kind = "simulation_rejected"
	// KindSigningFailure means key material or the signing backend failed.
	KindSigningFailure Kind = "signing_failure"
	// KindSafetyRejected means the safety battery or economics said no.
	KindSafetyRejected Kind = "safety_rejected"
)

// PipelineError pairs a failure kind with its cause.
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// E wraps err with a kind. A nil err returns nil.
func E(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Err: err}
}

// Ef is E with formatting.
func Ef(kind Kind, format string, args ...any) error {
	return &PipelineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind, or empty when err carries none.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
