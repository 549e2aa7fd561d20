package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotFound
	OutcomeContractViolation
	OutcomeTransientFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeContractViolation:
		return "contract_violation"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of one remote attempt, or of a whole failover call.
// NotFound is authoritative; ContractViolation and TransientFailure are
// retryable against another instance.
type Outcome struct {
	Kind     OutcomeKind
	Payload  []byte
	Cause    error
	Instance string
	Attempts int
}

func Success(payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

func ContractViolation(cause error) Outcome {
	return Outcome{Kind: OutcomeContractViolation, Cause: cause}
}

func TransientFailure(cause error) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Cause: cause}
}

func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) IsNotFound() bool {
	return o.Kind == OutcomeNotFound
}

func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeContractViolation || o.Kind == OutcomeTransientFailure
}

// Decode unmarshals a successful payload into v.
func (o Outcome) Decode(v any) error {
	if !o.IsSuccess() {
		return fmt.Errorf("cannot decode %s outcome", o.Kind)
	}
	if err := json.Unmarshal(o.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload from %s: %w", o.Instance, err)
	}
	return nil
}

// Err maps the outcome onto the domain error taxonomy: nil on success,
// notFound for an authoritative absence and ErrDependencyUnavailable otherwise.
func (o Outcome) Err(notFound error) error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeNotFound:
		return notFound
	default:
		if o.Cause == nil {
			return ErrDependencyUnavailable
		}
		return fmt.Errorf("%w: %w", ErrDependencyUnavailable, o.Cause)
	}
}

func (o Outcome) String() string {
	if o.Cause != nil {
		return fmt.Sprintf("%s: %v", o.Kind, o.Cause)
	}
	return o.Kind.String()
}

var ErrNoInstances = errors.New("no instances registered")

// ErrAllInstancesFailed is synthesized when the last attempt of a call was a
// contract violation rather than a transport failure.
var ErrAllInstancesFailed = errors.New("all instances failed")
