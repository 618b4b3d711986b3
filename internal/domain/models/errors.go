package models

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed observation at ingress. It is logged and
// the observation is never stored.
type ValidationError struct {
	IssuerID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.IssuerID == "" {
		return fmt.Sprintf("invalid observation: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid observation for %s: %s: %s", e.IssuerID, e.Field, e.Reason)
}

// SchemaMismatchError aborts a single score computation when the snapshot does
// not cover the model's feature schema. Shared state is untouched.
type SchemaMismatchError struct {
	IssuerID     string
	ModelVersion uint64
	Missing      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("snapshot for %s missing features %v required by model v%d",
		e.IssuerID, e.Missing, e.ModelVersion)
}

// TrainingError reports a failed training run. The candidate is discarded; the
// active model version is never touched.
type TrainingError struct {
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training failed: %s: %v", e.Reason, e.Err)
	}
	return "training failed: " + e.Reason
}

func (e *TrainingError) Unwrap() error { return e.Err }

// ErrPromotionConflict signals a concurrent promotion attempt. The caller
// retries; the registry never drops a promotion silently.
var ErrPromotionConflict = errors.New("model promotion already in flight")

// ErrNoActiveModel signals scoring was requested before any model was promoted.
var ErrNoActiveModel = errors.New("no active model version")

// ErrModelNotFound signals an unknown model version id.
var ErrModelNotFound = errors.New("model version not found")

// ErrIssuerNotFound signals a lookup for an issuer with no stored records.
var ErrIssuerNotFound = errors.New("issuer not found")
