package models

import (
	"fmt"
	"time"
)

// SourceKind identifies the class of adapter an observation came from.
type SourceKind string

const (
	SourceMarket        SourceKind = "market"
	SourceMacro         SourceKind = "macro"
	SourceNewsSentiment SourceKind = "news_sentiment"
)

// IsValidSource returns true if s is a supported source kind.
func IsValidSource(s SourceKind) bool {
	switch s {
	case SourceMarket, SourceMacro, SourceNewsSentiment:
		return true
	default:
		return false
	}
}

// RawObservation is the untyped payload handed over by a data-source adapter
// (HTTP batch ingest or Kafka event). The normalizer turns it into an Observation
// or rejects it.
type RawObservation struct {
	IssuerID   string  `json:"issuer_id"`
	Source     string  `json:"source"`
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	ObservedAt int64   `json:"observed_at"` // unix seconds or millis
	// Headline is carried for news_sentiment payloads only; the text itself is
	// handed to the external document store, never used for scoring.
	Headline string `json:"headline,omitempty"`
}

// Observation is a single accepted data point for one issuer.
// Immutable once stored. Identity: (IssuerID, Source, Metric, ObservedAt).
type Observation struct {
	IssuerID   string
	Source     SourceKind
	Metric     string
	Value      float64
	ObservedAt time.Time
	IngestedAt time.Time
}

// ObservationID is the logical identity used for idempotent storage and for
// snapshot provenance.
type ObservationID struct {
	IssuerID   string    `json:"issuer_id"`
	Source     SourceKind `json:"source"`
	Metric     string    `json:"metric"`
	ObservedAt time.Time `json:"observed_at"`
}

// ID returns the observation's logical identity.
func (o Observation) ID() ObservationID {
	return ObservationID{IssuerID: o.IssuerID, Source: o.Source, Metric: o.Metric, ObservedAt: o.ObservedAt}
}

func (id ObservationID) String() string {
	return fmt.Sprintf("%s/%s/%s@%d", id.IssuerID, id.Source, id.Metric, id.ObservedAt.Unix())
}
