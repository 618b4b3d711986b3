package models

// Requests for the scoring HTTP endpoints. Defined in domain for consistency and reuse.

type ComputeScoreRequest struct {
	IssuerID    string `query:"issuer" json:"issuer_id" validate:"required"`
	AsOf        string `query:"as_of" json:"as_of"` // RFC3339 or unix seconds; empty = now
	Granularity string `query:"granularity" json:"granularity" default:"issuer" validate:"oneof=issuer asset_class"`
}

type LatestScoreRequest struct {
	IssuerID string `query:"issuer" json:"issuer_id" validate:"required"`
}

type ScoreHistoryRequest struct {
	IssuerID string `query:"issuer" json:"issuer_id" validate:"required"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type IngestObservationsRequest struct {
	Observations []RawObservation `json:"observations" validate:"required,min=1,max=1000,dive"`
}

// IngestResult reports per-record ingest outcomes: one bad record never fails
// the batch.
type IngestResult struct {
	Accepted int           `json:"accepted"`
	Rejected []IngestError `json:"rejected,omitempty"`
}

type IngestError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type SubmitModelRequest struct {
	// Dataset rows: feature vectors in schema order plus a distress outcome label.
	Rows []TrainingRow `json:"rows" validate:"required,min=20,dive"`
}

// TrainingRow is one historical (snapshot, outcome) pair used for retraining.
type TrainingRow struct {
	Features []float64 `json:"features" validate:"required"`
	Distress bool      `json:"distress"`
}
