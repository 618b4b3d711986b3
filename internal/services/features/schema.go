package features

import (
	"time"

	"CreditLens/internal/domain/models"
)

// Agg names an aggregation rule applied to a feature's window of observations.
type Agg string

const (
	AggLast    Agg = "last"     // most recent value in window (ingested_at tie-break)
	AggMean    Agg = "mean"     // arithmetic mean over window
	AggROC     Agg = "roc"      // rate of change: (last-first)/first over window
	AggVol     Agg = "vol"      // sample stddev of successive log returns
	AggLogLast Agg = "log_last" // ln of the most recent value
)

// Spec declares one feature: where its inputs come from, how they aggregate,
// and what happens when the window is empty.
type Spec struct {
	Name   string
	Source models.SourceKind
	Metric string
	Window time.Duration
	Agg    Agg
	// Neutral is the documented constant used when the window is empty and
	// carry-forward finds nothing either. The feature is flagged imputed.
	Neutral float64
	// CarryForward pulls the last known value from before the window instead
	// of falling straight to Neutral.
	CarryForward bool
	// Label is the human-readable name used in explanations.
	Label string
}

const day = 24 * time.Hour

// DefaultSchema is the declared feature set for issuer credit scoring. Order
// matters: snapshots and models use this order.
func DefaultSchema() []Spec {
	return []Spec{
		{Name: "price_last", Source: models.SourceMarket, Metric: "price", Window: 7 * day, Agg: AggLast, Neutral: 0, CarryForward: true, Label: "latest share price"},
		{Name: "price_roc_30d", Source: models.SourceMarket, Metric: "price", Window: 30 * day, Agg: AggROC, Neutral: 0, Label: "30-day price momentum"},
		{Name: "volatility_30d", Source: models.SourceMarket, Metric: "price", Window: 30 * day, Agg: AggVol, Neutral: 0.2, Label: "30-day price volatility"},
		{Name: "debt_to_equity", Source: models.SourceMarket, Metric: "debt_to_equity", Window: 120 * day, Agg: AggLast, Neutral: 0.5, CarryForward: true, Label: "debt-to-equity ratio"},
		{Name: "current_ratio", Source: models.SourceMarket, Metric: "current_ratio", Window: 120 * day, Agg: AggLast, Neutral: 1.5, CarryForward: true, Label: "current ratio"},
		{Name: "roe", Source: models.SourceMarket, Metric: "roe", Window: 120 * day, Agg: AggLast, Neutral: 0.10, CarryForward: true, Label: "return on equity"},
		{Name: "log_market_cap", Source: models.SourceMarket, Metric: "market_cap", Window: 30 * day, Agg: AggLogLast, Neutral: 20.7, CarryForward: true, Label: "company size"},
		{Name: "sentiment_30d", Source: models.SourceNewsSentiment, Metric: "headline_sentiment", Window: 30 * day, Agg: AggMean, Neutral: 0, Label: "recent news sentiment"},
		{Name: "interest_rate", Source: models.SourceMacro, Metric: "policy_rate", Window: 180 * day, Agg: AggLast, Neutral: 0.03, CarryForward: true, Label: "policy interest rate"},
		{Name: "gdp_growth", Source: models.SourceMacro, Metric: "gdp_growth", Window: 400 * day, Agg: AggLast, Neutral: 0.02, CarryForward: true, Label: "GDP growth"},
	}
}

// Names returns the ordered feature names of a schema.
func Names(schema []Spec) []string {
	out := make([]string, len(schema))
	for i, s := range schema {
		out[i] = s.Name
	}
	return out
}

// Labels returns the static feature -> human label table for a schema.
func Labels(schema []Spec) map[string]string {
	m := make(map[string]string, len(schema))
	for _, s := range schema {
		m[s.Name] = s.Label
	}
	return m
}
