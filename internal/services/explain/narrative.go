package explain

import (
	"fmt"
	"strings"

	"CreditLens/internal/domain/models"
)

// Narrative renders the ranked factors into a deterministic plain-language
// summary. Template-generated text only; no free-form generation.
func Narrative(rec models.ScoreRecord, factors []models.KeyFactor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is rated %s risk with a credit score of %.1f.",
		rec.IssuerID, rec.RiskLevel, rec.Score)

	if len(factors) == 0 {
		return b.String()
	}

	lead := factors[0]
	fmt.Fprintf(&b, " The score is driven primarily by %s (%s).",
		lead.Label, signed(lead.Contribution))

	if offset, ok := firstOpposing(factors, lead.Contribution); ok {
		fmt.Fprintf(&b, " This is partly offset by %s (%s).",
			offset.Label, signed(offset.Contribution))
	}

	if rec.LowCoverage {
		b.WriteString(" Coverage is low: most inputs were imputed, so treat the confidence with caution.")
	}
	return b.String()
}

// firstOpposing returns the highest-ranked factor whose sign opposes the lead.
func firstOpposing(factors []models.KeyFactor, lead float64) (models.KeyFactor, bool) {
	for _, f := range factors[1:] {
		if f.Contribution*lead < 0 {
			return f, true
		}
	}
	return models.KeyFactor{}, false
}

func signed(v float64) string {
	return fmt.Sprintf("%+.1f points", v)
}
