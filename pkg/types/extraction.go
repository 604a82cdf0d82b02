package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrExtractionSchema indicates that an extraction payload failed schema
// validation at the pipeline boundary. It is deliberately distinct from
// matching errors so callers can tell a malformed payload apart from a
// resolution failure.
var ErrExtractionSchema = errors.New("extraction payload failed schema validation")

// ExtractionPayload is the schema-validated envelope delivered by the
// upstream AI extraction collaborator for one mention. The engine never
// performs extraction itself.
type ExtractionPayload struct {
	// RawText is the mention text as transcribed and extracted.
	RawText string `json:"raw_text"`

	// Fields holds the structured values the model extracted (e.g. role,
	// rate, hours), keyed by field name.
	Fields map[string]string `json:"fields,omitempty"`

	// FieldConfidence holds the model's per-field extraction confidence
	// (0-100), keyed by field name.
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`

	// NameConfidence is the model's confidence in the name extraction
	// itself (0-100).
	NameConfidence float64 `json:"name_confidence"`

	// ExplicitMention is true when the name was spoken directly rather
	// than inferred from context. Earns a confidence bonus.
	ExplicitMention bool `json:"explicit_mention"`

	// AnomalyScore measures how far extracted values deviate from expected
	// patterns (0-100). Penalizes overall confidence.
	AnomalyScore float64 `json:"anomaly_score"`

	// FieldCategory classifies the mention's content for review priority
	// escalation. Defaults to general when empty.
	FieldCategory FieldCategory `json:"field_category,omitempty"`

	// Context metadata
	ProjectID string    `json:"project_id,omitempty"`
	ReportID  string    `json:"report_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Validate checks the payload against the extraction schema. All failures
// wrap ErrExtractionSchema.
func (p *ExtractionPayload) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: payload is nil", ErrExtractionSchema)
	}
	if p.RawText == "" {
		return fmt.Errorf("%w: raw_text is required", ErrExtractionSchema)
	}
	if p.NameConfidence < 0 || p.NameConfidence > 100 {
		return fmt.Errorf("%w: name_confidence %.1f outside [0,100]", ErrExtractionSchema, p.NameConfidence)
	}
	if p.AnomalyScore < 0 || p.AnomalyScore > 100 {
		return fmt.Errorf("%w: anomaly_score %.1f outside [0,100]", ErrExtractionSchema, p.AnomalyScore)
	}
	for field, conf := range p.FieldConfidence {
		if conf < 0 || conf > 100 {
			return fmt.Errorf("%w: field_confidence[%s] %.1f outside [0,100]", ErrExtractionSchema, field, conf)
		}
	}
	if p.FieldCategory != "" {
		switch p.FieldCategory {
		case CategoryGeneral, CategoryFinance, CategorySafety, CategoryCritical:
		default:
			return fmt.Errorf("%w: unknown field_category %q", ErrExtractionSchema, p.FieldCategory)
		}
	}
	return nil
}

// Category returns the payload's field category, defaulting to general.
func (p *ExtractionPayload) Category() FieldCategory {
	if p.FieldCategory == "" {
		return CategoryGeneral
	}
	return p.FieldCategory
}
