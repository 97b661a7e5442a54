package learning

import (
	"time"
)

// ExtractionType classifies what kind of fact a matcher proposed.
type ExtractionType string

const (
	ExtractionTerminology ExtractionType = "terminology"
	ExtractionPreference  ExtractionType = "preference"
	ExtractionCorrection  ExtractionType = "correction"
	ExtractionPattern     ExtractionType = "pattern"
	ExtractionProduct     ExtractionType = "product"
)

// Source identifies how an extraction was obtained.
type Source string

const (
	// SourceExplicit means the customer stated the fact directly.
	SourceExplicit Source = "explicit"

	// SourceImplicit means the fact was inferred from behavior, such as the
	// chart type a customer keeps adding to reports.
	SourceImplicit Source = "implicit"

	// SourceCorrection means the customer corrected something the assistant
	// said or produced.
	SourceCorrection Source = "correction"
)

// Extraction is a transient fact proposed from a single user message.
//
// Extractions exist only for the duration of one conversation turn: the
// Engine persists each one into a durable record and then discards it.
type Extraction struct {
	// Type classifies the extraction.
	Type ExtractionType `json:"type"`

	// Key is a normalized lowercase identifier: a term, a preference
	// category, or a generated correction key.
	Key string `json:"key"`

	// Value is the extracted value. For corrections it is a JSON-encoded
	// CorrectionPayload.
	Value string `json:"value"`

	// Confidence is in [0,1] and is assigned by the matcher that fired.
	Confidence float64 `json:"confidence"`

	// Source records how the fact was obtained.
	Source Source `json:"source"`

	// Context is the original message text the extraction came from.
	Context string `json:"context,omitempty"`
}

// TerminologyEntry is the durable record for one learned term.
//
// At most one active entry exists per (customer, term). Repeated explicit
// observations nudge confidence up by TerminologyBlendStep, capped at 1.0;
// confidence never decreases on re-observation. The definition text is
// last-write-wins.
type TerminologyEntry struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Term       string    `json:"term"`
	Definition string    `json:"definition"`
	Confidence float64   `json:"confidence"`
	Active     bool      `json:"is_active"`
	Source     Source    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Correction is an append-only record of a customer correcting the
// assistant. Nothing mutates a stored correction except the Processed flag,
// which an external reviewer flips.
type Correction struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Original   string    `json:"original"`
	Corrected  string    `json:"corrected"`
	Context    string    `json:"context,omitempty"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
}

// CorrectionPayload is the JSON body carried in a correction extraction's
// Value field. CorrectedText falls back to OriginalText when the matcher
// captured no explicit replacement.
type CorrectionPayload struct {
	OriginalText  string    `json:"originalText"`
	CorrectedText string    `json:"correctedText"`
	Timestamp     time.Time `json:"timestamp"`
}

// PreferenceWeights maps a preference category (e.g. "chart_type") to
// candidate values and their weights in [0,1].
type PreferenceWeights map[string]map[string]float64
