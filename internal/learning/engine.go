package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reinforcement increments applied when a preference is observed, and the
// thresholds that gate what counts as "learned".
const (
	explicitReinforcement = 0.3
	implicitReinforcement = 0.1

	// preferenceThreshold is a strict lower bound: a value reinforced to
	// exactly 0.3 is not yet learned. Kept as-is from the original design;
	// see DESIGN.md before changing the comparison.
	preferenceThreshold = 0.3

	// learnedTerminologyMin is the minimum confidence for a term to be
	// included in the learned vocabulary.
	learnedTerminologyMin = 0.5
)

// TurnResult reports everything a turn produced. Extractions always carries
// the full list, including ones whose persistence failed; Failures pairs
// each failed extraction with the storage error it hit.
type TurnResult struct {
	Extractions []Extraction
	Failures    []PersistFailure
}

// PersistFailure records one extraction the store rejected.
type PersistFailure struct {
	Extraction Extraction
	Err        error
}

// Engine orchestrates the matcher battery over conversation turns and
// persists the results.
type Engine struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an engine backed by store. logger may not be nil.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessTurn runs every matcher family against the user message of one
// conversation turn and persists each extraction.
//
// Persistence is sequential and best-effort: a failure for one extraction
// is logged, counted, and recorded in the result, and processing continues
// with the remaining extractions. ProcessTurn never returns an error for a
// storage problem, so the conversational turn always succeeds from the
// caller's perspective.
//
// assistantResponse is accepted for interface stability but not scanned;
// only the customer's own words teach us anything.
func (e *Engine) ProcessTurn(ctx context.Context, customerID, userMessage, assistantResponse string, toolsUsed []string) TurnResult {
	_ = assistantResponse

	now := e.now()
	extractions := MatchTerminology(userMessage)
	extractions = append(extractions, MatchPreferences(userMessage, toolsUsed)...)
	extractions = append(extractions, MatchCorrections(userMessage, now)...)
	extractions = append(extractions, MatchProducts(userMessage)...)

	result := TurnResult{Extractions: extractions}
	for _, ex := range extractions {
		extractionsTotal.WithLabelValues(string(ex.Type)).Inc()
		if err := e.persist(ctx, customerID, ex, now); err != nil {
			persistFailuresTotal.WithLabelValues(string(ex.Type)).Inc()
			e.logger.Warn("failed to persist extraction",
				zap.String("customer_id", customerID),
				zap.String("type", string(ex.Type)),
				zap.String("key", ex.Key),
				zap.Error(err))
			result.Failures = append(result.Failures, PersistFailure{Extraction: ex, Err: err})
		}
	}

	if len(extractions) > 0 {
		e.logger.Debug("processed conversation turn",
			zap.String("customer_id", customerID),
			zap.Int("extractions", len(extractions)),
			zap.Int("failures", len(result.Failures)))
	}
	return result
}

// persist converts one extraction into its durable form.
func (e *Engine) persist(ctx context.Context, customerID string, ex Extraction, now time.Time) error {
	switch ex.Type {
	case ExtractionTerminology:
		return e.store.UpsertTerminology(ctx, TerminologyEntry{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			Term:       ex.Key,
			Definition: ex.Value,
			Confidence: ex.Confidence,
			Active:     true,
			Source:     ex.Source,
			CreatedAt:  now,
			UpdatedAt:  now,
		})

	case ExtractionPreference:
		increment := explicitReinforcement
		if ex.Source == SourceImplicit {
			increment = implicitReinforcement
		}
		return e.store.ReinforcePreference(ctx, customerID, ex.Key, ex.Value, increment)

	case ExtractionCorrection:
		var payload CorrectionPayload
		if err := json.Unmarshal([]byte(ex.Value), &payload); err != nil {
			return fmt.Errorf("decode correction payload: %w", err)
		}
		return e.store.InsertCorrection(ctx, Correction{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			Original:   payload.OriginalText,
			Corrected:  payload.CorrectedText,
			Context:    ex.Context,
			Processed:  false,
			CreatedAt:  now,
		})

	case ExtractionProduct:
		return e.store.AddProduct(ctx, customerID, ex.Key)

	default:
		return nil
	}
}

// LearnedPreferences returns, per category, the dominant value whose weight
// strictly exceeds the learning threshold. Categories with no value above
// the threshold are omitted. Ties break by map iteration order; with one
// dominant value per category in practice this nondeterminism is accepted.
func (e *Engine) LearnedPreferences(ctx context.Context, customerID string) (map[string]string, error) {
	weights, err := e.store.Preferences(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load preference weights: %w", err)
	}

	learned := make(map[string]string)
	for category, values := range weights {
		var bestValue string
		var bestWeight float64
		for value, w := range values {
			if w > bestWeight {
				bestValue, bestWeight = value, w
			}
		}
		if bestWeight > preferenceThreshold {
			learned[category] = bestValue
		}
	}
	return learned, nil
}

// PreferenceWeights returns the customer's raw preference-weight map.
func (e *Engine) PreferenceWeights(ctx context.Context, customerID string) (PreferenceWeights, error) {
	weights, err := e.store.Preferences(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load preference weights: %w", err)
	}
	return weights, nil
}

// LearnedTerminology returns the customer's active vocabulary: every active
// entry with confidence at or above the learned minimum, keyed by term.
func (e *Engine) LearnedTerminology(ctx context.Context, customerID string) (map[string]string, error) {
	entries, err := e.store.ActiveTerminology(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load terminology: %w", err)
	}

	learned := make(map[string]string)
	for _, entry := range entries {
		if entry.Confidence >= learnedTerminologyMin {
			learned[entry.Term] = entry.Definition
		}
	}
	return learned, nil
}
