package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(store Store) *Engine {
	e := NewEngine(store, zap.NewNop())
	e.now = func() time.Time {
		return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	}
	return e
}

func TestProcessTurnTerminologyUpsertIdempotence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	result := engine.ProcessTurn(ctx, "cust-1", `When I say "hot load" I mean an expedited shipment`, "", nil)
	require.Len(t, result.Extractions, 1)
	require.Empty(t, result.Failures)

	entries, err := store.ActiveTerminology(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hot load", entries[0].Term)
	assert.Equal(t, "an expedited shipment", entries[0].Definition)
	assert.Equal(t, 0.9, entries[0].Confidence)
	assert.True(t, entries[0].Active)

	// Re-observing the same term blends confidence up by 0.1 (capped at
	// 1.0) and overwrites the definition with the latest text.
	engine.ProcessTurn(ctx, "cust-1", `When I say "hot load" I mean a rush delivery`, "", nil)

	entries, err = store.ActiveTerminology(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1.0, entries[0].Confidence)
	assert.Equal(t, "a rush delivery", entries[0].Definition)

	// A third observation stays capped.
	engine.ProcessTurn(ctx, "cust-1", `When I say "hot load" I mean a rush delivery`, "", nil)
	entries, err = store.ActiveTerminology(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, entries[0].Confidence)

	learned, err := engine.LearnedTerminology(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hot load": "a rush delivery"}, learned)
}

func TestProcessTurnPreferenceReinforcement(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	engine.ProcessTurn(ctx, "cust-1", "I prefer bar charts", "", nil)

	weights, err := store.Preferences(ctx, "cust-1")
	require.NoError(t, err)
	require.Contains(t, weights, "chart_type")
	assert.InDelta(t, 0.3, weights["chart_type"]["bar"], 1e-9)

	// Exactly at the threshold is not yet learned (strict > comparison).
	learned, err := engine.LearnedPreferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.NotContains(t, learned, "chart_type")

	// A competing observation reinforces the new value and decays the old.
	engine.ProcessTurn(ctx, "cust-1", "I prefer line charts", "", nil)

	weights, err = store.Preferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, weights["chart_type"]["bar"], 1e-9)
	assert.InDelta(t, 0.3, weights["chart_type"]["line"], 1e-9)

	// Repeated explicit statements eventually dominate.
	engine.ProcessTurn(ctx, "cust-1", "I prefer line charts", "", nil)

	weights, err = store.Preferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, weights["chart_type"]["line"], 1e-9)
	assert.InDelta(t, 0.2, weights["chart_type"]["bar"], 1e-9)

	learned, err = engine.LearnedPreferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "line", learned["chart_type"])
}

func TestProcessTurnImplicitReinforcementIsWeaker(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	engine.ProcessTurn(ctx, "cust-1", "add a line chart for weekly tonnage", "", []string{ToolAddReportSection})

	weights, err := store.Preferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, weights["chart_type"]["line"], 1e-9)
}

func TestProcessTurnPersistsCorrections(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	result := engine.ProcessTurn(ctx, "cust-1", "No, it's actually supposed to be 50 pallets", "", nil)
	require.Len(t, result.Extractions, 1)
	require.Empty(t, result.Failures)

	corrections := store.Corrections("cust-1")
	require.Len(t, corrections, 1)
	assert.Equal(t, "50 pallets", corrections[0].Original)
	assert.Equal(t, "50 pallets", corrections[0].Corrected)
	assert.False(t, corrections[0].Processed)
	assert.NotEmpty(t, corrections[0].ID)
}

// failingTerminologyStore rejects terminology writes but accepts everything
// else, to exercise partial-failure tolerance.
type failingTerminologyStore struct {
	*MemoryStore
}

func (s *failingTerminologyStore) UpsertTerminology(ctx context.Context, entry TerminologyEntry) error {
	return errors.New("store unavailable")
}

func TestProcessTurnToleratesPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingTerminologyStore{MemoryStore: NewMemoryStore()}
	engine := newTestEngine(store)

	message := `When I say "hot load" I mean an expedited shipment. I prefer bar charts.`
	result := engine.ProcessTurn(ctx, "cust-1", message, "", nil)

	// Both extractions are reported even though one failed to persist.
	require.Len(t, result.Extractions, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, ExtractionTerminology, result.Failures[0].Extraction.Type)
	assert.EqualError(t, result.Failures[0].Err, "store unavailable")

	// The preference after the failing terminology extraction still landed.
	weights, err := store.Preferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, weights["chart_type"]["bar"], 1e-9)
}

func TestLearnedPreferencesThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	// Weight exactly 0.3: omitted.
	require.NoError(t, store.ReinforcePreference(ctx, "cust-1", "sort_order", "descending", 0.3))
	learned, err := engine.LearnedPreferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, learned)

	// Nudged above the threshold: learned.
	require.NoError(t, store.ReinforcePreference(ctx, "cust-1", "sort_order", "descending", 0.3))
	learned, err = engine.LearnedPreferences(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "descending", learned["sort_order"])
}

func TestLearnedTerminologyConfidenceFloor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	require.NoError(t, store.UpsertTerminology(ctx, TerminologyEntry{
		CustomerID: "cust-1",
		Term:       "drop and hook",
		Definition: "pre-loaded trailer swap",
		Confidence: 0.4,
		Active:     true,
	}))
	require.NoError(t, store.UpsertTerminology(ctx, TerminologyEntry{
		CustomerID: "cust-1",
		Term:       "hot load",
		Definition: "an expedited shipment",
		Confidence: 0.5,
		Active:     true,
	}))

	learned, err := engine.LearnedTerminology(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hot load": "an expedited shipment"}, learned)
}

func TestProcessTurnRecordsProducts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	engine := newTestEngine(store)

	engine.ProcessTurn(ctx, "cust-1", "We ship mostly frozen produce.", "", nil)
	engine.ProcessTurn(ctx, "cust-1", "We ship mostly frozen produce.", "", nil)

	assert.Equal(t, []string{"frozen produce"}, store.Products("cust-1"))
}
