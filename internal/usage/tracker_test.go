package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedNow is a Wednesday at 14:00 UTC.
var fixedNow = time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC)

func newTestTracker(store EventStore) *Tracker {
	tr := NewTracker(store, zap.NewNop())
	tr.now = func() time.Time { return fixedNow }
	return tr
}

func recordAt(t *testing.T, store EventStore, customerID string, at time.Time, eventType EventType, details map[string]string) {
	t.Helper()
	require.NoError(t, store.InsertEvent(context.Background(), Event{
		CustomerID: customerID,
		Type:       eventType,
		Details:    details,
		HourOfDay:  at.Hour(),
		DayOfWeek:  int(at.Weekday()),
		CreatedAt:  at,
	}))
}

func TestRecordStampsHourAndDay(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	require.NoError(t, tracker.Record(ctx, "cust-1", EventQuestionAsked, nil))

	events, err := store.EventsSince(ctx, "cust-1", fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 14, events[0].HourOfDay)
	assert.Equal(t, int(time.Wednesday), events[0].DayOfWeek)
	assert.NotEmpty(t, events[0].ID)
}

func TestAnalyzePeakHour(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	// Five events at hour 14 across different days inside the window.
	for day := 1; day <= 5; day++ {
		at := fixedNow.AddDate(0, 0, -day)
		recordAt(t, store, "cust-1", time.Date(at.Year(), at.Month(), at.Day(), 14, 0, 0, 0, time.UTC), EventQuestionAsked, nil)
	}

	patterns, err := tracker.Analyze(ctx, "cust-1")
	require.NoError(t, err)

	var found *Pattern
	for i := range patterns {
		if patterns[i].Type == PatternTimeOfDay {
			found = &patterns[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "peak_hour_14", found.Key)
	assert.Equal(t, 5, found.Frequency)
}

func TestAnalyzePeakHourBelowThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	for day := 1; day <= 4; day++ {
		at := fixedNow.AddDate(0, 0, -day)
		recordAt(t, store, "cust-1", time.Date(at.Year(), at.Month(), at.Day(), 14, 0, 0, 0, time.UTC), EventQuestionAsked, nil)
	}

	patterns, err := tracker.Analyze(ctx, "cust-1")
	require.NoError(t, err)
	for _, p := range patterns {
		assert.NotEqual(t, PatternTimeOfDay, p.Type)
	}
}

func TestAnalyzeIgnoresEventsOutsideWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	// Five old events at hour 9, well past the 30 day window.
	for day := 40; day <= 44; day++ {
		at := fixedNow.AddDate(0, 0, -day)
		recordAt(t, store, "cust-1", time.Date(at.Year(), at.Month(), at.Day(), 9, 0, 0, 0, time.UTC), EventQuestionAsked, nil)
	}

	patterns, err := tracker.Analyze(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestAnalyzeReportTypes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	for i := 0; i < 3; i++ {
		recordAt(t, store, "cust-1", fixedNow.AddDate(0, 0, -i-1), EventReportGenerated, map[string]string{"report_type": "lane_margin"})
	}
	// Only two of these: below threshold.
	for i := 0; i < 2; i++ {
		recordAt(t, store, "cust-1", fixedNow.AddDate(0, 0, -i-1), EventReportGenerated, map[string]string{"report_type": "fuel_spend"})
	}

	patterns, err := tracker.Analyze(ctx, "cust-1")
	require.NoError(t, err)

	var reportKeys []string
	for _, p := range patterns {
		if p.Type == PatternReportType {
			reportKeys = append(reportKeys, p.Key)
		}
	}
	assert.Equal(t, []string{"report_type_lane_margin"}, reportKeys)
}

func TestInsightsRemindOnMatchingWeekday(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	// Five Wednesdays in a row; fixedNow is also a Wednesday.
	for week := 1; week <= 5; week++ {
		recordAt(t, store, "cust-1", fixedNow.AddDate(0, 0, -7*week+7).Add(-time.Hour), EventReportGenerated, nil)
	}

	insights, err := tracker.Insights(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "reminder", insights[0].Type)
	assert.Contains(t, insights[0].Message, "Wednesday")
	assert.Equal(t, 5, insights[0].Priority)
}

func TestInsightsSkipWeakOrMismatchedHabits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	tracker := newTestTracker(store)

	// Four Wednesdays: a day_of_week pattern (>=3) but not reminder-strong.
	for week := 1; week <= 4; week++ {
		recordAt(t, store, "cust-1", fixedNow.AddDate(0, 0, -7*week), EventReportGenerated, nil)
	}

	patterns, err := tracker.Analyze(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternDayOfWeek, patterns[0].Type)
	assert.Equal(t, "peak_day_wednesday", patterns[0].Key)

	insights, err := tracker.Insights(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, insights)
}
