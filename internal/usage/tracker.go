package usage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Analysis constants. The thresholds are fixed design values: enough
// repetition to be a habit, not noise.
const (
	analysisWindow = 30 * 24 * time.Hour

	peakHourThreshold   = 5
	peakDayThreshold    = 3
	reportTypeThreshold = 3

	// reminderThreshold gates which day_of_week patterns become proactive
	// reminders; a habit needs more evidence than a pattern.
	reminderThreshold = 5
)

// reportTypeDetail is the event-details key carrying the report type for
// report_generated events.
const reportTypeDetail = "report_type"

// Tracker records usage events and derives descriptive patterns from them.
type Tracker struct {
	store  EventStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a tracker backed by store.
func NewTracker(store EventStore, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Record appends one usage event, stamping it with the current hour-of-day
// and day-of-week.
func (t *Tracker) Record(ctx context.Context, customerID string, eventType EventType, details map[string]string) error {
	now := t.now()
	event := Event{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Type:       eventType,
		Details:    details,
		HourOfDay:  now.Hour(),
		DayOfWeek:  int(now.Weekday()),
		CreatedAt:  now,
	}
	if err := t.store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// Analyze loads the customer's events from the last 30 days and derives
// frequency patterns: the modal hour (>=5 occurrences), the modal weekday
// (>=3), and any report type generated >=3 times.
func (t *Tracker) Analyze(ctx context.Context, customerID string) ([]Pattern, error) {
	since := t.now().Add(-analysisWindow)
	events, err := t.store.EventsSince(ctx, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("load usage events: %w", err)
	}

	var patterns []Pattern

	hours := make(map[int]int)
	days := make(map[int]int)
	reportTypes := make(map[string]int)
	for _, e := range events {
		hours[e.HourOfDay]++
		days[e.DayOfWeek]++
		if rt := e.Details[reportTypeDetail]; rt != "" {
			reportTypes[rt]++
		}
	}

	if hour, count := modal(hours, 24); count >= peakHourThreshold {
		patterns = append(patterns, Pattern{
			Type:      PatternTimeOfDay,
			Key:       fmt.Sprintf("peak_hour_%d", hour),
			Frequency: count,
		})
	}

	if day, count := modal(days, 7); count >= peakDayThreshold {
		weekday := time.Weekday(day)
		patterns = append(patterns, Pattern{
			Type:      PatternDayOfWeek,
			Key:       "peak_day_" + strings.ToLower(weekday.String()),
			Frequency: count,
			Weekday:   weekday,
		})
	}

	// Report types are sorted so repeated analyses list patterns stably.
	types := make([]string, 0, len(reportTypes))
	for rt := range reportTypes {
		types = append(types, rt)
	}
	sort.Strings(types)
	for _, rt := range types {
		if reportTypes[rt] >= reportTypeThreshold {
			patterns = append(patterns, Pattern{
				Type:      PatternReportType,
				Key:       "report_type_" + rt,
				Frequency: reportTypes[rt],
			})
		}
	}

	return patterns, nil
}

// Insights converts strong day-of-week habits into proactive reminders and
// appends anything the anomaly hook flags, sorted by priority descending.
func (t *Tracker) Insights(ctx context.Context, customerID string) ([]Insight, error) {
	patterns, err := t.Analyze(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var insights []Insight
	today := t.now().Weekday()
	for _, p := range patterns {
		if p.Type != PatternDayOfWeek || p.Frequency < reminderThreshold {
			continue
		}
		if p.Weekday != today {
			continue
		}
		insights = append(insights, Insight{
			Type:     "reminder",
			Title:    "Scheduled reporting day",
			Message:  fmt.Sprintf("It's %s! You often run reports on this day.", p.Weekday),
			Priority: p.Frequency,
		})
	}

	insights = append(insights, t.detectAnomalies(ctx, customerID)...)

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Priority > insights[j].Priority
	})
	return insights, nil
}

// detectAnomalies is an extension point for flagging unusual usage, such as
// a weekly report habit that suddenly stopped. No detector is wired yet, so
// it contributes nothing.
func (t *Tracker) detectAnomalies(ctx context.Context, customerID string) []Insight {
	return nil
}

// modal returns the bucket with the highest count, preferring the lowest
// bucket on ties so analysis is deterministic.
func modal(counts map[int]int, buckets int) (bucket, count int) {
	bucket = -1
	for b := 0; b < buckets; b++ {
		if counts[b] > count {
			bucket, count = b, counts[b]
		}
	}
	return bucket, count
}
