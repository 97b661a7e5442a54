package usage

import (
	"time"
)

// EventType identifies what the customer did.
type EventType string

const (
	EventReportGenerated EventType = "report_generated"
	EventQuestionAsked   EventType = "question_asked"
	EventSectionAdded    EventType = "section_added"
)

// Event is one append-only usage record. HourOfDay and DayOfWeek are
// denormalized at record time so pattern analysis never depends on the
// reader's timezone.
type Event struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	Type       EventType         `json:"event_type"`
	Details    map[string]string `json:"event_details,omitempty"`
	HourOfDay  int               `json:"hour_of_day"` // 0-23
	DayOfWeek  int               `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	CreatedAt  time.Time         `json:"created_at"`
}

// PatternType classifies a detected habit.
type PatternType string

const (
	PatternTimeOfDay  PatternType = "time_of_day"
	PatternDayOfWeek  PatternType = "day_of_week"
	PatternReportType PatternType = "report_type"
)

// Pattern is a detected usage habit.
type Pattern struct {
	Type      PatternType `json:"type"`
	Key       string      `json:"key"`
	Frequency int         `json:"frequency"`

	// Weekday is set for day_of_week patterns only.
	Weekday time.Weekday `json:"weekday"`
}

// Insight is a human-readable proactive suggestion derived from patterns.
type Insight struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}
