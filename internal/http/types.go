package http

import (
	"github.com/loadpilot/loadpilot/internal/learning"
	"github.com/loadpilot/loadpilot/internal/usage"
)

// TurnRequest is the request body for POST /api/v1/customers/:id/turns.
type TurnRequest struct {
	UserMessage       string   `json:"user_message"`
	AssistantResponse string   `json:"assistant_response"`
	ToolsUsed         []string `json:"tools_used"`
}

// TurnResponse reports what one conversation turn taught the system.
type TurnResponse struct {
	Extractions []learning.Extraction `json:"extractions"`
	Failures    []FailedExtraction    `json:"failures,omitempty"`
}

// FailedExtraction describes one extraction whose persistence failed.
type FailedExtraction struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

// PreferencesResponse is the response body for GET .../preferences.
type PreferencesResponse struct {
	Learned map[string]string          `json:"learned"`
	Weights learning.PreferenceWeights `json:"weights"`
}

// TerminologyResponse is the response body for GET .../terminology.
type TerminologyResponse struct {
	Terminology map[string]string `json:"terminology"`
}

// UsageRequest is the request body for POST .../usage.
type UsageRequest struct {
	EventType string            `json:"event_type"`
	Details   map[string]string `json:"details,omitempty"`
}

// PatternsResponse is the response body for GET .../patterns.
type PatternsResponse struct {
	Patterns []usage.Pattern `json:"patterns"`
}

// InsightsResponse is the response body for GET .../insights.
type InsightsResponse struct {
	Insights []usage.Insight `json:"insights"`
}

// StatusResponse is a minimal acknowledgement body.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
