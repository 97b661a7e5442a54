package learning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Confidence assigned by each matcher family. Explicit statements score
// highest, behavioral inference lowest; corrections beat everything because
// the customer went out of their way to fix us.
const (
	terminologyConfidence   = 0.9
	preferenceConfidence    = 0.8
	implicitChartConfidence = 0.5
	correctionConfidence    = 0.95
	productConfidence       = 0.7
)

// ToolAddReportSection is the assistant tool whose use signals that the
// customer is actively building a report. Seeing it alongside a chart
// keyword allows an implicit chart_type inference.
const ToolAddReportSection = "add_report_section"

// terminologyPatterns capture (term, definition) pairs. All patterns use
// bounded character classes instead of .+? to keep matching linear on
// pathological input.
var terminologyPatterns = []*regexp.Regexp{
	// "when I say X, I mean Y"
	regexp.MustCompile(`(?i)\bwhen\s+(?:i|we)\s+say\s+["']?([^"',]{1,80}?)["']?,?\s+(?:i|we)\s+mean\s+([^.!?]{1,200})`),
	// "X means Y"
	regexp.MustCompile(`(?i)\b["']?([\w][\w\s-]{1,60}?)["']?\s+means\s+([^.!?]{1,200})`),
	// `we call "X" Y` - the term must be quoted, otherwise the split
	// between term and definition is ambiguous
	regexp.MustCompile(`(?i)\bwe\s+call\s+["']([^"']{1,80})["']\s+(?:a\s+|an\s+|the\s+)?([^.!?]{1,200})`),
	// "ABBR stands for Y"
	regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\s+[Ss]tands\s+[Ff]or\s+([^.!?]{1,200})`),
	// "ABBR = Y"
	regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\s*=\s*([^.!?\n]{1,200})`),
}

// preferenceMatchers is a priority-ordered rule set keyed by preference
// category. Every matching pattern contributes an extraction; deduplication
// happens later via the upsert.
var preferenceMatchers = []struct {
	category string
	patterns []*regexp.Regexp
}{
	{
		category: "chart_type",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:prefer|like|love|want|always\s+use|use)\s+(?:a\s+|an\s+)?(\w+)\s+charts?\b`),
			regexp.MustCompile(`(?i)\bshow\s+(?:it|this|that|them|everything)?\s*as\s+(?:a\s+|an\s+)?(\w+)\s+chart\b`),
		},
	},
	{
		category: "sort_order",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bsort(?:ed)?\s+(?:it\s+|them\s+)?(?:by\s+\w+\s+)?(?:in\s+)?(descending|ascending|desc|asc)\b`),
			regexp.MustCompile(`(?i)\b(highest|largest|biggest|lowest|smallest)\s+(?:first|to\s+(?:lowest|highest|smallest|largest))\b`),
		},
	},
	{
		category: "date_range",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b((?:last|past|previous)\s+\d+\s+(?:days?|weeks?|months?|quarters?|years?))\b`),
			regexp.MustCompile(`(?i)\b(year\s+to\s+date|ytd|month\s+to\s+date|mtd|this\s+quarter|last\s+quarter|this\s+month|this\s+year)\b`),
		},
	},
}

// implicitChartPattern spots a bare chart-type keyword near the word
// "chart", used for behavioral inference when the customer is adding
// report sections.
var implicitChartPattern = regexp.MustCompile(`(?i)\b(bar|line|pie|area|treemap)\b[^.!?]{0,20}?\bcharts?\b`)

// correctionPatterns capture what the customer says a value should be.
// The first two are anchored to the start of the message so a mid-sentence
// "actually" does not double-fire with the "no, it's actually" form.
var correctionPatterns = []*regexp.Regexp{
	// "No, it's actually supposed to be X"
	regexp.MustCompile(`(?i)^\s*(?:no|nope|wrong)\b[,.!]?\s*(?:that's|that\s+is|it(?:'s|\s+is))\s+(?:actually\s+)?(?:supposed\s+to\s+be\s+)?([^.!?]{1,200})`),
	// "Actually, X" / "Correction: X"
	regexp.MustCompile(`(?i)^\s*(?:actually|correction)[,:.]?\s+([^.!?]{1,200})`),
	// "you said X but it should be Y"
	regexp.MustCompile(`(?i)\byou\s+said\s+([^.!?]{1,120}?),?\s+but\s+(?:it\s+)?(?:should|needs\s+to)\s+be\s+([^.!?]{1,200})`),
}

// productPatterns infer what the customer ships from passing mentions.
var productPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:we|our\s+company)\s+(?:ship|haul|move|transport|carry)\s+(?:a\s+lot\s+of\s+|mostly\s+|mainly\s+)?([^.!?]{1,120})`),
	regexp.MustCompile(`(?i)\bour\s+([a-z][a-z\s-]{2,40}?)\s+(?:loads|shipments|freight)\b`),
}

// MatchTerminology scans a message for term definitions. Every pattern that
// fires contributes an extraction; the persistence upsert collapses
// duplicates for the same term.
func MatchTerminology(message string) []Extraction {
	var out []Extraction
	for _, re := range terminologyPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		value := trimClause(m[2])
		if key == "" || value == "" {
			continue
		}
		out = append(out, Extraction{
			Type:       ExtractionTerminology,
			Key:        key,
			Value:      value,
			Confidence: terminologyConfidence,
			Source:     SourceExplicit,
			Context:    message,
		})
	}
	return out
}

// MatchPreferences scans a message, and the tools the assistant used during
// the turn, for stated or implied preferences. Captured values are passed
// through NormalizePreference before they become extraction values.
func MatchPreferences(message string, toolsUsed []string) []Extraction {
	var out []Extraction
	for _, rule := range preferenceMatchers {
		for _, re := range rule.patterns {
			m := re.FindStringSubmatch(message)
			if m == nil {
				continue
			}
			value := NormalizePreference(rule.category, m[1])
			if value == "" {
				continue
			}
			out = append(out, Extraction{
				Type:       ExtractionPreference,
				Key:        rule.category,
				Value:      value,
				Confidence: preferenceConfidence,
				Source:     SourceExplicit,
				Context:    message,
			})
		}
	}

	// Behavioral inference: a chart keyword near "chart" while the customer
	// is adding report sections counts as a weak chart_type observation.
	if containsTool(toolsUsed, ToolAddReportSection) {
		if m := implicitChartPattern.FindStringSubmatch(message); m != nil {
			out = append(out, Extraction{
				Type:       ExtractionPreference,
				Key:        "chart_type",
				Value:      NormalizePreference("chart_type", m[1]),
				Confidence: implicitChartConfidence,
				Source:     SourceImplicit,
				Context:    message,
			})
		}
	}
	return out
}

// MatchCorrections scans a message for the customer correcting the
// assistant. The extraction value is a JSON-encoded CorrectionPayload;
// CorrectedText falls back to OriginalText when the pattern captured no
// explicit replacement. now is injected so correction keys and payload
// timestamps are deterministic under test.
func MatchCorrections(message string, now time.Time) []Extraction {
	var out []Extraction
	for _, re := range correctionPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		payload := CorrectionPayload{
			OriginalText: trimClause(m[1]),
			Timestamp:    now,
		}
		if len(m) > 2 && trimClause(m[2]) != "" {
			payload.CorrectedText = trimClause(m[2])
		} else {
			payload.CorrectedText = payload.OriginalText
		}
		if payload.OriginalText == "" {
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		out = append(out, Extraction{
			Type:       ExtractionCorrection,
			Key:        fmt.Sprintf("correction_%d", now.UnixMilli()),
			Value:      string(raw),
			Confidence: correctionConfidence,
			Source:     SourceCorrection,
			Context:    message,
		})
	}
	return out
}

// MatchProducts infers products the customer ships from passing mentions.
func MatchProducts(message string) []Extraction {
	var out []Extraction
	for _, re := range productPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		product := strings.ToLower(trimClause(m[1]))
		if product == "" {
			continue
		}
		out = append(out, Extraction{
			Type:       ExtractionProduct,
			Key:        product,
			Value:      product,
			Confidence: productConfidence,
			Source:     SourceImplicit,
			Context:    message,
		})
	}
	return out
}

// NormalizePreference maps a raw captured value onto its canonical stored
// form. Rules are deterministic case-insensitive substring tests, first
// match wins.
func NormalizePreference(category, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch category {
	case "chart_type":
		for _, kind := range []string{"bar", "line", "pie", "area", "table"} {
			if strings.Contains(v, kind) {
				return kind
			}
		}
		return v
	case "sort_order":
		if strings.Contains(v, "desc") || strings.Contains(v, "high") || strings.Contains(v, "largest") {
			return "descending"
		}
		return "ascending"
	default:
		return v
	}
}

// trimClause strips surrounding whitespace, quotes, and trailing sentence
// punctuation from a captured clause.
func trimClause(s string) string {
	return strings.Trim(strings.TrimSpace(s), ` .,:;!?"'`)
}

func containsTool(tools []string, name string) bool {
	for _, t := range tools {
		if t == name {
			return true
		}
	}
	return false
}
