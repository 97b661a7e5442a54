// Package usage records discrete customer usage events and derives simple
// frequency-based insights from them.
//
// The Tracker appends one event per action (report generated, question
// asked, section added) with the hour-of-day and day-of-week at record
// time, then analyzes the last 30 days of events with fixed repetition
// thresholds: enough occurrences to be a habit, not noise. There is no
// statistical significance testing and no predictive modeling.
package usage
