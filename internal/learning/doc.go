// Package learning extracts durable customer knowledge from conversation
// turns with the LoadPilot assistant.
//
// A small battery of rule-based matchers scans each user message for
// terminology definitions ("when I say hot load, I mean ..."), stated
// preferences (chart type, sort order, date range), corrections, and
// product mentions. The Engine runs the matchers over a turn, persists
// every extraction through a Store, and reports what it learned.
//
// Persistence is best-effort: a storage failure for one
// extraction is recorded in the TurnResult and never interrupts the
// conversation or the remaining extractions. Confidence blending
// (terminology reinforcement, preference reinforce/decay) happens
// atomically inside the Store so concurrent turns cannot interleave a
// read-modify-write.
package learning
