package learning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Blend constants shared by every Store implementation.
const (
	// TerminologyBlendStep is added to an existing entry's confidence on
	// each repeated explicit observation, capped at 1.0.
	TerminologyBlendStep = 0.1

	// SiblingDecay is subtracted from every non-observed value under a
	// reinforced preference category, floored at 0.
	SiblingDecay = 0.05

	// WeightCap bounds every preference weight.
	WeightCap = 1.0
)

// Store is the persistence collaborator for learned customer knowledge.
//
// Implementations must partition all state by customer ID and apply the
// confidence blends atomically per call: two concurrent reinforcements for
// the same customer may be ordered arbitrarily, but neither may be lost to
// an interleaved read-modify-write.
type Store interface {
	// UpsertTerminology inserts entry, or blends it into the existing
	// active entry for (entry.CustomerID, entry.Term): confidence becomes
	// min(existing+TerminologyBlendStep, 1.0) and the definition text is
	// overwritten (last-write-wins).
	UpsertTerminology(ctx context.Context, entry TerminologyEntry) error

	// ActiveTerminology returns all active entries for the customer.
	ActiveTerminology(ctx context.Context, customerID string) ([]TerminologyEntry, error)

	// ReinforcePreference raises the weight of value under category by
	// increment (capped at WeightCap) and decays every sibling value by
	// SiblingDecay (floored at 0).
	ReinforcePreference(ctx context.Context, customerID, category, value string, increment float64) error

	// Preferences returns the customer's full preference-weight map.
	Preferences(ctx context.Context, customerID string) (PreferenceWeights, error)

	// InsertCorrection appends a correction record. Corrections are never
	// blended or deduplicated.
	InsertCorrection(ctx context.Context, c Correction) error

	// AddProduct records a product the customer ships, ignoring duplicates.
	AddProduct(ctx context.Context, customerID, product string) error
}

// MemoryStore is an in-memory Store used by tests and by loadpilotd when no
// database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	terminology map[string][]TerminologyEntry // customerID -> entries
	preferences map[string]PreferenceWeights
	corrections map[string][]Correction
	products    map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		terminology: make(map[string][]TerminologyEntry),
		preferences: make(map[string]PreferenceWeights),
		corrections: make(map[string][]Correction),
		products:    make(map[string][]string),
	}
}

// UpsertTerminology inserts or blends a terminology entry.
func (s *MemoryStore) UpsertTerminology(ctx context.Context, entry TerminologyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.terminology[entry.CustomerID]
	for i := range entries {
		if entries[i].Term == entry.Term && entries[i].Active {
			blended := entries[i].Confidence + TerminologyBlendStep
			if blended > 1.0 {
				blended = 1.0
			}
			entries[i].Confidence = blended
			entries[i].Definition = entry.Definition
			entries[i].UpdatedAt = entry.UpdatedAt
			return nil
		}
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.Active = true
	s.terminology[entry.CustomerID] = append(entries, entry)
	return nil
}

// ActiveTerminology returns copies of all active entries for the customer.
func (s *MemoryStore) ActiveTerminology(ctx context.Context, customerID string) ([]TerminologyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TerminologyEntry
	for _, e := range s.terminology[customerID] {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReinforcePreference applies the reinforce/decay rule under the lock.
func (s *MemoryStore) ReinforcePreference(ctx context.Context, customerID, category, value string, increment float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	weights := s.preferences[customerID]
	if weights == nil {
		weights = make(PreferenceWeights)
		s.preferences[customerID] = weights
	}
	weights[category] = reinforce(weights[category], value, increment)
	return nil
}

// Preferences returns a deep copy of the customer's weight map.
func (s *MemoryStore) Preferences(ctx context.Context, customerID string) (PreferenceWeights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(PreferenceWeights, len(s.preferences[customerID]))
	for category, values := range s.preferences[customerID] {
		copied := make(map[string]float64, len(values))
		for v, w := range values {
			copied[v] = w
		}
		out[category] = copied
	}
	return out, nil
}

// InsertCorrection appends a correction record.
func (s *MemoryStore) InsertCorrection(ctx context.Context, c Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.corrections[c.CustomerID] = append(s.corrections[c.CustomerID], c)
	return nil
}

// Corrections returns copies of the customer's correction log.
func (s *MemoryStore) Corrections(customerID string) []Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Correction(nil), s.corrections[customerID]...)
}

// AddProduct records a product, ignoring duplicates.
func (s *MemoryStore) AddProduct(ctx context.Context, customerID, product string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products[customerID] {
		if p == product {
			return nil
		}
	}
	s.products[customerID] = append(s.products[customerID], product)
	return nil
}

// Products returns the customer's recorded products.
func (s *MemoryStore) Products(customerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.products[customerID]...)
}

// Reinforce applies the reinforce/decay rule to one category's weights and
// returns the updated map. Exported through reinforce for reuse by store
// implementations that compute the blend client-side inside a transaction.
func Reinforce(values map[string]float64, observed string, increment float64) map[string]float64 {
	return reinforce(values, observed, increment)
}

func reinforce(values map[string]float64, observed string, increment float64) map[string]float64 {
	if values == nil {
		values = make(map[string]float64)
	}
	for v := range values {
		if v == observed {
			continue
		}
		decayed := values[v] - SiblingDecay
		if decayed < 0 {
			decayed = 0
		}
		values[v] = decayed
	}
	raised := values[observed] + increment
	if raised > WeightCap {
		raised = WeightCap
	}
	values[observed] = raised
	return values
}
