package triage

import (
	"strings"
	"sync"
)

// HarmWeightTable maps topics to harm multipliers. Reads vastly outnumber
// writes (every scoring batch reads it, updates are occasional admin calls),
// so access follows a readers-writer discipline.
type HarmWeightTable struct {
	mu      sync.RWMutex
	weights map[string]float64
}

// NewHarmWeightTable creates a table seeded with the stock topic weights.
func NewHarmWeightTable() *HarmWeightTable {
	return &HarmWeightTable{
		weights: map[string]float64{
			"elections":  3.0,
			"health":     2.0,
			"safety":     2.0,
			"economy":    1.5,
			"reputation": 1.0,
			"meme":       0.5,
		},
	}
}

// Set stores a weight for a topic. Topics are lower-cased; last write wins.
func (t *HarmWeightTable) Set(topic string, weight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.weights[normalizeTopic(topic)] = weight
}

// Get resolves the harm weight for a topic. An explicit override wins over
// the table; an unknown or empty topic defaults to 1.0.
func (t *HarmWeightTable) Get(topic string, override *float64) float64 {
	if override != nil {
		return *override
	}
	if topic == "" {
		return 1.0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.weights[normalizeTopic(topic)]; ok {
		return w
	}
	return 1.0
}

// All returns a snapshot copy of the table.
func (t *HarmWeightTable) All() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]float64, len(t.weights))
	for topic, weight := range t.weights {
		out[topic] = weight
	}
	return out
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
