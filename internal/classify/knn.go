package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"screendiff/internal/element"
)

// defaultNeighbors is the k used by Model.Predict.
const defaultNeighbors = 5

// Sample is one labeled feature vector in a training set.
type Sample struct {
	Features []float64    `json:"features"`
	Type     element.Type `json:"type"`
}

// Model is a distance-weighted nearest-neighbour classifier over the
// visual feature vectors. It trains by accumulating labeled samples;
// prediction weighs the k closest by inverse distance.
type Model struct {
	Samples   []Sample `json:"samples"`
	Neighbors int      `json:"neighbors"`

	// featureScale holds per-feature normalization factors derived from
	// the training data, rebuilt on load and on every Add.
	featureScale []float64
}

// NewModel returns an empty model with the default neighbour count.
func NewModel() *Model {
	return &Model{Neighbors: defaultNeighbors}
}

// Trained reports whether the model has enough samples to predict.
func (m *Model) Trained() bool {
	return m != nil && len(m.Samples) >= m.k()
}

func (m *Model) k() int {
	if m.Neighbors > 0 {
		return m.Neighbors
	}
	return defaultNeighbors
}

// Add appends a labeled sample. Vectors of the wrong length are
// rejected so a malformed training file cannot poison prediction.
func (m *Model) Add(features []float64, t element.Type) error {
	if len(features) != FeatureCount {
		return fmt.Errorf("feature vector length %d, want %d", len(features), FeatureCount)
	}
	if t == element.TypeUnknown || t == "" {
		return fmt.Errorf("refusing to train on type %q", t)
	}
	m.Samples = append(m.Samples, Sample{Features: features, Type: t})
	m.rescale()
	return nil
}

// Predict returns the most likely type for a feature vector and the
// weighted vote share backing it. An untrained model predicts unknown
// with zero confidence.
func (m *Model) Predict(features []float64) (element.Type, float64) {
	if !m.Trained() || len(features) != FeatureCount {
		return element.TypeUnknown, 0
	}

	type neighbor struct {
		dist float64
		t    element.Type
	}
	neighbors := make([]neighbor, len(m.Samples))
	for i, s := range m.Samples {
		neighbors[i] = neighbor{dist: m.distance(features, s.Features), t: s.Type}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })

	k := m.k()
	if k > len(neighbors) {
		k = len(neighbors)
	}

	votes := make(map[element.Type]float64)
	total := 0.0
	for _, n := range neighbors[:k] {
		w := 1.0 / (n.dist + 1e-6)
		votes[n.t] += w
		total += w
	}

	best := element.TypeUnknown
	bestVote := 0.0
	for t, v := range votes {
		if v > bestVote {
			best = t
			bestVote = v
		}
	}
	if total == 0 {
		return element.TypeUnknown, 0
	}
	return best, bestVote / total
}

// distance is Euclidean over scale-normalized features, so large-valued
// features like area do not dominate the histogram bins.
func (m *Model) distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		scale := 1.0
		if i < len(m.featureScale) && m.featureScale[i] > 0 {
			scale = m.featureScale[i]
		}
		d := (a[i] - b[i]) / scale
		sum += d * d
	}
	return math.Sqrt(sum)
}

// rescale recomputes per-feature ranges from the training samples.
func (m *Model) rescale() {
	if len(m.Samples) == 0 {
		m.featureScale = nil
		return
	}
	lo := make([]float64, FeatureCount)
	hi := make([]float64, FeatureCount)
	copy(lo, m.Samples[0].Features)
	copy(hi, m.Samples[0].Features)
	for _, s := range m.Samples[1:] {
		for i, f := range s.Features {
			lo[i] = math.Min(lo[i], f)
			hi[i] = math.Max(hi[i], f)
		}
	}
	m.featureScale = make([]float64, FeatureCount)
	for i := range m.featureScale {
		m.featureScale[i] = hi[i] - lo[i]
	}
}

// Save writes the model as JSON.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model %s: %w", path, err)
	}
	return nil
}

// LoadModel reads a model written by Save.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	for i, s := range m.Samples {
		if len(s.Features) != FeatureCount {
			return nil, fmt.Errorf("model %s: sample %d has %d features, want %d",
				path, i, len(s.Features), FeatureCount)
		}
	}
	if m.Neighbors <= 0 {
		m.Neighbors = defaultNeighbors
	}
	m.rescale()
	return &m, nil
}
