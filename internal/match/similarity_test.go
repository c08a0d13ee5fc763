package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
		max  float64
	}{
		{name: "identical after folding", a: "Müller GmbH", b: "MUELLER GMBH", min: 1.0, max: 1.0},
		{name: "full containment", a: "PayPal", b: "PAYPAL EUROPE SARL", min: 0.79, max: 0.81},
		{name: "partial overlap stays below containment", a: "Amazon EU SARL", b: "AMAZON.DE", min: 0.1, max: 0.5},
		{name: "unrelated", a: "Netflix", b: "Sparkasse", min: 0.0, max: 0.1},
		{name: "empty input", a: "", b: "anything", min: 0.0, max: 0.0},
		{name: "short containment ignored", a: "AG", b: "Hamburger AG", min: 0.0, max: 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, sim, tt.min)
			assert.LessOrEqual(t, sim, tt.max)
			assert.InDelta(t, sim, Similarity(tt.b, tt.a), 1e-9, "similarity is symmetric")
		})
	}
}
