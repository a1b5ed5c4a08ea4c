package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Jon Smith", "John Smith", 0.9},
		{"abcde", "abcdx", 0.8},
		{"abcd", "abcx", 0.75},
		{"  MARIA  ", "maria", 1.0},
		{"", "maria", 0},
		{"maria", "   ", 0},
		{"Zoë", "Zoe", 2.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Similarity(tt.a, tt.b))
		})
	}
}

func TestSimilarity_ThresholdIsInclusive(t *testing.T) {
	assert.GreaterOrEqual(t, Similarity("abcde", "abcdx"), NameThreshold)
	assert.Less(t, Similarity("abcd", "abcx"), NameThreshold)
}
