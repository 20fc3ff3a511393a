package domain

import "math"

// Cosine returns the cosine similarity of two vectors:
// dot(a, b) / (‖a‖·‖b‖). If either vector has zero norm (or the
// dimensions differ), the similarity is defined as 0 rather than
// raising a division-by-zero condition.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeL2 scales v to unit L2 norm in place and returns it.
// A zero vector is returned unchanged. After normalization a plain
// dot product between two vectors equals their cosine similarity.
func NormalizeL2(v []float32) []float32 {
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
