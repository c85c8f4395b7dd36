// Package vecmath provides the small vector operations shared by the
// retrieval reranker and the comparison engine.
package vecmath

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

// CosineDistance is 1 - CosineSimilarity. Range [0, 2] in theory,
// practically [0, 1] for natural-language embeddings.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}
