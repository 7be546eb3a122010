package models

import (
	"math"
	"strings"
)

// Normalize returns v scaled to unit L2 norm. The input is not modified.
// Zero-norm and non-finite vectors return ErrDegenerateVector so NaN never
// reaches a table.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}

	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrDegenerateVector
	}

	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out, nil
}

// controlTokens are emitted by seq2seq caption models around the text.
var controlTokens = []string{"<pad>", "<s>", "</s>", "<unk>"}

// CleanCaption strips padding and control tokens, plus an echoed task
// prompt, from raw model output and trims surrounding whitespace.
func CleanCaption(raw, prompt string) string {
	out := raw
	for _, tok := range controlTokens {
		out = strings.ReplaceAll(out, tok, "")
	}
	if prompt != "" {
		out = strings.ReplaceAll(out, prompt, "")
	}
	return strings.TrimSpace(out)
}
