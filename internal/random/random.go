// Package random wraps crypto/rand behind the two draws the rest of the
// server needs: a uniform index and an unbiased shuffle. Keeping entropy
// access here means role assignment and code generation share one failure
// path instead of each talking to the OS reader directly.
package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Index returns a uniform random integer in [0, n). rand.Int rejects
// out-of-range draws internally, so the result carries no modulo bias.
func Index(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random: index bound must be positive, got %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random: read entropy: %w", err)
	}
	return int(v.Int64()), nil
}

// Shuffle returns a new slice holding src's elements in uniformly random
// order (Fisher-Yates). src itself is never modified.
func Shuffle[T any](src []T) ([]T, error) {
	out := make([]T, len(src))
	copy(out, src)
	for i := len(out) - 1; i > 0; i-- {
		j, err := Index(i + 1)
		if err != nil {
			return nil, err
		}
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
