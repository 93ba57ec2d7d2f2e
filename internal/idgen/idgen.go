// Package idgen produces short department-prefixed identifiers such as FIN-4821.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

const (
	minSuffix = 1000
	maxSuffix = 9999

	// MaxAttempts bounds the collision-checked draw in Unique.
	MaxAttempts = 32
)

// ErrExhausted is returned when no free identifier was found within MaxAttempts draws.
var ErrExhausted = errors.New("idgen: no free identifier found")

// ExistsFunc reports whether id is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Generate returns "{prefix}-{n}" with n drawn uniformly from [1000, 9999].
func Generate(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, minSuffix+rand.Intn(maxSuffix-minSuffix+1))
}

// Unique draws identifiers until exists reports one as free.
func Unique(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id := Generate(prefix)
		taken, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w for prefix %s", ErrExhausted, prefix)
}
