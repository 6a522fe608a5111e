// Package store holds Registry implementations and the list rules they share.
package store

import (
	"fmt"

	"github.com/layer-3/keeper/core"
)

// Append returns tokens with token added at the end and the oldest entries
// removed so that at most limit remain. Neither input slice is modified.
func Append(tokens []string, token string, limit int) (next []string, evicted []string) {
	next = make([]string, 0, len(tokens)+1)
	next = append(next, tokens...)
	next = append(next, token)

	if over := len(next) - limit; over > 0 {
		evicted = append(evicted, next[:over]...)
		next = next[over:]
	}
	return next, evicted
}

// Remove returns tokens without the first entry equal to token
func Remove(tokens []string, token string) ([]string, bool) {
	return without(tokens, token)
}

func contains(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

// Contains reports whether token is in tokens
func Contains(tokens []string, token string) bool {
	return contains(tokens, token)
}

func without(tokens []string, token string) ([]string, bool) {
	for i, t := range tokens {
		if t == token {
			next := make([]string, 0, len(tokens)-1)
			next = append(next, tokens[:i]...)
			next = append(next, tokens[i+1:]...)
			return next, true
		}
	}
	return tokens, false
}

func wrapStorage(op string, err error) error {
	return fmt.Errorf("%w: registry %s: %w", core.ErrStorage, op, err)
}
