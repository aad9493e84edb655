package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

const tokenPrefixLength = 5

type sequenceStore interface {
	Next(ctx context.Context, department string) (int64, error)
}

// TokenAllocator mints department tokens from the durable sequence store.
type TokenAllocator struct {
	sequences sequenceStore
}

// NewTokenAllocator constructs the allocator.
func NewTokenAllocator(sequences sequenceStore) *TokenAllocator {
	return &TokenAllocator{sequences: sequences}
}

// Allocate advances the department counter and formats the resulting token.
// The counter is advanced before the caller persists anything, so a failure
// after this point skips a number; tokens stay unique and increasing.
func (a *TokenAllocator) Allocate(ctx context.Context, department string) (string, error) {
	next, err := a.sequences.Next(ctx, department)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "token allocation timed out")
		}
		return "", appErrors.Wrap(err, appErrors.ErrAllocation.Code, appErrors.ErrAllocation.Status, "failed to allocate token")
	}
	return FormatToken(department, next), nil
}

// FormatToken renders "<first 5 letters upper-cased>-<n padded to 3>".
// Numbers past 999 widen the suffix ("CARDI-1000"), so lexical order only
// matches allocation order up to three digits.
func FormatToken(department string, n int64) string {
	return fmt.Sprintf("%s-%03d", TokenPrefix(department), n)
}

// TokenPrefix returns the department code used in tokens.
func TokenPrefix(department string) string {
	prefix := department
	if utf8.RuneCountInString(prefix) > tokenPrefixLength {
		prefix = string([]rune(prefix)[:tokenPrefixLength])
	}
	return strings.ToUpper(prefix)
}
