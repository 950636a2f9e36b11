package idempotency

import (
	"context"
	"errors"
)

// ErrClaimHeld means another request is confirming the same order reference.
var ErrClaimHeld = errors.New("confirmation already in progress")

// ClaimStore guards an order reference while its confirmation is in flight.
// Claim returns a token that must be passed to Release.
type ClaimStore interface {
	Claim(ctx context.Context, orderReference string) (string, error)
	Release(ctx context.Context, orderReference, token string) error
}

// NoopClaimStore always grants the claim. Used when Redis is not configured;
// the orders unique index still prevents duplicate rows.
type NoopClaimStore struct{}

func (NoopClaimStore) Claim(ctx context.Context, orderReference string) (string, error) {
	return "", nil
}

func (NoopClaimStore) Release(ctx context.Context, orderReference, token string) error {
	return nil
}
