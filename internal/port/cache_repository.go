package port

import "context"

type IdempotencyRepository interface {
	// Reserve claims a key for idempotency check, returns false if already claimed
	Reserve(ctx context.Context, key string) (bool, error)

	// Complete marks a claimed key as satisfied by the given ledger entry
	Complete(ctx context.Context, key string, transactionID int64) error

	// Release frees a claimed key that has not completed (for retry after a failed request)
	Release(ctx context.Context, key string) error
}
