package domain

import "context"

// TxRunner runs fn inside one storage transaction. Repositories called with
// the context passed to fn take part in that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
