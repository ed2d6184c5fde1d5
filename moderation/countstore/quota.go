package countstore

import (
	"context"
	"fmt"

	"github.com/veilcampus/warden/moderation/errs"
)

// Quota caps how many times a key may consume a counter within one period. A Limit of zero or
// less disables the quota.
type Quota struct {
	Store  CountStore
	Name   string
	Period string
	Limit  int
}

// Check returns errs.ErrQuotaExceeded when val has already used its allowance for the current
// period. It does not consume anything.
func (q *Quota) Check(ctx context.Context, val string) error {
	if q == nil || q.Limit <= 0 {
		return nil
	}
	n, err := q.Store.GetCount(ctx, q.Name, val, q.Period)
	if err != nil {
		return fmt.Errorf("reading %s quota: %w", q.Name, err)
	}
	if n >= q.Limit {
		return fmt.Errorf("%w: %s limit of %d per %s reached", errs.ErrQuotaExceeded, q.Name, q.Limit, q.Period)
	}
	return nil
}

// Reserve consumes one use for val, or returns errs.ErrQuotaExceeded and consumes nothing.
// Concurrent callers sharing a store can never reserve more than Limit in one period.
func (q *Quota) Reserve(ctx context.Context, val string) error {
	if q == nil || q.Limit <= 0 {
		return nil
	}
	ok, err := q.Store.IncrementCapped(ctx, q.Name, val, q.Period, q.Limit)
	if err != nil {
		return fmt.Errorf("reserving %s quota: %w", q.Name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s limit of %d per %s reached", errs.ErrQuotaExceeded, q.Name, q.Limit, q.Period)
	}
	return nil
}

// Remaining is the allowance left for val in the current period; -1 when unlimited.
func (q *Quota) Remaining(ctx context.Context, val string) (int, error) {
	if q == nil || q.Limit <= 0 {
		return -1, nil
	}
	n, err := q.Store.GetCount(ctx, q.Name, val, q.Period)
	if err != nil {
		return 0, err
	}
	return max(q.Limit-n, 0), nil
}
