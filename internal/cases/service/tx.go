package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
)

// CaseTx serialises read-modify-write cycles on one case.
type CaseTx interface {
	RunInTx(ctx context.Context, caseID domain.CaseID, fn func(ctx context.Context) error) error
}

const (
	numCaseShards       = 64
	defaultCaseTxTimout = 5 * time.Second
)

// ShardedTx is the in-memory CaseTx: one mutex per shard of case ids.
type ShardedTx struct {
	shards  [numCaseShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultCaseTxTimout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, caseID domain.CaseID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	mu := &t.shards[shardFor(caseID)]
	mu.Lock()
	defer mu.Unlock()

	// Re-check after waiting for the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func shardFor(id domain.CaseID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id.String()))
	return int(h.Sum32() % numCaseShards)
}

// Runner is a SQL transaction runner such as postgres.Transactor.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTx adapts a Runner; row locks taken by FindForUpdate do the serialising.
type SQLTx struct {
	runner Runner
}

func NewSQLTx(runner Runner) *SQLTx {
	return &SQLTx{runner: runner}
}

func (t *SQLTx) RunInTx(ctx context.Context, _ domain.CaseID, fn func(ctx context.Context) error) error {
	return t.runner.RunInTx(ctx, fn)
}
