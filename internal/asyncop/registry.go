// Package asyncop implements the Async Operation Registry (SPEC_FULL.md
// §4.9): a process-local job supervisor for long-running retain,
// consolidation and mental-model-refresh work, backed by the
// async_operations table for durability of status/result but tracking
// in-flight goroutines (for cancellation) only in memory, mirroring the
// teacher's ratelimit package's mutex-guarded-map idiom.
package asyncop

import (
	"context"
	"sync"
	"time"

	"github.com/memoryengine/memoryengine/internal/errs"
	"github.com/memoryengine/memoryengine/internal/ids"
	"github.com/memoryengine/memoryengine/internal/logging"
	"github.com/memoryengine/memoryengine/internal/storage"
	"github.com/memoryengine/memoryengine/internal/telemetry"
)

var log = logging.GetLogger("asyncop")

// Job is the work a submitted operation runs. It should respect ctx
// cancellation and return a result-metadata map plus error.
type Job func(ctx context.Context) (map[string]any, error)

// inflight tracks the cancel function for one running job, so Cancel can
// reach it without a channel per job.
type inflight struct {
	cancel context.CancelFunc
}

// Registry submits, tracks and cancels async operations for one process.
type Registry struct {
	mu   sync.Mutex
	db   *storage.DB
	gen  *ids.Generator
	jobs map[string]*inflight
	tel  telemetry.Instrumentation
}

// New constructs a Registry.
func New(db *storage.DB, gen *ids.Generator) *Registry {
	return &Registry{db: db, gen: gen, jobs: map[string]*inflight{}, tel: telemetry.ForComponent("asyncop")}
}

// SubmitResult is what Submit returns: either a freshly created operation,
// or (when dedupeByBank short-circuits on an in-flight match) the existing
// one it deduplicated to.
type SubmitResult struct {
	OperationID  string
	Deduplicated bool
}

// Submit starts job in a new goroutine under a fresh operation id.
// metadata is persisted alongside the operation for later inspection via
// GetStatus/List. dedupeByBank is opt-in per SPEC_FULL.md §4.9: when true
// and bankID already has an operation of operationType pending or
// processing, Submit returns that operation's id with Deduplicated set
// instead of starting a second one; callers that want every submission to
// run independently just pass false.
func (r *Registry) Submit(ctx context.Context, bankID, operationType string, job Job, metadata map[string]any, dedupeByBank bool) (*SubmitResult, error) {
	spanCtx, span := r.tel.StartSpan(ctx, "asyncop.Submit")
	defer span.End()

	if dedupeByBank {
		existing, err := r.db.FindPendingOrProcessingByBankAndType(bankID, operationType)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &SubmitResult{OperationID: existing.OperationID, Deduplicated: true}, nil
		}
	}

	now := time.Now().UnixMilli()
	op := &storage.AsyncOperation{
		OperationID:   r.gen.New(),
		BankID:        bankID,
		OperationType: operationType,
		Status:        "pending",
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.db.InsertAsyncOperation(op); err != nil {
		return nil, err
	}
	r.tel.AddOperation(spanCtx, operationType)

	jobCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.jobs[op.OperationID] = &inflight{cancel: cancel}
	r.mu.Unlock()

	go r.run(jobCtx, op.OperationID, job)

	return &SubmitResult{OperationID: op.OperationID}, nil
}

func (r *Registry) run(ctx context.Context, operationID string, job Job) {
	defer func() {
		r.mu.Lock()
		delete(r.jobs, operationID)
		r.mu.Unlock()
	}()

	if err := r.db.UpdateAsyncOperationStatus(operationID, "processing", nil, "", time.Now().UnixMilli()); err != nil {
		log.Error("failed to mark operation processing", "operation_id", operationID, "error", err)
		return
	}

	result, err := job(ctx)
	now := time.Now().UnixMilli()
	if err != nil {
		msg := errs.Truncate(err.Error())
		if updErr := r.db.UpdateAsyncOperationStatus(operationID, "failed", nil, msg, now); updErr != nil {
			log.Error("failed to record operation failure", "operation_id", operationID, "error", updErr)
		}
		return
	}

	if updErr := r.db.UpdateAsyncOperationStatus(operationID, "completed", result, "", now); updErr != nil {
		log.Error("failed to record operation completion", "operation_id", operationID, "error", updErr)
	}
}

// Cancel requests cooperative cancellation of a running job, if any, and
// deletes the operation's durable row (SPEC_FULL.md §4.9: cancel(id)
// removes the operation rather than just flagging it). Cancelling a finished
// operation deletes its row all the same; cancelling an id with no row is a
// no-op, not an error.
func (r *Registry) Cancel(operationID string) error {
	r.mu.Lock()
	job, ok := r.jobs[operationID]
	delete(r.jobs, operationID)
	r.mu.Unlock()
	if ok {
		job.cancel()
	}

	if err := r.db.DeleteAsyncOperation(operationID); err != nil {
		if errs.Is(err, errs.NotFound) {
			return nil
		}
		return err
	}
	return nil
}

// GetStatus returns the durable row for operationID.
func (r *Registry) GetStatus(operationID string) (*storage.AsyncOperation, error) {
	return r.db.GetAsyncOperationByID(operationID)
}

// ListFilter narrows List (SPEC_FULL.md §4.9's list(bank_id, {status, limit, offset})).
type ListFilter struct {
	OperationType string
	Status        string
	Limit         int
	Offset        int
}

// List returns operations for a bank, optionally filtered by type and
// status, and paginated via limit/offset.
func (r *Registry) List(bankID string, filter ListFilter) ([]*storage.AsyncOperation, error) {
	return r.db.ListAsyncOperationsByBank(bankID, storage.AsyncOperationListFilter{
		OperationType: filter.OperationType,
		Status:        filter.Status,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
}
