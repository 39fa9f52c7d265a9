// Package workflow orchestrates authoritative work order status changes:
// guard validation against a freshly fetched row, a transactional status
// write with an audit trail, and optimistic cache maintenance with uniform
// rollback on persistence failure.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/cache"
	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/internal/domain/workorder"
	"go.uber.org/zap"
)

var (
	// ErrWorkOrderNotFound is returned when the work order does not exist
	ErrWorkOrderNotFound = errors.New("work order not found")

	// ErrTransitionFailed is the generic persistence failure surfaced to
	// users; the underlying cause is logged, never shown verbatim
	ErrTransitionFailed = errors.New("status change failed, please try again")
)

// OrderReader fetches fresh work order rows before guard evaluation
type OrderReader interface {
	GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error)
}

// StatusPersister applies a validated status change atomically
type StatusPersister interface {
	ApplyStatus(ctx context.Context, order *entity.WorkOrder, to workorder.Status, updatedAt time.Time, actorID int64) error
}

// AssignmentReader reports assignment completion for a work order
type AssignmentReader interface {
	CompletionStatus(ctx context.Context, workOrderID int64) (total, complete int, err error)
}

// EventNotifier emits notification events for lifecycle milestones.
// Notification failures are logged, never surfaced.
type EventNotifier interface {
	WorkOrderAssigned(ctx context.Context, order *entity.WorkOrder)
	WorkOrderCompleted(ctx context.Context, order *entity.WorkOrder)
}

// BulkResult is the per-order outcome of a bulk transition
type BulkResult struct {
	WorkOrderID int64  `json:"work_order_id"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// Engine is the work order status transition manager
type Engine struct {
	orders      OrderReader
	assignments AssignmentReader
	persister   StatusPersister
	store       *cache.WorkOrderStore
	machine     workorder.Machine
	notifier    EventNotifier
	logger      *zap.Logger
}

// NewEngine creates a new transition engine
func NewEngine(
	orders OrderReader,
	assignments AssignmentReader,
	persister StatusPersister,
	store *cache.WorkOrderStore,
	notifier EventNotifier,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		orders:      orders,
		assignments: assignments,
		persister:   persister,
		store:       store,
		machine:     workorder.NewLifecycleMachine(),
		notifier:    notifier,
		logger:      logger,
	}
}

// Transition moves a work order to the target status. Guard failures are
// returned verbatim as *workorder.ValidationError; persistence failures roll
// the cache back to its pre-mutation snapshot and return ErrTransitionFailed.
func (e *Engine) Transition(ctx context.Context, id int64, target workorder.Status, actorID int64) (*entity.WorkOrder, error) {
	// Guard checks always run against a freshly fetched row
	order, err := e.orders.GetByID(ctx, id)
	if err != nil {
		e.logger.Error("Failed to fetch work order for transition", zap.Int64("id", id), zap.Error(err))
		return nil, ErrTransitionFailed
	}
	if order == nil {
		return nil, ErrWorkOrderNotFound
	}

	if err := workorder.ValidateTransition(e.machine, order, target); err != nil {
		return nil, err
	}

	updatedAt := time.Now().UTC()
	updated := *order
	updated.Status = string(target)
	updated.UpdatedAt = updatedAt

	// Optimistic patch: every derived view reflects the change immediately
	snapshot := e.store.Snapshot()
	e.store.PatchStatus(&updated)

	if err := e.persister.ApplyStatus(ctx, order, target, updatedAt, actorID); err != nil {
		e.store.Restore(snapshot)
		e.logger.Error("Status transition persistence failed",
			zap.Int64("id", id),
			zap.String("from", order.Status),
			zap.String("to", string(target)),
			zap.Error(err))
		return nil, ErrTransitionFailed
	}

	e.logger.Info("Work order status changed",
		zap.Int64("id", id),
		zap.String("number", order.Number),
		zap.String("from", order.Status),
		zap.String("to", string(target)))

	e.emit(ctx, &updated, target)

	return &updated, nil
}

// TransitionMany applies the same target status to several work orders,
// validating each independently. There is no hidden partial failure: every
// order gets its own result.
func (e *Engine) TransitionMany(ctx context.Context, ids []int64, target workorder.Status, actorID int64) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		_, err := e.Transition(ctx, id, target, actorID)
		res := BulkResult{WorkOrderID: id, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// CheckAssignmentCompletion reports whether all assignments on the work
// order have completed reports, making it eligible for the completed status.
// A work order with no assignments is not eligible.
func (e *Engine) CheckAssignmentCompletion(ctx context.Context, id int64) (total, complete int, eligible bool, err error) {
	total, complete, err = e.assignments.CompletionStatus(ctx, id)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to check assignment completion: %w", err)
	}
	return total, complete, total > 0 && complete == total, nil
}

func (e *Engine) emit(ctx context.Context, order *entity.WorkOrder, target workorder.Status) {
	if e.notifier == nil {
		return
	}

	switch target {
	case workorder.StatusAssigned:
		e.notifier.WorkOrderAssigned(ctx, order)
	case workorder.StatusCompleted:
		e.notifier.WorkOrderCompleted(ctx, order)
	}
}
