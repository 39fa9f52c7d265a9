package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/cache"
	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/internal/domain/workorder"
)

type fakeOrderReader struct {
	getByID func(ctx context.Context, id int64) (*entity.WorkOrder, error)
}

func (f *fakeOrderReader) GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error) {
	return f.getByID(ctx, id)
}

type fakePersister struct {
	applied []workorder.Status
	err     error
}

func (f *fakePersister) ApplyStatus(_ context.Context, _ *entity.WorkOrder, to workorder.Status, _ time.Time, _ int64) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, to)
	return nil
}

type fakeAssignmentReader struct {
	total    int
	complete int
	err      error
}

func (f *fakeAssignmentReader) CompletionStatus(context.Context, int64) (int, int, error) {
	return f.total, f.complete, f.err
}

type recordingNotifier struct {
	assigned  []int64
	completed []int64
}

func (r *recordingNotifier) WorkOrderAssigned(_ context.Context, o *entity.WorkOrder) {
	r.assigned = append(r.assigned, o.ID)
}

func (r *recordingNotifier) WorkOrderCompleted(_ context.Context, o *entity.WorkOrder) {
	r.completed = append(r.completed, o.ID)
}

func staticReader(orders map[int64]*entity.WorkOrder) *fakeOrderReader {
	return &fakeOrderReader{getByID: func(_ context.Context, id int64) (*entity.WorkOrder, error) {
		o, ok := orders[id]
		if !ok {
			return nil, nil
		}
		c := *o
		return &c, nil
	}}
}

func newTestEngine(reader OrderReader, persister StatusPersister, notifier EventNotifier) (*Engine, *cache.WorkOrderStore) {
	store := cache.NewWorkOrderStore()
	engine := NewEngine(reader, &fakeAssignmentReader{}, persister, store, notifier, zap.NewNop())
	return engine, store
}

func TestEngine_Transition_Success(t *testing.T) {
	order := &entity.WorkOrder{ID: 1, Number: "WO-2026-00001", Status: "received", OrganizationID: 10, Active: true}
	persister := &fakePersister{}
	engine, store := newTestEngine(staticReader(map[int64]*entity.WorkOrder{1: order}), persister, nil)
	store.Put(order)

	updated, err := engine.Transition(context.Background(), 1, workorder.StatusAssigned, 7)
	require.NoError(t, err)
	assert.Equal(t, "assigned", updated.Status)
	assert.False(t, updated.UpdatedAt.IsZero())
	assert.Equal(t, []workorder.Status{workorder.StatusAssigned}, persister.applied)

	cached, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "assigned", cached.Status)
}

func TestEngine_Transition_NotFound(t *testing.T) {
	engine, _ := newTestEngine(staticReader(nil), &fakePersister{}, nil)

	_, err := engine.Transition(context.Background(), 42, workorder.StatusAssigned, 7)
	assert.ErrorIs(t, err, ErrWorkOrderNotFound)
}

func TestEngine_Transition_FetchFailureIsGeneric(t *testing.T) {
	reader := &fakeOrderReader{getByID: func(context.Context, int64) (*entity.WorkOrder, error) {
		return nil, errors.New("database is locked")
	}}
	engine, _ := newTestEngine(reader, &fakePersister{}, nil)

	_, err := engine.Transition(context.Background(), 1, workorder.StatusAssigned, 7)
	assert.ErrorIs(t, err, ErrTransitionFailed)
}

func TestEngine_Transition_GuardErrorReturnedVerbatim(t *testing.T) {
	order := &entity.WorkOrder{ID: 1, Status: "estimate_needed"}
	persister := &fakePersister{}
	engine, store := newTestEngine(staticReader(map[int64]*entity.WorkOrder{1: order}), persister, nil)
	store.Put(order)

	_, err := engine.Transition(context.Background(), 1, workorder.StatusInProgress, 7)

	var guardErr *workorder.ValidationError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, "Estimate must be submitted first", guardErr.Message)

	// Guard failures never touch the cache or the persister
	assert.Empty(t, persister.applied)
	cached, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "estimate_needed", cached.Status)
}

func TestEngine_Transition_PersistFailureRollsBackCache(t *testing.T) {
	order := &entity.WorkOrder{ID: 1, Number: "WO-2026-00001", Status: "received", OrganizationID: 10}
	persister := &fakePersister{err: errors.New("constraint violated")}
	engine, store := newTestEngine(staticReader(map[int64]*entity.WorkOrder{1: order}), persister, nil)
	store.Put(order)

	_, err := engine.Transition(context.Background(), 1, workorder.StatusAssigned, 7)
	assert.ErrorIs(t, err, ErrTransitionFailed)

	// Every derived view is back to its pre-mutation state
	cached, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "received", cached.Status)
	assert.Equal(t, "received", store.List()[0].Status)
	assert.Equal(t, "received", store.ListByOrganization(10)[0].Status)
}

func TestEngine_Transition_EmitsLifecycleEvents(t *testing.T) {
	orders := map[int64]*entity.WorkOrder{
		1: {ID: 1, Status: "received"},
		2: {ID: 2, Status: "in_progress"},
		3: {ID: 3, Status: "received"},
	}
	notifier := &recordingNotifier{}
	engine, _ := newTestEngine(staticReader(orders), &fakePersister{}, notifier)

	_, err := engine.Transition(context.Background(), 1, workorder.StatusAssigned, 7)
	require.NoError(t, err)
	_, err = engine.Transition(context.Background(), 2, workorder.StatusCompleted, 7)
	require.NoError(t, err)
	_, err = engine.Transition(context.Background(), 3, workorder.StatusEstimateNeeded, 7)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, notifier.assigned)
	assert.Equal(t, []int64{2}, notifier.completed)
}

func TestEngine_TransitionMany_PerOrderResults(t *testing.T) {
	orders := map[int64]*entity.WorkOrder{
		1: {ID: 1, Status: "received"},
		2: {ID: 2, Status: "completed"}, // terminal, guard rejects
	}
	engine, _ := newTestEngine(staticReader(orders), &fakePersister{}, nil)

	results := engine.TransitionMany(context.Background(), []int64{1, 2, 3}, workorder.StatusAssigned, 7)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.Empty(t, results[0].Error)

	assert.False(t, results[1].OK)
	assert.NotEmpty(t, results[1].Error)

	assert.False(t, results[2].OK)
	assert.Equal(t, ErrWorkOrderNotFound.Error(), results[2].Error)
}

func TestEngine_CheckAssignmentCompletion(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		complete int
		eligible bool
	}{
		{"all complete", 3, 3, true},
		{"partially complete", 3, 2, false},
		{"no assignments", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewWorkOrderStore()
			engine := NewEngine(staticReader(nil), &fakeAssignmentReader{total: tt.total, complete: tt.complete}, &fakePersister{}, store, nil, zap.NewNop())

			total, complete, eligible, err := engine.CheckAssignmentCompletion(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			assert.Equal(t, tt.complete, complete)
			assert.Equal(t, tt.eligible, eligible)
		})
	}
}

func TestEngine_CheckAssignmentCompletion_Error(t *testing.T) {
	store := cache.NewWorkOrderStore()
	engine := NewEngine(staticReader(nil), &fakeAssignmentReader{err: errors.New("query failed")}, &fakePersister{}, store, nil, zap.NewNop())

	_, _, _, err := engine.CheckAssignmentCompletion(context.Background(), 1)
	assert.Error(t, err)
}
