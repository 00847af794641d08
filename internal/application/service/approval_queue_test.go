package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crmkit/pipeline-engine/internal/domain/entity"
	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
)

func newTestQueue() (*ApprovalQueue, *mockApprovalStore) {
	store := newMockApprovalStore()
	return NewApprovalQueue(store, zap.NewNop()), store
}

func pendingEntry() *entity.ApprovalEntry {
	return &entity.ApprovalEntry{
		TenantID:    "tenant-1",
		Kind:        "lead",
		EntityID:    "lead-1",
		FromStage:   "negotiation",
		ToStage:     "won",
		RequestedBy: "user-1",
	}
}

func TestEnqueue(t *testing.T) {
	queue, store := newTestQueue()

	entry, err := queue.Enqueue(context.Background(), pendingEntry())
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, entity.ApprovalPending, entry.Status)
	assert.False(t, entry.CreatedAt.IsZero())

	stored, err := store.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "won", stored.ToStage)
}

func TestListPendingExcludesResolved(t *testing.T) {
	queue, _ := newTestQueue()

	first, err := queue.Enqueue(context.Background(), pendingEntry())
	require.NoError(t, err)
	_, err = queue.Enqueue(context.Background(), pendingEntry())
	require.NoError(t, err)

	_, err = queue.Resolve(context.Background(), first.ID, "tenant-1", true, "", "admin-1")
	require.NoError(t, err)

	pending, err := queue.ListPending(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestResolveApproved(t *testing.T) {
	queue, _ := newTestQueue()

	entry, err := queue.Enqueue(context.Background(), pendingEntry())
	require.NoError(t, err)

	resolved, err := queue.Resolve(context.Background(), entry.ID, "tenant-1", true, "looks good", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalApproved, resolved.Status)
	assert.Equal(t, "admin-1", resolved.ProcessedBy)
	assert.Equal(t, "looks good", resolved.Reason)
	require.NotNil(t, resolved.ProcessedAt)
}

func TestResolveRejected(t *testing.T) {
	queue, _ := newTestQueue()

	entry, err := queue.Enqueue(context.Background(), pendingEntry())
	require.NoError(t, err)

	resolved, err := queue.Resolve(context.Background(), entry.ID, "tenant-1", false, "too early", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalRejected, resolved.Status)
}

func TestResolveErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		queue, _ := newTestQueue()
		_, err := queue.Resolve(context.Background(), "missing", "tenant-1", true, "", "admin-1")
		assert.ErrorIs(t, err, pipeline.ErrApprovalNotFound)
	})

	t.Run("tenant mismatch", func(t *testing.T) {
		queue, _ := newTestQueue()
		entry, err := queue.Enqueue(context.Background(), pendingEntry())
		require.NoError(t, err)

		_, err = queue.Resolve(context.Background(), entry.ID, "tenant-2", true, "", "admin-1")
		assert.ErrorIs(t, err, pipeline.ErrTenantMismatch)
	})

	t.Run("already processed", func(t *testing.T) {
		queue, _ := newTestQueue()
		entry, err := queue.Enqueue(context.Background(), pendingEntry())
		require.NoError(t, err)

		_, err = queue.Resolve(context.Background(), entry.ID, "tenant-1", true, "", "admin-1")
		require.NoError(t, err)

		_, err = queue.Resolve(context.Background(), entry.ID, "tenant-1", false, "", "admin-2")
		assert.ErrorIs(t, err, pipeline.ErrAlreadyProcessed)
	})

	t.Run("lost resolution race", func(t *testing.T) {
		queue, store := newTestQueue()
		entry, err := queue.Enqueue(context.Background(), pendingEntry())
		require.NoError(t, err)

		store.loseRace = true
		_, err = queue.Resolve(context.Background(), entry.ID, "tenant-1", true, "", "admin-1")
		assert.ErrorIs(t, err, pipeline.ErrAlreadyProcessed)
	})
}
