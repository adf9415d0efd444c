package ee

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utiligee/internal/expr"
)

func TestRecorderScriptedStates(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	job, err := r.ExportImage(ctx, ExportImage{Description: "small"})
	require.NoError(t, err)
	assert.Equal(t, StatePending, job.State)

	r.Script(job.ID, StateRunning, StateFailed)
	got, err := r.Operation(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, got.State)
	assert.False(t, got.Done)

	got, err = r.Operation(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.True(t, got.Done)
	assert.NotEmpty(t, got.Error)

	// last state sticks
	got, err = r.Operation(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
}

func TestRecorderCancel(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	job, err := r.ExportImage(ctx, ExportImage{Description: "small"})
	require.NoError(t, err)
	r.Script(job.ID, StateRunning)

	require.NoError(t, r.CancelOperation(ctx, job.ID))
	got, err := r.Operation(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)

	err = r.CancelOperation(ctx, "projects/dry-run/operations/99")
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestRecorderComputeValueUsesStubs(t *testing.T) {
	r := NewRecorder()
	node := expr.Invoke("Geometry.centroid", nil)
	_, err := r.ComputeValue(context.Background(), node)
	assert.Error(t, err)

	r.Stub("Geometry.centroid", map[string]any{"type": "Point"})
	v, err := r.ComputeValue(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "Point"}, v)
	assert.Len(t, r.CallsTo("ComputeValue"), 2)
}

func TestRecorderErr(t *testing.T) {
	r := NewRecorder()
	r.Err = errors.New("quota exceeded")
	_, err := r.ListOperations(context.Background())
	assert.EqualError(t, err, "quota exceeded")
}
