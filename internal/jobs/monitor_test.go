package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utiligee/internal/ee"
)

func submit(t *testing.T, rec *ee.Recorder) ee.Job {
	t.Helper()
	job, err := rec.ExportImage(context.Background(), ee.ExportImage{Description: "small"})
	require.NoError(t, err)
	return job
}

func TestWaitUntilSucceeded(t *testing.T) {
	rec := ee.NewRecorder()
	job := submit(t, rec)
	rec.Script(job.ID, ee.StatePending, ee.StateRunning, ee.StateSucceeded)

	var seen []ee.State
	m := NewMonitor(rec, time.Millisecond)
	got, err := m.Wait(context.Background(), job.ID, func(j ee.Job) { seen = append(seen, j.State) })
	require.NoError(t, err)
	assert.Equal(t, ee.StateSucceeded, got.State)
	assert.Equal(t, []ee.State{ee.StatePending, ee.StateRunning, ee.StateSucceeded}, seen)
}

func TestWaitReportsFailure(t *testing.T) {
	rec := ee.NewRecorder()
	job := submit(t, rec)
	rec.Script(job.ID, ee.StateRunning, ee.StateFailed)

	got, err := NewMonitor(rec, time.Millisecond).Wait(context.Background(), job.ID, nil)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, ee.StateFailed, got.State)
}

func TestWaitHonoursContext(t *testing.T) {
	rec := ee.NewRecorder()
	job := submit(t, rec)
	rec.Script(job.ID, ee.StateRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewMonitor(rec, 10*time.Millisecond).Wait(ctx, job.ID, nil)
	assert.Error(t, err)
}

func TestCancelThenWait(t *testing.T) {
	rec := ee.NewRecorder()
	job := submit(t, rec)
	rec.Script(job.ID, ee.StateRunning)

	m := NewMonitor(rec, time.Millisecond)
	require.NoError(t, m.Cancel(context.Background(), job.ID))
	_, err := m.Wait(context.Background(), job.ID, nil)
	assert.ErrorIs(t, err, ErrJobCancelled)
}

func TestListActiveOnly(t *testing.T) {
	rec := ee.NewRecorder()
	done := submit(t, rec)
	running := submit(t, rec)
	rec.Script(running.ID, ee.StateRunning)

	m := NewMonitor(rec, time.Millisecond)
	_, err := m.Status(context.Background(), done.ID)
	require.NoError(t, err)
	_, err = m.Status(context.Background(), running.ID)
	require.NoError(t, err)

	all, err := m.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := m.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, running.ID, active[0].ID)
}

// listSession serves the same job slice on every ListOperations call.
type listSession struct {
	*ee.Recorder
	jobs []ee.Job
}

func (s listSession) ListOperations(context.Context) ([]ee.Job, error) {
	return s.jobs, nil
}

func TestListActiveOnlyLeavesSessionDataAlone(t *testing.T) {
	jobs := []ee.Job{
		{ID: "1", State: ee.StateSucceeded},
		{ID: "2", State: ee.StateRunning},
		{ID: "3", State: ee.StateFailed},
	}
	want := append([]ee.Job(nil), jobs...)
	m := NewMonitor(listSession{Recorder: ee.NewRecorder(), jobs: jobs}, time.Millisecond)

	active, err := m.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2", active[0].ID)
	assert.Equal(t, want, jobs)
}
