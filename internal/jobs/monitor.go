// Package jobs observes export jobs after submission. Submitting never
// waits; callers that want completion poll here.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"utiligee/internal/ee"
)

var (
	ErrJobFailed    = errors.New("export job failed")
	ErrJobCancelled = errors.New("export job cancelled")
)

const DefaultPollInterval = time.Second

type Monitor struct {
	session ee.Session
	limiter *rate.Limiter
}

// NewMonitor polls at most once per interval.
func NewMonitor(s ee.Session, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{session: s, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (m *Monitor) Status(ctx context.Context, id string) (ee.Job, error) {
	return m.session.Operation(ctx, id)
}

// Wait polls id until it reaches a terminal state or ctx ends. onUpdate, if
// non-nil, sees every snapshot. A failed or cancelled job is returned along
// with ErrJobFailed or ErrJobCancelled.
func (m *Monitor) Wait(ctx context.Context, id string, onUpdate func(ee.Job)) (ee.Job, error) {
	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return ee.Job{}, err
		}
		job, err := m.session.Operation(ctx, id)
		if err != nil {
			return ee.Job{}, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		logrus.WithFields(logrus.Fields{
			"job":      job.ID,
			"state":    job.State,
			"progress": job.Progress,
		}).Debug("Polled export job")

		switch job.State {
		case ee.StateSucceeded:
			return job, nil
		case ee.StateFailed:
			return job, fmt.Errorf("%w: %s: %s", ErrJobFailed, job.ID, job.Error)
		case ee.StateCancelled:
			return job, fmt.Errorf("%w: %s", ErrJobCancelled, job.ID)
		}
	}
}

func (m *Monitor) Cancel(ctx context.Context, id string) error {
	if err := m.session.CancelOperation(ctx, id); err != nil {
		return err
	}
	logrus.WithField("job", id).Info("Cancellation requested")
	return nil
}

// List returns known jobs, optionally only those still running.
func (m *Monitor) List(ctx context.Context, activeOnly bool) ([]ee.Job, error) {
	all, err := m.session.ListOperations(ctx)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	var active []ee.Job
	for _, j := range all {
		if !j.State.Terminal() {
			active = append(active, j)
		}
	}
	return active, nil
}
