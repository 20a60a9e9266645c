package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)

	return j.err
}

func (j *countingJob) Name() string {
	return "counting"
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zap.NewNop())

	assert.Error(t, s.AddJob("every now and then", &countingJob{}))
	assert.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.NoError(t, s.AddJob("*/5 * * * *", &countingJob{}))
}

func TestRunNow(t *testing.T) {
	s := New(zap.NewNop())
	job := &countingJob{err: errors.New("boom")}

	assert.Error(t, s.RunNow(context.Background(), job))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunExecutesJobsUntilCancelled(t *testing.T) {
	s := New(zap.NewNop())
	job := &countingJob{err: errors.New("failures are logged only")}

	require.NoError(t, s.AddJob("@every 1s", job))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
