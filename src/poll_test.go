package deployns

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolling(t *testing.T, polls int) {
	interval, max := jobPollInterval, maxJobPolls
	jobPollInterval, maxJobPolls = time.Millisecond, polls
	t.Cleanup(func() { jobPollInterval, maxJobPolls = interval, max })
}

type scriptedJob struct {
	steps []func() (JobStatus, error)
	calls int
}

func (s *scriptedJob) poll(ctx context.Context) (JobStatus, error) {
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i]()
}

func status(total, ok, failed int) func() (JobStatus, error) {
	return func() (JobStatus, error) { return JobStatus{Total: total, Succeeded: ok, Failed: failed}, nil }
}

func failing(err error) func() (JobStatus, error) {
	return func() (JobStatus, error) { return JobStatus{}, err }
}

var testJob = jobTarget{provider: "fake", domain: "example.com", jobID: "7"}

func TestWaitForJobSucceeds(t *testing.T) {
	fastPolling(t, 10)
	job := &scriptedJob{steps: []func() (JobStatus, error){
		status(4, 0, 0), status(4, 2, 0), status(4, 4, 0),
	}}
	require.NoError(t, waitForJob(context.Background(), logr.Discard(), testJob, job.poll))
	assert.Equal(t, 3, job.calls)
}

func TestWaitForJobPartialFailure(t *testing.T) {
	fastPolling(t, 10)
	job := &scriptedJob{steps: []func() (JobStatus, error){status(3, 2, 1)}}
	err := waitForJob(context.Background(), logr.Discard(), testJob, job.poll)

	var we *ProviderWriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "7", we.JobID)
	assert.Contains(t, err.Error(), "1 of 3 operations failed")
}

func TestWaitForJobToleratesTransientErrors(t *testing.T) {
	fastPolling(t, 10)
	flaky := errors.New("timeout")
	job := &scriptedJob{steps: []func() (JobStatus, error){
		failing(flaky), failing(flaky), status(1, 0, 0), failing(flaky), failing(flaky), status(1, 1, 0),
	}}
	require.NoError(t, waitForJob(context.Background(), logr.Discard(), testJob, job.poll))
	assert.Equal(t, 6, job.calls)
}

func TestWaitForJobGivesUpAfterRepeatedErrors(t *testing.T) {
	fastPolling(t, 10)
	down := errors.New("service unavailable")
	job := &scriptedJob{steps: []func() (JobStatus, error){failing(down)}}
	err := waitForJob(context.Background(), logr.Discard(), testJob, job.poll)

	require.Error(t, err)
	assert.True(t, errors.Is(err, down))
	assert.Equal(t, maxTransientErrors, job.calls)
}

func TestWaitForJobTimesOut(t *testing.T) {
	fastPolling(t, 3)
	job := &scriptedJob{steps: []func() (JobStatus, error){status(2, 1, 0)}}
	err := waitForJob(context.Background(), logr.Discard(), testJob, job.poll)

	var we *ProviderWriteError
	require.True(t, errors.As(err, &we))
	assert.Contains(t, err.Error(), "after 3 polls")
	assert.Equal(t, 3, job.calls)
}

func TestWaitForJobCancelled(t *testing.T) {
	fastPolling(t, 10)
	jobPollInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &scriptedJob{steps: []func() (JobStatus, error){status(1, 1, 0)}}
	err := waitForJob(ctx, logr.Discard(), testJob, job.poll)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, job.calls)
}

func TestWaitForJobWaitsForUnitsToAppear(t *testing.T) {
	fastPolling(t, 10)
	job := &scriptedJob{steps: []func() (JobStatus, error){
		status(0, 0, 0), status(0, 0, 0), status(2, 2, 0),
	}}
	require.NoError(t, waitForJob(context.Background(), logr.Discard(), testJob, job.poll))
	assert.Equal(t, 3, job.calls)
}

func TestWaitForJobWithoutUnitsTimesOut(t *testing.T) {
	fastPolling(t, 2)
	job := &scriptedJob{steps: []func() (JobStatus, error){status(0, 0, 0)}}
	err := waitForJob(context.Background(), logr.Discard(), testJob, job.poll)
	assert.ErrorContains(t, err, "after 2 polls")
}
