package deployns

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// jobPollInterval is the delay between job status queries. Tests shorten it.
var jobPollInterval = 5 * time.Second

// maxJobPolls bounds how long a job is waited for: ten minutes at the default
// interval.
var maxJobPolls = 120

// maxTransientErrors is the number of consecutive failed status queries
// tolerated before giving up on a job.
const maxTransientErrors = 3

// JobStatus is the progress of a provider-side batch job.
type JobStatus struct {
	Total     int
	Succeeded int
	Failed    int
}

// A job reporting no units yet has not started.
func (s JobStatus) done() bool {
	return s.Total > 0 && s.Succeeded+s.Failed >= s.Total
}

type jobTarget struct {
	provider string
	domain   string
	jobID    string
}

func (t jobTarget) fail(err error) error {
	return &ProviderWriteError{Provider: t.provider, Domain: t.domain, JobID: t.jobID, Err: err}
}

// waitForJob blocks until poll reports every unit of the job finished. Any
// failed unit, a timeout, or repeated status errors fail the whole job.
func waitForJob(ctx context.Context, log logr.Logger, t jobTarget, poll func(context.Context) (JobStatus, error)) error {
	var consecutiveErrors int
	log = log.WithValues("jobID", t.jobID)

	for i := 0; i < maxJobPolls; i++ {
		select {
		case <-ctx.Done():
			return t.fail(ctx.Err())
		case <-time.After(jobPollInterval):
		}

		status, err := poll(ctx)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= maxTransientErrors {
				return t.fail(errors.Wrapf(err, "query job status (%d consecutive failures)", consecutiveErrors))
			}
			log.Info("job status query failed, retrying", "attempt", consecutiveErrors, "error", err.Error())
			continue
		}
		consecutiveErrors = 0

		log.V(1).Info("job progress", "total", status.Total, "succeeded", status.Succeeded, "failed", status.Failed)
		if !status.done() {
			continue
		}
		if status.Failed > 0 {
			return t.fail(errors.Errorf("%d of %d operations failed", status.Failed, status.Total))
		}
		return nil
	}

	return t.fail(errors.Errorf("job did not finish after %d polls", maxJobPolls))
}
