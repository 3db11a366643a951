// Package trainer starts and stops model training jobs.
//
// Two adapters exist: "vertex" submits pipeline jobs to a managed training
// service over REST, "k8s" runs the trainer image as a batch/v1 Job in the
// cluster. The lifecycle loop only sees this interface.
package trainer

import (
	"context"
)

type JobSpec struct {
	AssetTypeId string
	ComponentId string

	// feature attributes the model trains over
	Features []string
}

type Interface interface {
	// Start launches a training job for the spec.
	//
	// # Returns
	//
	// - string: id of the started job. Pass it to Kill to stop the job.
	//
	// - error: errors from the backend.
	Start(ctx context.Context, spec JobSpec) (string, error)

	// Kill stops a training job.
	//
	// Killing an empty job id is a no-op, and killing a job that no longer
	// exists succeeds. Both happen routinely: records start with no run at
	// all, and finished jobs are garbage-collected by the backend.
	//
	// # Returns
	//
	// - string: human-readable outcome, for the cycle log.
	//
	// - error: errors from the backend, other than "already gone".
	Kill(ctx context.Context, jobId string) (string, error)
}
