package core

import (
	"context"
)

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing. This interface decouples the
// event source (the webhook handler) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch accepts a ReviewRequest and queues it for processing.
	// It returns an error if the job cannot be queued, for example if the
	// queue is full, providing a mechanism for backpressure.
	Dispatch(ctx context.Context, req *ReviewRequest) error
}

// Job represents a single, executable unit of work processed by the job
// dispatcher. Each job is triggered by one ReviewRequest and runs the full
// review pipeline for it.
type Job interface {
	// Run executes the job's logic. It receives a context for managing its
	// lifecycle and the request containing the data needed to perform its
	// task. It returns an error if the job fails to complete successfully.
	Run(ctx context.Context, req *ReviewRequest) error
}
