package queuetest

import (
	"context"
	"sync"

	"tron-wallet-explorer/internal/queue"
)

// Recorder 记录提交的任务，Err 非空时提交失败
type Recorder struct {
	mu   sync.Mutex
	jobs []queue.Job
	Err  error
}

func (r *Recorder) Submit(ctx context.Context, job queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Recorder) Jobs() []queue.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]queue.Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
