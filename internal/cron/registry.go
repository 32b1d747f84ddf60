package cron

import "context"

// Job is one maintenance task run by the scheduler on every cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs of one scheduler in registration order.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds job; nil jobs are ignored so optional jobs can be passed as-is.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) Len() int { return len(r.jobs) }
