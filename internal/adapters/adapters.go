// Package adapters implements the provider executors the job dispatcher
// fans out to: native-rpc, bulk-upload, file-disguise, indexer, pipeline
// and advanced. Each adapter implements the Adapter interface and is
// registered into a Registry, mirroring the Executor/Registry split this
// codebase used for scheduled-action dispatch.
package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/evalgo/gphotoctl/internal/model"
)

// ProgressFunc reports fractional progress (0..1) and a status message
// back to the job executor, which persists it as a JobEvent.
type ProgressFunc func(progress float64, message string)

// Adapter runs one provider's operations against an account.
type Adapter interface {
	// CanHandle reports whether this adapter owns the given provider.
	CanHandle(provider model.Provider) bool
	// Run executes job.Operation with job.Params against account. When
	// dryRun is true the adapter must not mutate remote or local state.
	Run(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error)
}

// Registry dispatches a job to the adapter that owns its provider.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
}

// Dispatch finds the adapter registered for job.Provider and runs it.
func (r *Registry) Dispatch(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.CanHandle(job.Provider) {
			return a.Run(ctx, account, job, dryRun, report)
		}
	}
	return nil, fmt.Errorf("adapters: no adapter registered for provider %q", job.Provider)
}

func noopProgress(float64, string) {}

// NoopProgress is a ProgressFunc that discards every report, for callers
// (tests, one-off CLI invocations) that don't stream progress anywhere.
func NoopProgress() ProgressFunc { return noopProgress }
