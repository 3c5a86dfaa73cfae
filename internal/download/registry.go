package download

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the process's shared view of download jobs. It is purely
// in-memory (jobs do not survive a restart) and records are never removed;
// an artifact being consumed does not expire its job.
//
// Concurrency contract: any number of goroutines may read via Get, but each
// job has exactly one writer (the goroutine executing it) applying mutations
// via Update.
type Registry struct {
	mutex sync.RWMutex
	jobs  map[uuid.UUID]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uuid.UUID]*Job)}
}

// Create allocates a fresh pending job for the URL provided and returns its
// id.
func (registry *Registry) Create(url string) uuid.UUID {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	id := uuid.New()
	registry.jobs[id] = &Job{ID: id, URL: url, Status: StatusPending}

	return id
}

// Get returns a snapshot of the job with the id provided, if one exists.
func (registry *Registry) Get(id uuid.UUID) (Job, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	job, ok := registry.jobs[id]
	if !ok {
		return Job{}, false
	}

	return *job, true
}

// Update applies the mutator to the job with the id provided while holding
// the registry lock. Unknown ids are a no-op.
func (registry *Registry) Update(id uuid.UUID, mutator func(*Job)) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if job, ok := registry.jobs[id]; ok {
		mutator(job)
	}
}
