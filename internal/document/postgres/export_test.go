package postgres

import "context"

// Test hooks for driving the metadata capability probe.

func (r *DocumentRepository) SetProbeFn(fn func(ctx context.Context) (bool, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probeFn = fn
}

func (r *DocumentRepository) MetadataUnsupported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata == metadataUnsupported
}

func (r *DocumentRepository) Probed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probed
}
