package store

import (
	"sort"
	"sync"

	"github.com/covercash2/green/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu          sync.RWMutex
	deployments map[string]*types.Deployment // keyed by ID
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		deployments: make(map[string]*types.Deployment),
	}
}

// AddDeployment stores a deployment record. A record with an existing ID
// replaces the old one.
func (m *MemoryStore) AddDeployment(d *types.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *d
	m.deployments[d.ID] = &stored
	return nil
}

// GetDeployment retrieves a deployment by ID.
func (m *MemoryStore) GetDeployment(id string) (*types.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deployments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

// ListDeployments returns the most recent deployments, newest first.
func (m *MemoryStore) ListDeployments(limit int) ([]*types.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sorted(limit, ""), nil
}

// LatestDeployment returns the newest deployment with the given status.
func (m *MemoryStore) LatestDeployment(status types.DeploymentStatus) (*types.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := m.sorted(1, status)
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result[0], nil
}

// sorted returns copies ordered newest first. Caller holds the lock.
func (m *MemoryStore) sorted(limit int, status types.DeploymentStatus) []*types.Deployment {
	result := make([]*types.Deployment, 0, len(m.deployments))
	for _, d := range m.deployments {
		if status != "" && d.Status != status {
			continue
		}
		out := *d
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Close closes the database connection.
// For in-memory store, this is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
