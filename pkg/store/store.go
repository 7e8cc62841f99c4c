package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/covercash2/green/pkg/types"
)

// ErrNotFound is returned when a deployment does not exist.
var ErrNotFound = errors.New("deployment not found")

// Store provides persistence for deployment history.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (memory, SQLite, PostgreSQL).
type Store interface {
	// AddDeployment stores a deployment record.
	AddDeployment(d *types.Deployment) error

	// GetDeployment retrieves a deployment by ID.
	GetDeployment(id string) (*types.Deployment, error)

	// ListDeployments returns the most recent deployments, newest first.
	// A limit <= 0 returns all deployments.
	ListDeployments(limit int) ([]*types.Deployment, error)

	// LatestDeployment returns the newest deployment with the given status,
	// or the newest deployment of any status when status is empty.
	LatestDeployment(status types.DeploymentStatus) (*types.Deployment, error)

	// Close closes the database connection.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path selects the backend:
	//   ":memory:"                 in-memory store (useful for testing)
	//   "postgres://..."           PostgreSQL
	//   anything else              SQLite database file
	Path string
}

// New creates a Store for the configured path.
func New(cfg Config) (Store, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("path is required")
	case cfg.Path == ":memory:":
		return NewMemory(), nil
	case isPostgresURL(cfg.Path):
		s, err := NewPostgres(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func isPostgresURL(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}
