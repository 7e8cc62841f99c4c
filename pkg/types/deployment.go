package types

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentStatus represents the outcome of a deployment attempt.
type DeploymentStatus string

const (
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentFailed  DeploymentStatus = "failed"
	DeploymentSkipped DeploymentStatus = "skipped"
)

// Deployment records one attempt to pin a new rev in the flake.
type Deployment struct {
	ID          string           `json:"id"`
	DeliveryID  string           `json:"delivery_id,omitempty"` // GitHub X-GitHub-Delivery header
	Repo        string           `json:"repo"`                  // owner/name
	Ref         string           `json:"ref"`
	Rev         string           `json:"rev"`
	PreviousRev string           `json:"previous_rev,omitempty"`
	Status      DeploymentStatus `json:"status"`
	Message     string           `json:"message,omitempty"`
	FlakeCommit string           `json:"flake_commit,omitempty"` // commit in the flake repository, if any
	CreatedAt   time.Time        `json:"created_at"`
}

// NewDeployment creates a deployment with a fresh ID and the current timestamp.
func NewDeployment(repo, ref, rev string) *Deployment {
	return &Deployment{
		ID:        uuid.NewString(),
		Repo:      repo,
		Ref:       ref,
		Rev:       rev,
		CreatedAt: time.Now().UTC(),
	}
}

// ShortRev returns the first 7 characters of a revision.
func ShortRev(rev string) string {
	if len(rev) <= 7 {
		return rev
	}
	return rev[:7]
}
