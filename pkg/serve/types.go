package serve

import (
	"encoding/json"

	"github.com/covercash2/green/pkg/types"
)

// Response is the JSON envelope returned by the API routes.
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "deployments" | "deployment" | "webhook" | "error"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DeploymentsData is the data field for "deployments" responses.
type DeploymentsData struct {
	Deployments []*types.Deployment `json:"deployments"`
}

// WebhookData is the data field for "webhook" responses.
type WebhookData struct {
	Delivery   string            `json:"delivery"`
	Event      string            `json:"event"`
	Duplicate  bool              `json:"duplicate,omitempty"`
	Ignored    bool              `json:"ignored,omitempty"`
	Deployment *types.Deployment `json:"deployment,omitempty"`
}
