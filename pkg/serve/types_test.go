package serve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_Marshal(t *testing.T) {
	data, err := json.Marshal(Response{
		Success: true,
		Type:    "deployments",
		Data:    json.RawMessage(`{"deployments":[]}`),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"success":true,"type":"deployments","data":{"deployments":[]}}`, string(data))
}

func TestResponse_MarshalError(t *testing.T) {
	data, err := json.Marshal(Response{Type: "error", Error: "invalid limit"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"success":false,"type":"error","error":"invalid limit"}`, string(data))
}
