package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeployment(t *testing.T) {
	d := NewDeployment("covercash2/ultron", "refs/heads/main", "0875adf8d630246ac3d0c338157a5b89fa0c57a8")

	_, err := uuid.Parse(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "covercash2/ultron", d.Repo)
	assert.Equal(t, "refs/heads/main", d.Ref)
	assert.False(t, d.CreatedAt.IsZero())
	assert.Empty(t, d.Status)

	other := NewDeployment("a/b", "main", "x")
	assert.NotEqual(t, d.ID, other.ID)
}

func TestShortRev(t *testing.T) {
	assert.Equal(t, "0875adf", ShortRev("0875adf8d630246ac3d0c338157a5b89fa0c57a8"))
	assert.Equal(t, "abc", ShortRev("abc"))
	assert.Equal(t, "", ShortRev(""))
}
