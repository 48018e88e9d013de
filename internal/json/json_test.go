package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginRequest struct {
	UserID string `json:"user_id"`
}

func TestMarshalSortsMapKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"online_count": 2, "code": 0})
	require.NoError(t, err)
	assert.Equal(t, `{"code":0,"online_count":2}`, string(data))
}

func TestUnmarshal(t *testing.T) {
	var req loginRequest
	require.NoError(t, Unmarshal([]byte(`{"user_id":"alice","extra":1}`), &req))
	assert.Equal(t, "alice", req.UserID)

	assert.Error(t, Unmarshal([]byte(`{"user_id":`), &req))
	assert.Error(t, Unmarshal([]byte(`{"user_id":42}`), &req))
}
