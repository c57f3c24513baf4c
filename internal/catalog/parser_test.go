package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/gphotoctl/internal/rpcclient"
)

func TestParseResponseStorageQuota(t *testing.T) {
	payload, err := rpcclient.ParseWrbPayload(")]}'\n\n[[\"wrb.fr\",\"EzwWhf\",\"[null,null,null,null,null,null,[10,100,null,3]]\",null,null,null,\"generic\"]]\n")
	require.NoError(t, err)

	result := ParseResponse("EzwWhf", payload)
	quota, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(10), quota["totalUsed"])
	assert.Equal(t, float64(100), quota["totalAvailable"])
}

func TestParseResponseUnknownRpcidReturnsRaw(t *testing.T) {
	payload, err := rpcclient.ParseWrbPayload(")]}'\n\n[[\"wrb.fr\",\"unknownId\",\"[1,2,3]\",null,null,null,\"generic\"]]\n")
	require.NoError(t, err)

	result := ParseResponse("unknownId", payload)
	assert.Equal(t, payload, result)
}

func TestParseResponseRecoversFromUnexpectedShape(t *testing.T) {
	payload, err := rpcclient.ParseWrbPayload(")]}'\n\n[[\"wrb.fr\",\"EzwWhf\",\"\\\"not-a-list\\\"\",null,null,null,\"generic\"]]\n")
	require.NoError(t, err)

	result := ParseResponse("EzwWhf", payload)
	assert.NotPanics(t, func() { _ = result })
}
