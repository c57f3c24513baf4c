package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/gphotoctl/internal/catalog"
	"github.com/evalgo/gphotoctl/internal/model"
)

func accountWithCookieJar() *model.Account {
	return &model.Account{ID: "acct-1", CookieJar: []byte(`[{"name":"a","value":"b"}]`)}
}

// TestNativeRPCAdapterRunDryRunAcceptsNativeRPCPrefixedOperation is a
// regression test for the bug where job-creation paths emitted
// "native-rpc."-prefixed operations that the adapter's own resolver
// couldn't handle. dryRun=true exercises request-building through
// catalog.ResolveGptkMethod without touching the network.
func TestNativeRPCAdapterRunDryRunAcceptsNativeRPCPrefixedOperation(t *testing.T) {
	a := NewNativeRPCAdapter(nil, nil, nil)
	job := &model.Job{
		Provider:  model.ProviderNativeRPC,
		Operation: "native-rpc.move_items_to_trash",
		Params:    model.JSONMap{"dedupKeyArray": []interface{}{"d1"}, "confirmed": true},
	}
	result, err := a.Run(context.Background(), accountWithCookieJar(), job, true, NoopProgress())
	require.NoError(t, err)
	assert.Equal(t, true, result["dryRun"])
	assert.NotEmpty(t, result["rpcid"])
}

func TestNativeRPCAdapterRunDryRunAcceptsBareAndGptkPrefixedOperations(t *testing.T) {
	a := NewNativeRPCAdapter(nil, nil, nil)

	for _, op := range []string{"move_items_to_trash", "gptk.move_items_to_trash"} {
		job := &model.Job{
			Provider:  model.ProviderNativeRPC,
			Operation: op,
			Params:    model.JSONMap{"dedupKeyArray": []interface{}{"d1"}, "confirmed": true},
		}
		result, err := a.Run(context.Background(), accountWithCookieJar(), job, true, NoopProgress())
		require.NoError(t, err, "operation %q", op)
		assert.Equal(t, true, result["dryRun"])
	}
}

func TestNativeRPCAdapterRunRejectsUnconfirmedDestructiveOperation(t *testing.T) {
	a := NewNativeRPCAdapter(nil, nil, nil)
	job := &model.Job{
		Provider:  model.ProviderNativeRPC,
		Operation: "native-rpc.move_items_to_trash",
		Params:    model.JSONMap{"dedupKeyArray": []interface{}{"d1"}},
	}
	_, err := a.Run(context.Background(), accountWithCookieJar(), job, false, NoopProgress())
	assert.Error(t, err)
}

func TestNativeRPCAdapterRunAdvancedDryRun(t *testing.T) {
	a := NewNativeRPCAdapter(nil, nil, nil)
	job := &model.Job{
		Provider:  model.ProviderAdvanced,
		Operation: "advanced.rpc_execute",
		Params:    model.JSONMap{"rpcid": "EzwWhf", "requestData": []interface{}{}, "confirmed": true},
	}
	result, err := a.Run(context.Background(), accountWithCookieJar(), job, true, NoopProgress())
	require.NoError(t, err)
	assert.Equal(t, true, result["dryRun"])
	assert.Equal(t, "EzwWhf", result["rpcid"])
}

// TestBulkUploadDelegateJobsResolveThroughCatalog covers the bulk-upload
// provider's native-rpc delegation (move_to_trash, add_to_album): both
// delegate jobs must carry an Operation the catalog can resolve.
func TestBulkUploadDelegateJobsResolveThroughCatalog(t *testing.T) {
	trash := buildTrashDelegateJob("acct-1", []string{"d1", "d2"})
	assert.Equal(t, model.ProviderNativeRPC, trash.Provider)
	assert.Equal(t, "native-rpc.move_items_to_trash", trash.Operation)
	_, err := catalog.ResolveGptkMethod(trash.Operation)
	require.NoError(t, err)

	addToAlbum := buildAddToAlbumDelegateJob("acct-1", []string{"m1"}, "Trip")
	assert.Equal(t, model.ProviderNativeRPC, addToAlbum.Provider)
	assert.Equal(t, "native-rpc.add_items_to_album", addToAlbum.Operation)
	_, err = catalog.ResolveGptkMethod(addToAlbum.Operation)
	require.NoError(t, err)
}
