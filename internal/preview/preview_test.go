package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/gphotoctl/internal/catalog"
	"github.com/evalgo/gphotoctl/internal/model"
)

func TestNumberParamAcceptsJSONNumberShapes(t *testing.T) {
	v, ok := numberParam(float64(42))
	assert.True(t, ok)
	assert.Equal(t, float64(42), v)

	_, ok = numberParam("not a number")
	assert.False(t, ok)
}

func TestToItemMapCarriesCoreFields(t *testing.T) {
	row := model.MediaIndexRow{MediaKey: "m1", DedupKey: "d1", Filename: "a.jpg", IsFavorite: true}
	m := toItemMap(row)
	assert.Equal(t, "m1", m["mediaKey"])
	assert.Equal(t, "d1", m["dedupKey"])
	assert.Equal(t, true, m["isFavorite"])
}

func TestToInterfaceSlice(t *testing.T) {
	out := toInterfaceSlice([]string{"a", "b"})
	assert.Equal(t, []interface{}{"a", "b"}, out)
}

// TestMapActionToJobOperationsResolveThroughCatalog is a regression test for
// the bug where buildJobParams emitted "native-rpc."-prefixed operations
// that catalog.ResolveGptkMethod (the only thing the native-rpc adapter
// calls) could not resolve, because the catalog only stripped the legacy
// "gptk." prefix. Every branch below must both match the literal operation
// string and resolve through the catalog a job built from a committed
// preview will actually be dispatched with.
func TestMapActionToJobOperationsResolveThroughCatalog(t *testing.T) {
	mediaKeys := []string{"m1"}
	dedupKeys := []string{"d1"}

	cases := []struct {
		name         string
		action       string
		actionParams model.JSONMap
		wantOp       string
	}{
		{"trash", "trash", nil, "native-rpc.move_items_to_trash"},
		{"restore", "restore_from_trash", nil, "native-rpc.restore_from_trash"},
		{"archive", "archive", nil, "native-rpc.set_archive"},
		{"unarchive", "unarchive", nil, "native-rpc.set_archive"},
		{"favorite", "favorite", nil, "native-rpc.set_favorite"},
		{"unfavorite", "unfavorite", nil, "native-rpc.set_favorite"},
		{"add_album", "add_album", model.JSONMap{"album_id": "al1"}, "native-rpc.add_items_to_album"},
		{"remove_album", "remove_album", model.JSONMap{"album_id": "al1"}, "native-rpc.remove_items_from_shared_album"},
		{"set_datetime", "set_datetime", model.JSONMap{"timestamp_sec": float64(1000)}, "native-rpc.set_items_timestamp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider, op, params, err := mapActionToJob(tc.action, tc.actionParams, mediaKeys, dedupKeys)
			require.NoError(t, err)
			assert.Equal(t, model.ProviderNativeRPC, provider)
			assert.Equal(t, tc.wantOp, op)
			require.NotNil(t, params)

			method, err := catalog.ResolveGptkMethod(op)
			require.NoErrorf(t, err, "operation %q must resolve through the catalog", op)
			assert.NotEmpty(t, method.RPCID)
		})
	}
}
