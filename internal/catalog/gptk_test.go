package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/gphotoctl/internal/model"
)

func TestResolveGptkMethodAcceptsPrefixedAndBareNames(t *testing.T) {
	m, err := ResolveGptkMethod("gptk.get_trash_items")
	require.NoError(t, err)
	assert.Equal(t, "zy0IHe", m.RPCID)

	m2, err := ResolveGptkMethod("get_trash_items")
	require.NoError(t, err)
	assert.Same(t, m, m2)
}

func TestResolveGptkMethodAcceptsNativeRPCPrefix(t *testing.T) {
	m, err := ResolveGptkMethod("native-rpc.move_items_to_trash")
	require.NoError(t, err)
	bare, err := ResolveGptkMethod("move_items_to_trash")
	require.NoError(t, err)
	assert.Same(t, bare, m)
}

func TestResolveGptkMethodUnknownOperation(t *testing.T) {
	_, err := ResolveGptkMethod("gptk.does_not_exist")
	require.Error(t, err)
}

func TestAddItemsToSharedAlbumBranchesOnAlbumName(t *testing.T) {
	m, err := ResolveGptkMethod("add_items_to_shared_album")
	require.NoError(t, err)

	withName := m.Build(model.JSONMap{"mediaKeyArray": []interface{}{"k1"}, "albumName": "Trip"})
	assert.Equal(t, "Trip", withName[2])

	withoutName := m.Build(model.JSONMap{"mediaKeyArray": []interface{}{"k1"}, "albumMediaKey": "album-1"})
	assert.Equal(t, "album-1", withoutName[0])
}

func TestSetFavoriteActionMapping(t *testing.T) {
	m, err := ResolveGptkMethod("set_favorite")
	require.NoError(t, err)

	favorite := m.Build(model.JSONMap{"dedupKeyArray": []interface{}{"d1"}, "action": true})
	assert.Equal(t, []interface{}{1}, favorite[1])

	unfavorite := m.Build(model.JSONMap{"dedupKeyArray": []interface{}{"d1"}, "action": false})
	assert.Equal(t, []interface{}{2}, unfavorite[1])
	assert.True(t, m.Destructive)
}

func TestMoveItemsToTrashAndRestoreShareRPCID(t *testing.T) {
	trash, err := ResolveGptkMethod("move_items_to_trash")
	require.NoError(t, err)
	restore, err := ResolveGptkMethod("restore_from_trash")
	require.NoError(t, err)
	assert.Equal(t, trash.RPCID, restore.RPCID)
	assert.True(t, trash.Destructive)
	assert.False(t, restore.Destructive)
}

func TestAllGptkMethodsSortedAndNonEmpty(t *testing.T) {
	methods := AllGptkMethods()
	require.NotEmpty(t, methods)
	for i := 1; i < len(methods); i++ {
		assert.Less(t, methods[i-1].Operation, methods[i].Operation)
	}
}
