package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDestructiveCatalogEntries(t *testing.T) {
	assert.True(t, IsDestructive("native-rpc.move_items_to_trash"))
	assert.True(t, IsDestructive("native-rpc.set_favorite"))
	assert.False(t, IsDestructive("native-rpc.restore_from_trash"))
	assert.False(t, IsDestructive("native-rpc.get_albums"))
}

func TestIsDestructiveFallbackHint(t *testing.T) {
	assert.True(t, IsDestructive("some-future-provider.move_to_trash_bulk"))
}

func TestIsDestructiveAcceptsBareOrPrefixedNames(t *testing.T) {
	assert.True(t, IsDestructive("move_items_to_trash"))
	assert.True(t, IsDestructive("native-rpc.move_items_to_trash"))
}
