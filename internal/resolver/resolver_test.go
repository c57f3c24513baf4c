package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupPreservesOrderAndDropsEmpty(t *testing.T) {
	in := []string{"a", "b", "a", "", "c", "b"}
	assert.Equal(t, []string{"a", "b", "c"}, dedup(in))
}
