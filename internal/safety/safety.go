// Package safety gates destructive operations so the worker pool and HTTP
// boundary refuse to run them past a dry-run without explicit confirmation.
package safety

import (
	"strings"

	"github.com/evalgo/gphotoctl/internal/catalog"
)

var (
	destructiveExact = map[string]bool{}
	destructiveShort = map[string]bool{}
)

// fallbackHints catches destructive-sounding operation names that are not
// (yet) present in the catalog, e.g. a future provider adding an operation
// without updating its destructive flag.
var fallbackHints = []string{
	"move_to_trash",
	"move_items_to_trash",
	"set_items_timestamp",
	"set_timestamp",
	"set_archive",
	"set_favorite",
	"remove_items",
	"delete_item_geo_data",
	"move_to_locked_folder",
	"remove_from_locked_folder",
}

func init() {
	for _, e := range catalog.Entries() {
		if !e.Destructive {
			continue
		}
		destructiveExact[e.Operation] = true
		if i := strings.Index(e.Operation, "."); i >= 0 {
			destructiveShort[e.Operation[i+1:]] = true
		}
	}
}

// IsDestructive reports whether operation mutates remote state and must
// therefore pass through the confirm-to-leave-queued gate when not a dry run.
func IsDestructive(operation string) bool {
	normalized := strings.TrimSpace(operation)
	if destructiveExact[normalized] {
		return true
	}
	short := normalized
	if i := strings.Index(normalized, "."); i >= 0 {
		short = normalized[i+1:]
	}
	if destructiveShort[short] {
		return true
	}
	shortLower := strings.ToLower(short)
	for _, hint := range fallbackHints {
		if strings.Contains(shortLower, hint) {
			return true
		}
	}
	return false
}
