package catalog

import (
	"sort"

	"github.com/evalgo/gphotoctl/internal/model"
)

// Entry describes one operation for the /operations/catalog listing: a
// provider, its dotted operation name, a params template for UI form
// generation, and whether invoking it mutates remote state.
type Entry struct {
	Provider       string
	Operation      string
	Description    string
	ParamsTemplate model.JSONMap
	Destructive    bool
	Notes          []string
}

// Entries returns the full operation catalog across all providers, sorted
// by (provider, operation) to match list stability guarantees callers rely on.
func Entries() []Entry {
	entries := []Entry{
		{
			Provider:    "bulk-upload",
			Operation:   "bulk-upload.upload",
			Description: "Upload media from a local file or folder target.",
			ParamsTemplate: model.JSONMap{
				"target": ".", "recursive": false, "albumName": nil,
				"deleteFromHost": false, "filterExp": "", "filterExclude": false,
			},
			Destructive: false,
			Notes:       []string{"Backed by S3-compatible object storage."},
		},
		{
			Provider:       "bulk-upload",
			Operation:      "bulk-upload.move_to_trash",
			Description:    "Move remote media to trash by content hash.",
			ParamsTemplate: model.JSONMap{"sha1Hashes": []interface{}{}},
			Destructive:    true,
			Notes:          []string{"Dry-run first, then confirmed run."},
		},
		{
			Provider:       "bulk-upload",
			Operation:      "bulk-upload.add_to_album",
			Description:    "Add uploaded media keys into an album.",
			ParamsTemplate: model.JSONMap{"mediaKeys": []interface{}{}, "albumName": "Album Name"},
			Destructive:    false,
		},
		{
			Provider:       "bulk-upload",
			Operation:      "bulk-upload.get_media_key_by_hash",
			Description:    "Look up a media key by content hash.",
			ParamsTemplate: model.JSONMap{"sha1Hash": ""},
			Destructive:    false,
		},
		{
			Provider:       "bulk-upload",
			Operation:      "bulk-upload.update_cache",
			Description:    "Sync the local upload-dedup cache database.",
			ParamsTemplate: model.JSONMap{},
			Destructive:    false,
		},
		{
			Provider:    "file-disguise",
			Operation:   "file-disguise.hide",
			Description: "Hide files inside image/video containers.",
			ParamsTemplate: model.JSONMap{
				"files": []interface{}{"*.txt"}, "containerType": "image",
				"output": nil, "separator": "FILE_DATA_BEGIN",
			},
			Destructive: false,
		},
		{
			Provider:    "file-disguise",
			Operation:   "file-disguise.extract",
			Description: "Extract hidden payloads from media containers.",
			ParamsTemplate: model.JSONMap{
				"files": []interface{}{"*.bmp", "*.mp4"}, "output": nil,
				"separator": "FILE_DATA_BEGIN", "suffix": ".restored",
			},
			Destructive: false,
		},
		{
			Provider:    "advanced",
			Operation:   "advanced.rpc_execute",
			Description: "Execute an arbitrary native RPC call manually.",
			ParamsTemplate: model.JSONMap{
				"rpcid": "EzwWhf", "requestData": []interface{}{}, "sourcePath": "/", "forceBootstrap": false,
			},
			Destructive: false,
			Notes:       []string{"Use when an operation is not covered by presets."},
		},
	}

	for _, m := range AllGptkMethods() {
		entries = append(entries, Entry{
			Provider:       "native-rpc",
			Operation:      "native-rpc." + m.Operation,
			Description:    m.Description,
			ParamsTemplate: m.ParamsTemplate,
			Destructive:    m.Destructive,
			Notes: []string{
				"Returns raw RPC payload if no parser is registered for the rpcid.",
				"rpcid=" + m.RPCID,
				"sourcePath hint: " + m.SourcePathHint,
			},
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].Operation < entries[j].Operation
	})
	return entries
}
