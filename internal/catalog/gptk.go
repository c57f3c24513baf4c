// Package catalog holds the static operation catalog, per-operation request
// builders, and per-rpcid response parsers for the native-rpc provider. The
// request builders mirror the positional argument shapes the remote batchexecute
// endpoint expects for each rpcid; the parsers mirror the shapes its replies
// take. Both sides are intentionally data-driven so adding an operation never
// touches the dispatch code in internal/adapters.
package catalog

import (
	"fmt"
	"sort"

	"github.com/evalgo/gphotoctl/internal/model"
)

// RequestBuilder turns job params into the positional argument list the
// rpcclient.Client wraps into the f.req envelope.
type RequestBuilder func(p model.JSONMap) []interface{}

// GptkMethod describes one native-rpc operation.
type GptkMethod struct {
	Operation       string
	RPCID           string
	Description     string
	ParamsTemplate  model.JSONMap
	Build           RequestBuilder
	Destructive     bool
	SourcePathHint  string
}

var gptkMethods = map[string]*GptkMethod{}

func registerGptk(m GptkMethod) {
	if m.SourcePathHint == "" {
		m.SourcePathHint = "/"
	}
	cp := m
	gptkMethods[m.Operation] = &cp
}

func strSlice(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func getParam(p model.JSONMap, key string) interface{} {
	if p == nil {
		return nil
	}
	return p[key]
}

func getString(p model.JSONMap, key, def string) string {
	if v, ok := getParam(p, key).(string); ok {
		return v
	}
	return def
}

func getBool(p model.JSONMap, key string, def bool) bool {
	if v, ok := getParam(p, key).(bool); ok {
		return v
	}
	return def
}

func getInt(p model.JSONMap, key string, def int) int {
	switch v := getParam(p, key).(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func wrapSingle(ids []interface{}) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = []interface{}{id}
	}
	return out
}

func init() {
	registerGptk(GptkMethod{
		Operation:      "get_items_by_taken_date",
		RPCID:          "lcxiM",
		Description:    "List media by taken date timeline.",
		ParamsTemplate: model.JSONMap{"timestamp": nil, "source": nil, "pageId": nil, "pageSize": 500},
		Build: func(p model.JSONMap) []interface{} {
			source := 3
			switch getString(p, "source", "") {
			case "library":
				source = 1
			case "archive":
				source = 2
			}
			return []interface{}{getParam(p, "pageId"), getParam(p, "timestamp"), getInt(p, "pageSize", 500), nil, 1, source}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_items_by_uploaded_date",
		RPCID:          "EzkLib",
		Description:    "List media by upload date.",
		ParamsTemplate: model.JSONMap{"pageId": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{"", []interface{}{[]interface{}{4, "ra", 0, 0}}, getParam(p, "pageId")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "search",
		RPCID:          "EzkLib",
		Description:    "Search media library.",
		ParamsTemplate: model.JSONMap{"searchQuery": "cats", "pageId": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getString(p, "searchQuery", ""), nil, getParam(p, "pageId")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_remote_matches_by_hash",
		RPCID:          "swbisb",
		Description:    "Find remote items by hash list.",
		ParamsTemplate: model.JSONMap{"hashArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{strSlice(getParam(p, "hashArray")), nil, 3, 0}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_favorite_items",
		RPCID:          "EzkLib",
		Description:    "List favorite items.",
		ParamsTemplate: model.JSONMap{"pageId": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{"Favorites", []interface{}{[]interface{}{5, "8", 0, 9}}, getParam(p, "pageId")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_trash_items",
		RPCID:          "zy0IHe",
		Description:    "List trash items.",
		ParamsTemplate: model.JSONMap{"pageId": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "pageId")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_locked_folder_items",
		RPCID:          "nMFwOc",
		Description:    "List locked folder items.",
		ParamsTemplate: model.JSONMap{"pageId": nil, "sourcePath": "/u/0/photos/lockedfolder"},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "pageId")}
		},
		SourcePathHint: "/u/0/photos/lockedfolder",
	})

	registerGptk(GptkMethod{
		Operation:      "move_items_to_trash",
		RPCID:          "XwAOJf",
		Description:    "Move items to trash by dedup keys.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{nil, 1, strSlice(getParam(p, "dedupKeyArray")), 3}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "restore_from_trash",
		RPCID:          "XwAOJf",
		Description:    "Restore trashed items by dedup keys.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{nil, 3, strSlice(getParam(p, "dedupKeyArray")), 2}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_shared_links",
		RPCID:          "F2A0H",
		Description:    "List shared links.",
		ParamsTemplate: model.JSONMap{"pageId": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "pageId"), nil, 2, nil, 3}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_albums",
		RPCID:          "Z5xsfc",
		Description:    "List albums.",
		ParamsTemplate: model.JSONMap{"pageId": nil, "pageSize": 100},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "pageId"), nil, nil, nil, 1, nil, nil, getInt(p, "pageSize", 100), []interface{}{2}, 5}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_album_page",
		RPCID:          "snAcKc",
		Description:    "List album or shared-link page.",
		ParamsTemplate: model.JSONMap{"albumMediaKey": "", "pageId": nil, "authKey": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "albumMediaKey"), getParam(p, "pageId"), nil, getParam(p, "authKey")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "remove_items_from_album",
		RPCID:          "ycV3Nd",
		Description:    "Remove items from album by item-album keys.",
		ParamsTemplate: model.JSONMap{"itemAlbumMediaKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{strSlice(getParam(p, "itemAlbumMediaKeyArray"))}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "create_album",
		RPCID:          "OXvT9d",
		Description:    "Create a new album.",
		ParamsTemplate: model.JSONMap{"albumName": "New Album"},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getString(p, "albumName", "New Album"), nil, 2}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "add_items_to_album",
		RPCID:          "E1Cajb",
		Description:    "Add items to an album or create one by name.",
		ParamsTemplate: model.JSONMap{"mediaKeyArray": []interface{}{}, "albumMediaKey": nil, "albumName": nil},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "mediaKeyArray"))
			if name := getString(p, "albumName", ""); name != "" {
				return []interface{}{keys, nil, name}
			}
			return []interface{}{keys, getParam(p, "albumMediaKey")}
		},
	})

	// add_items_to_shared_album has two distinct payload shapes gated on
	// whether albumName is present. Both branches are kept literally.
	registerGptk(GptkMethod{
		Operation:      "add_items_to_shared_album",
		RPCID:          "laUYf",
		Description:    "Add items to shared album.",
		ParamsTemplate: model.JSONMap{"mediaKeyArray": []interface{}{}, "albumMediaKey": nil, "albumName": nil},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "mediaKeyArray"))
			if name := getString(p, "albumName", ""); name != "" {
				return []interface{}{keys, nil, name}
			}
			idRows := make([]interface{}, len(keys))
			for i, id := range keys {
				idRows[i] = []interface{}{[]interface{}{id}}
			}
			return []interface{}{
				getParam(p, "albumMediaKey"),
				[]interface{}{2, nil, idRows, nil, nil, nil, []interface{}{1}},
			}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "set_album_item_order",
		RPCID:          "QD9nKf",
		Description:    "Reorder items in album.",
		ParamsTemplate: model.JSONMap{"albumMediaKey": "", "albumItemKeys": []interface{}{}, "insertAfter": nil},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "albumItemKeys"))
			items := make([]interface{}, len(keys))
			for i, k := range keys {
				items[i] = []interface{}{[]interface{}{k}}
			}
			if after := getParam(p, "insertAfter"); after != nil {
				return []interface{}{getParam(p, "albumMediaKey"), nil, 3, nil, items, []interface{}{[]interface{}{after}}}
			}
			return []interface{}{getParam(p, "albumMediaKey"), nil, 1, nil, items}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "set_favorite",
		RPCID:          "Ftfh0",
		Description:    "Set favorite/unfavorite by dedup keys.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}, "action": true},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "dedupKeyArray"))
			rows := make([]interface{}, len(keys))
			for i, k := range keys {
				rows[i] = []interface{}{nil, k}
			}
			action := 2
			if getBool(p, "action", true) {
				action = 1
			}
			return []interface{}{rows, []interface{}{action}}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "set_archive",
		RPCID:          "w7TP3c",
		Description:    "Set archive/unarchive by dedup keys.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}, "action": true},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "dedupKeyArray"))
			action := 2
			if getBool(p, "action", true) {
				action = 1
			}
			rows := make([]interface{}, len(keys))
			for i, k := range keys {
				rows[i] = []interface{}{nil, []interface{}{action}, []interface{}{nil, k}}
			}
			return []interface{}{rows, nil, 1}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "move_to_locked_folder",
		RPCID:          "StLnCe",
		Description:    "Move items to locked folder.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}, "sourcePath": "/u/0/photos/lockedfolder"},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{strSlice(getParam(p, "dedupKeyArray")), []interface{}{}}
		},
		Destructive:    true,
		SourcePathHint: "/u/0/photos/lockedfolder",
	})

	registerGptk(GptkMethod{
		Operation:      "remove_from_locked_folder",
		RPCID:          "Pp2Xxe",
		Description:    "Move items out of locked folder.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}, "sourcePath": "/u/0/photos/lockedfolder"},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{strSlice(getParam(p, "dedupKeyArray"))}
		},
		Destructive:    true,
		SourcePathHint: "/u/0/photos/lockedfolder",
	})

	registerGptk(GptkMethod{
		Operation:      "get_storage_quota",
		RPCID:          "EzwWhf",
		Description:    "Get account storage quota.",
		ParamsTemplate: model.JSONMap{},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_download_url",
		RPCID:          "pLFTfd",
		Description:    "Get download URLs for media keys.",
		ParamsTemplate: model.JSONMap{"mediaKeyArray": []interface{}{}, "authKey": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{strSlice(getParam(p, "mediaKeyArray")), nil, getParam(p, "authKey")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_download_token",
		RPCID:          "yCLA7",
		Description:    "Request download token for bulk zip.",
		ParamsTemplate: model.JSONMap{"mediaKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{wrapSingle(strSlice(getParam(p, "mediaKeyArray")))}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "check_download_token",
		RPCID:          "dnv2s",
		Description:    "Poll download token status.",
		ParamsTemplate: model.JSONMap{"dlToken": ""},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{[]interface{}{getParam(p, "dlToken")}}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "remove_items_from_shared_album",
		RPCID:          "LjmOue",
		Description:    "Remove items from shared album.",
		ParamsTemplate: model.JSONMap{"albumMediaKey": "", "mediaKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{
				[]interface{}{getParam(p, "albumMediaKey")},
				[]interface{}{strSlice(getParam(p, "mediaKeyArray"))},
				[]interface{}{[]interface{}{nil, nil, nil, []interface{}{nil, []interface{}{}, []interface{}{}}, nil, nil, nil, nil, nil, nil, nil, nil, nil, []interface{}{}}},
			}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "save_shared_media_to_library",
		RPCID:          "V8RKJ",
		Description:    "Save shared-album media to own library.",
		ParamsTemplate: model.JSONMap{"albumMediaKey": "", "mediaKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{strSlice(getParam(p, "mediaKeyArray")), nil, getParam(p, "albumMediaKey")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "save_partner_shared_media_to_library",
		RPCID:          "Es7fke",
		Description:    "Save partner-shared media to own library.",
		ParamsTemplate: model.JSONMap{"mediaKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{wrapSingle(strSlice(getParam(p, "mediaKeyArray")))}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_partner_shared_media",
		RPCID:          "e9T5je",
		Description:    "Get partner shared media page.",
		ParamsTemplate: model.JSONMap{"partnerActorId": "", "gaiaId": "", "pageId": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{
				getParam(p, "pageId"), nil,
				[]interface{}{nil, []interface{}{[]interface{}{[]interface{}{2, 1}}}, []interface{}{getParam(p, "partnerActorId")}, []interface{}{nil, getParam(p, "gaiaId")}, 1},
			}
		},
	})

	registerGptk(GptkMethod{
		Operation:   "set_item_geo_data",
		RPCID:       "EtUHOe",
		Description: "Set geolocation on items.",
		ParamsTemplate: model.JSONMap{
			"dedupKeyArray": []interface{}{}, "center": []interface{}{0, 0},
			"visible1": []interface{}{0, 0}, "visible2": []interface{}{0, 0},
			"scale": 10, "gMapsPlaceId": "",
		},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "dedupKeyArray"))
			rows := make([]interface{}, len(keys))
			for i, k := range keys {
				rows[i] = []interface{}{nil, k}
			}
			center := getParam(p, "center")
			if center == nil {
				center = []interface{}{0, 0}
			}
			v1 := getParam(p, "visible1")
			if v1 == nil {
				v1 = []interface{}{0, 0}
			}
			v2 := getParam(p, "visible2")
			if v2 == nil {
				v2 = []interface{}{0, 0}
			}
			return []interface{}{rows, []interface{}{2, center, []interface{}{v1, v2}, []interface{}{nil, nil, getInt(p, "scale", 10)}, getString(p, "gMapsPlaceId", "")}}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "delete_item_geo_data",
		RPCID:          "EtUHOe",
		Description:    "Delete geolocation from items.",
		ParamsTemplate: model.JSONMap{"dedupKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			keys := strSlice(getParam(p, "dedupKeyArray"))
			rows := make([]interface{}, len(keys))
			for i, k := range keys {
				rows[i] = []interface{}{nil, k}
			}
			return []interface{}{rows, []interface{}{1}}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "set_items_timestamp",
		RPCID:          "DaSgWe",
		Description:    "Bulk set timestamp for items.",
		ParamsTemplate: model.JSONMap{"items": []interface{}{model.JSONMap{"dedupKey": "", "timestampSec": 0, "timezoneSec": 0}}},
		Build: func(p model.JSONMap) []interface{} {
			items := strSlice(getParam(p, "items"))
			rows := make([]interface{}, len(items))
			for i, raw := range items {
				m, _ := raw.(model.JSONMap)
				if m == nil {
					if mm, ok := raw.(map[string]interface{}); ok {
						m = model.JSONMap(mm)
					}
				}
				rows[i] = []interface{}{m["dedupKey"], m["timestampSec"], m["timezoneSec"]}
			}
			return []interface{}{rows}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "set_item_description",
		RPCID:          "AQNOFd",
		Description:    "Set item description.",
		ParamsTemplate: model.JSONMap{"dedupKey": "", "description": ""},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{nil, getString(p, "description", ""), getParam(p, "dedupKey")}
		},
		Destructive: true,
	})

	registerGptk(GptkMethod{
		Operation:      "get_item_info",
		RPCID:          "VrseUb",
		Description:    "Get item basic info.",
		ParamsTemplate: model.JSONMap{"mediaKey": "", "albumMediaKey": nil, "authKey": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "mediaKey"), nil, getParam(p, "authKey"), nil, getParam(p, "albumMediaKey")}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_item_info_ext",
		RPCID:          "fDcn4b",
		Description:    "Get item extended info.",
		ParamsTemplate: model.JSONMap{"mediaKey": "", "authKey": nil},
		Build: func(p model.JSONMap) []interface{} {
			return []interface{}{getParam(p, "mediaKey"), 1, getParam(p, "authKey"), nil, 1}
		},
	})

	registerGptk(GptkMethod{
		Operation:      "get_batch_media_info",
		RPCID:          "EWgK9e",
		Description:    "Get batch media info for media keys.",
		ParamsTemplate: model.JSONMap{"mediaKeyArray": []interface{}{}},
		Build: func(p model.JSONMap) []interface{} {
			ids := wrapSingle(strSlice(getParam(p, "mediaKeyArray")))
			filler := make([]interface{}, 35)
			filler[24] = []interface{}{}
			filler[34] = []interface{}{}
			return []interface{}{[]interface{}{[]interface{}{ids}, []interface{}{filler}}}
		},
	})
}

// ResolveGptkMethod looks up a native-rpc operation, accepting the bare
// name, the legacy "gptk." prefixed form, or the "native-rpc." prefixed
// form catalog.go advertises as the canonical operation name.
func ResolveGptkMethod(operation string) (*GptkMethod, error) {
	normalized := trimGptkPrefix(operation)
	m, ok := gptkMethods[normalized]
	if !ok {
		return nil, fmt.Errorf("catalog: unsupported gptk operation %q (supported: %s)", operation, supportedGptkOperations())
	}
	return m, nil
}

var gptkPrefixes = []string{"native-rpc.", "gptk."}

func trimGptkPrefix(operation string) string {
	for _, prefix := range gptkPrefixes {
		if len(operation) > len(prefix) && operation[:len(prefix)] == prefix {
			return operation[len(prefix):]
		}
	}
	return operation
}

func supportedGptkOperations() string {
	names := make([]string, 0, len(gptkMethods))
	for name := range gptkMethods {
		names = append(names, "gptk."+name)
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// AllGptkMethods returns the registry's methods, stably sorted by operation name.
func AllGptkMethods() []*GptkMethod {
	out := make([]*GptkMethod, 0, len(gptkMethods))
	for _, m := range gptkMethods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}
