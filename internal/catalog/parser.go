package catalog

import "github.com/evalgo/gphotoctl/internal/rpcclient"

// ParserFunc decodes a parsed Node reply into a plain JSON-able shape.
// Parsers never panic: they read through the Node accessors, which are
// total, and callers get back whatever shape they produced even for
// unexpected input.
type ParserFunc func(rpcclient.Node) interface{}

var parserRegistry = map[string]ParserFunc{}

func init() {
	parserRegistry["lcxiM"] = parseLibraryTimelinePage
	parserRegistry["EzkLib"] = parseLibraryGenericPage
	parserRegistry["nMFwOc"] = parseLockedFolderPage
	parserRegistry["F2A0H"] = parseLinksPage
	parserRegistry["Z5xsfc"] = parseAlbumsPage
	parserRegistry["snAcKc"] = parseAlbumItemsPage
	parserRegistry["e9T5je"] = parsePartnerSharedItemsPage
	parserRegistry["zy0IHe"] = parseTrashPage
	parserRegistry["VrseUb"] = parseItemInfo
	parserRegistry["fDcn4b"] = parseItemInfoExt
	parserRegistry["EWgK9e"] = parseBulkMediaInfo
	parserRegistry["dnv2s"] = parseDownloadTokenCheck
	parserRegistry["EzwWhf"] = parseStorageQuota
	parserRegistry["swbisb"] = parseRemoteMatches
}

// ParseResponse decodes payload using the parser registered for rpcid, or
// returns the raw node unchanged when no parser is registered or the
// registered parser panics on an unexpected shape.
func ParseResponse(rpcid string, payload rpcclient.Node) (result interface{}) {
	if payload == nil {
		return nil
	}
	fn, ok := parserRegistry[rpcid]
	if !ok {
		return payload
	}
	defer func() {
		if recover() != nil {
			result = payload
		}
	}()
	return fn(payload)
}

func mapItems(list rpcclient.Node, fn func(rpcclient.Node) interface{}) []interface{} {
	n := rpcclient.Len(list)
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fn(rpcclient.At(list, i)))
	}
	return out
}

func last(n rpcclient.Node) rpcclient.Node {
	l := rpcclient.Len(n)
	if l == 0 {
		return rpcclient.NullNode{}
	}
	return rpcclient.At(n, l-1)
}

func actorParse(n rpcclient.Node) map[string]interface{} {
	return map[string]interface{}{
		"actorId":         rpcclient.At(n, 0),
		"gaiaId":          rpcclient.At(n, 1),
		"name":            rpcclient.At(rpcclient.At(n, 11), 0),
		"gender":          rpcclient.At(rpcclient.At(n, 11), 2),
		"profilePhotoUrl": rpcclient.At(rpcclient.At(n, 12), 0),
	}
}

func libraryItemParse(item rpcclient.Node) interface{} {
	tail := last(item)
	nestedGeo := rpcclient.At(rpcclient.At(rpcclient.At(rpcclient.At(rpcclient.At(tail, 129168200), 1), 4), 0), 1)
	return map[string]interface{}{
		"mediaKey":          rpcclient.Str(rpcclient.At(item, 0)),
		"timestamp":         rpcclient.At(item, 2),
		"timezoneOffset":    rpcclient.At(item, 4),
		"creationTimestamp": rpcclient.At(item, 5),
		"dedupKey":          rpcclient.Str(rpcclient.At(item, 3)),
		"thumb":             rpcclient.At(rpcclient.At(item, 1), 0),
		"resWidth":          rpcclient.At(rpcclient.At(item, 1), 1),
		"resHeight":         rpcclient.At(rpcclient.At(item, 1), 2),
		"isPartialUpload":   rpcclient.NumOrZero(rpcclient.At(rpcclient.At(item, 12), 0)) == 20,
		"isArchived":        rpcclient.BoolOrFalse(rpcclient.At(item, 13)),
		"isFavorite":        rpcclient.At(rpcclient.At(tail, 163238866), 0),
		"duration":          rpcclient.At(rpcclient.At(tail, 76647426), 0),
		"descriptionShort":  rpcclient.At(rpcclient.At(tail, 396644657), 0),
		"isLivePhoto":       rpcclient.Len(rpcclient.At(tail, 146008172)) > 0,
		"livePhotoDuration": rpcclient.At(rpcclient.At(tail, 146008172), 1),
		"geoLocation": map[string]interface{}{
			"coordinates": rpcclient.At(rpcclient.At(rpcclient.At(tail, 129168200), 1), 0),
			"name":        rpcclient.At(nestedGeo, 0),
		},
	}
}

func lockedFolderItemParse(item rpcclient.Node) interface{} {
	tail := last(item)
	return map[string]interface{}{
		"mediaKey":          rpcclient.Str(rpcclient.At(item, 0)),
		"timestamp":         rpcclient.At(item, 2),
		"creationTimestamp": rpcclient.At(item, 5),
		"dedupKey":          rpcclient.Str(rpcclient.At(item, 3)),
		"duration":          rpcclient.At(rpcclient.At(tail, 76647426), 0),
	}
}

func albumParse(item rpcclient.Node) interface{} {
	tail := last(item)
	meta := rpcclient.At(tail, 72930366)
	meta2 := rpcclient.At(meta, 2)
	return map[string]interface{}{
		"mediaKey":           rpcclient.Str(rpcclient.At(item, 0)),
		"ownerActorId":       rpcclient.At(rpcclient.At(item, 6), 0),
		"title":              rpcclient.Str(rpcclient.At(meta, 1)),
		"thumb":              rpcclient.At(rpcclient.At(item, 1), 0),
		"itemCount":          rpcclient.At(meta, 3),
		"creationTimestamp":  rpcclient.At(meta2, 4),
		"modifiedTimestamp":  rpcclient.At(meta2, 9),
		"timestampRange":     []interface{}{rpcclient.At(meta2, 5), rpcclient.At(meta2, 6)},
		"isShared":           rpcclient.BoolOrFalse(rpcclient.At(meta, 4)),
	}
}

func albumItemParse(item rpcclient.Node) interface{} {
	tail := last(item)
	return map[string]interface{}{
		"mediaKey":          rpcclient.Str(rpcclient.At(item, 0)),
		"thumb":             rpcclient.At(rpcclient.At(item, 1), 0),
		"resWidth":          rpcclient.At(rpcclient.At(item, 1), 1),
		"resHeight":         rpcclient.At(rpcclient.At(item, 1), 2),
		"timestamp":         rpcclient.At(item, 2),
		"timezoneOffset":    rpcclient.At(item, 4),
		"creationTimestamp": rpcclient.At(item, 5),
		"dedupKey":          rpcclient.Str(rpcclient.At(item, 3)),
		"isLivePhoto":       rpcclient.Len(rpcclient.At(tail, 146008172)) > 0,
		"livePhotoDuration": rpcclient.At(rpcclient.At(tail, 146008172), 1),
		"duration":          rpcclient.At(rpcclient.At(tail, 76647426), 0),
	}
}

func trashItemParse(item rpcclient.Node) interface{} {
	tail := last(item)
	return map[string]interface{}{
		"mediaKey":          rpcclient.Str(rpcclient.At(item, 0)),
		"thumb":             rpcclient.At(rpcclient.At(item, 1), 0),
		"resWidth":          rpcclient.At(rpcclient.At(item, 1), 1),
		"resHeight":         rpcclient.At(rpcclient.At(item, 1), 2),
		"timestamp":         rpcclient.At(item, 2),
		"timezoneOffset":    rpcclient.At(item, 4),
		"creationTimestamp": rpcclient.At(item, 5),
		"dedupKey":          rpcclient.Str(rpcclient.At(item, 3)),
		"duration":          rpcclient.At(rpcclient.At(tail, 76647426), 0),
	}
}

func bulkMediaInfoItemParse(item rpcclient.Node) interface{} {
	info := rpcclient.At(item, 1)
	tail := last(info)
	takesUpSpace := rpcclient.At(tail, 0)
	origQuality := rpcclient.At(tail, 2)
	var takesUpSpacePtr, origQualityPtr interface{}
	if _, isNull := takesUpSpace.(rpcclient.NullNode); !isNull {
		takesUpSpacePtr = rpcclient.NumOrZero(takesUpSpace) == 1
	}
	if _, isNull := origQuality.(rpcclient.NullNode); !isNull {
		origQualityPtr = rpcclient.NumOrZero(origQuality) == 2
	}
	return map[string]interface{}{
		"mediaKey":          rpcclient.Str(rpcclient.At(item, 0)),
		"descriptionFull":   rpcclient.Str(rpcclient.At(info, 2)),
		"fileName":          rpcclient.Str(rpcclient.At(info, 3)),
		"timestamp":         rpcclient.At(info, 6),
		"timezoneOffset":    rpcclient.At(info, 7),
		"creationTimestamp": rpcclient.At(info, 8),
		"size":              rpcclient.At(info, 9),
		"takesUpSpace":      takesUpSpacePtr,
		"spaceTaken":        rpcclient.At(tail, 1),
		"isOriginalQuality": origQualityPtr,
	}
}

func parseLibraryTimelinePage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"items":              mapItems(rpcclient.At(data, 0), libraryItemParse),
		"nextPageId":         rpcclient.Str(rpcclient.At(data, 1)),
		"lastItemTimestamp":  int64(rpcclient.NumOrZero(rpcclient.At(data, 2))),
	}
}

func parseLibraryGenericPage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"items":      mapItems(rpcclient.At(data, 0), libraryItemParse),
		"nextPageId": rpcclient.Str(rpcclient.At(data, 1)),
	}
}

func parseLockedFolderPage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"nextPageId": rpcclient.Str(rpcclient.At(data, 0)),
		"items":      mapItems(rpcclient.At(data, 1), lockedFolderItemParse),
	}
}

func parseLinksPage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"items": mapItems(rpcclient.At(data, 0), func(item rpcclient.Node) interface{} {
			return map[string]interface{}{
				"mediaKey":  rpcclient.Str(rpcclient.At(item, 6)),
				"linkId":    rpcclient.Str(rpcclient.At(item, 17)),
				"itemCount": rpcclient.At(item, 3),
			}
		}),
		"nextPageId": rpcclient.Str(rpcclient.At(data, 1)),
	}
}

func parseAlbumsPage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"items":      mapItems(rpcclient.At(data, 0), albumParse),
		"nextPageId": rpcclient.Str(rpcclient.At(data, 1)),
	}
}

func parseAlbumItemsPage(data rpcclient.Node) interface{} {
	meta := rpcclient.At(data, 3)
	return map[string]interface{}{
		"items":      mapItems(rpcclient.At(data, 1), albumItemParse),
		"nextPageId": rpcclient.Str(rpcclient.At(data, 2)),
		"mediaKey":   rpcclient.Str(rpcclient.At(meta, 0)),
		"title":      rpcclient.Str(rpcclient.At(meta, 1)),
		"owner":      actorParse(rpcclient.At(meta, 5)),
		"itemCount":  rpcclient.At(meta, 21),
		"authKey":    rpcclient.Str(rpcclient.At(meta, 19)),
		"members":    mapItems(rpcclient.At(meta, 9), actorParse),
	}
}

func parsePartnerSharedItemsPage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"nextPageId":     rpcclient.Str(rpcclient.At(data, 0)),
		"items":          mapItems(rpcclient.At(data, 1), albumItemParse),
		"members":        mapItems(rpcclient.At(data, 2), actorParse),
		"partnerActorId": rpcclient.Str(rpcclient.At(data, 4)),
		"gaiaId":         rpcclient.Str(rpcclient.At(data, 5)),
	}
}

func parseTrashPage(data rpcclient.Node) interface{} {
	return map[string]interface{}{
		"items":      mapItems(rpcclient.At(data, 0), trashItemParse),
		"nextPageId": rpcclient.Str(rpcclient.At(data, 1)),
	}
}

func parseItemInfo(data rpcclient.Node) interface{} {
	media := rpcclient.At(data, 0)
	meta := rpcclient.At(media, 15)
	return map[string]interface{}{
		"mediaKey":            rpcclient.Str(rpcclient.At(media, 0)),
		"dedupKey":            rpcclient.Str(rpcclient.At(media, 3)),
		"timestamp":           rpcclient.At(media, 2),
		"timezoneOffset":      rpcclient.At(media, 4),
		"creationTimestamp":   rpcclient.At(media, 5),
		"downloadUrl":         rpcclient.Str(rpcclient.At(data, 1)),
		"downloadOriginalUrl": rpcclient.Str(rpcclient.At(data, 7)),
		"isArchived":          rpcclient.BoolOrFalse(rpcclient.At(media, 13)),
		"isFavorite":          rpcclient.At(rpcclient.At(meta, 163238866), 0),
		"duration":            rpcclient.At(rpcclient.At(meta, 76647426), 0),
		"descriptionFull":     rpcclient.Str(rpcclient.At(data, 10)),
		"thumb":               rpcclient.At(data, 12),
	}
}

func parseItemInfoExt(data rpcclient.Node) interface{} {
	item0 := rpcclient.At(data, 0)
	owner := rpcclient.At(rpcclient.At(rpcclient.At(item0, 27), 4), 0)
	if rpcclient.Len(owner) == 0 {
		owner = rpcclient.At(item0, 28)
	}
	return map[string]interface{}{
		"mediaKey":          rpcclient.Str(rpcclient.At(item0, 0)),
		"dedupKey":          rpcclient.Str(rpcclient.At(item0, 11)),
		"descriptionFull":   rpcclient.Str(rpcclient.At(item0, 1)),
		"fileName":          rpcclient.Str(rpcclient.At(item0, 2)),
		"timestamp":         rpcclient.At(item0, 3),
		"timezoneOffset":    rpcclient.At(item0, 4),
		"size":              rpcclient.At(item0, 5),
		"resWidth":          rpcclient.At(item0, 6),
		"resHeight":         rpcclient.At(item0, 7),
		"albums":            mapItems(rpcclient.At(item0, 19), albumParse),
		"owner":             actorParse(owner),
		"other":             rpcclient.At(item0, 31),
	}
}

func parseBulkMediaInfo(data rpcclient.Node) interface{} {
	return mapItems(data, bulkMediaInfoItemParse)
}

func parseDownloadTokenCheck(data rpcclient.Node) interface{} {
	node := rpcclient.At(rpcclient.At(rpcclient.At(rpcclient.At(rpcclient.At(data, 0), 0), 0), 2), 0)
	return map[string]interface{}{
		"fileName":      rpcclient.Str(rpcclient.At(node, 0)),
		"downloadUrl":   rpcclient.Str(rpcclient.At(node, 1)),
		"downloadSize":  rpcclient.At(node, 2),
		"unzippedSize":  rpcclient.At(node, 3),
	}
}

func parseStorageQuota(data rpcclient.Node) interface{} {
	q := rpcclient.At(data, 6)
	return map[string]interface{}{
		"totalUsed":      rpcclient.NumOrZero(rpcclient.At(q, 0)),
		"totalAvailable": rpcclient.NumOrZero(rpcclient.At(q, 1)),
		"usedByGPhotos":  rpcclient.NumOrZero(rpcclient.At(q, 3)),
	}
}

func parseRemoteMatches(data rpcclient.Node) interface{} {
	rows := rpcclient.At(data, 0)
	return mapItems(rows, func(row rpcclient.Node) interface{} {
		item := rpcclient.At(row, 1)
		return map[string]interface{}{
			"hash":              rpcclient.Str(rpcclient.At(row, 0)),
			"mediaKey":          rpcclient.Str(rpcclient.At(item, 0)),
			"thumb":             rpcclient.At(rpcclient.At(item, 1), 0),
			"resWidth":          rpcclient.At(rpcclient.At(item, 1), 1),
			"resHeight":         rpcclient.At(rpcclient.At(item, 1), 2),
			"timestamp":         rpcclient.At(item, 2),
			"dedupKey":          rpcclient.Str(rpcclient.At(item, 3)),
			"timezoneOffset":    rpcclient.At(item, 4),
			"creationTimestamp": rpcclient.At(item, 5),
		}
	})
}
