// indexer provider: mirrors the remote library, favorites, trash and album
// state into the local media/album index so the resolver and explorer
// queries never have to round-trip the network. Grounded bit-for-bit on
// explorer_service.py's ExplorerService.refresh_index and its page-walking
// helpers (_collect_library_items, _collect_simple_keys, _collect_albums,
// _sync_album_memberships, _upsert_media, _parse_page).
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

const (
	indexerDefaultMaxItems   = 3000
	indexerAlbumMaxItems     = 1000
	indexerMediaInfoChunk    = 120
	indexerMaxItemsPerAlbum  = 3000
)

// IndexerAdapter implements the indexer provider's refresh_index operation.
// It drives paginated native-rpc calls through NativeRPCAdapter rather than
// holding its own rpcclient, so session handling and destructive-op gating
// stay in one place.
type IndexerAdapter struct {
	store  *store.Store
	native *NativeRPCAdapter
}

func NewIndexerAdapter(st *store.Store, native *NativeRPCAdapter) *IndexerAdapter {
	return &IndexerAdapter{store: st, native: native}
}

func (a *IndexerAdapter) CanHandle(p model.Provider) bool {
	return p == model.ProviderIndexer
}

func (a *IndexerAdapter) Run(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	op := trimProviderPrefix(job.Operation, "indexer")
	if op != "refresh_index" {
		return nil, fmt.Errorf("indexer: unsupported operation %q", job.Operation)
	}

	maxItems := intParam(job.Params, "maxItems", indexerDefaultMaxItems)
	includeAlbumMembers, _ := job.Params["includeAlbumMembers"].(bool)
	forceFull, _ := job.Params["forceFull"].(bool)

	if dryRun {
		report(1.0, "dry run: would refresh explorer index")
		return model.JSONMap{
			"dryRun":              true,
			"operation":           "refresh_index",
			"maxItems":            maxItems,
			"includeAlbumMembers": includeAlbumMembers,
			"forceFull":           forceFull,
		}, nil
	}

	report(0.03, "refreshing explorer index")

	if forceFull {
		if err := a.store.DeleteMediaIndexForAccount(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("indexer: clear media index: %w", err)
		}
		if err := a.store.DeleteAlbumIndexForAccount(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("indexer: clear album index: %w", err)
		}
	}

	libraryItems, err := a.collectLibraryItems(ctx, account, job, maxItems, report)
	if err != nil {
		return nil, fmt.Errorf("indexer: collect library items: %w", err)
	}

	mediaKeys := make([]string, 0, len(libraryItems))
	for _, item := range libraryItems {
		mediaKey, _ := item["mediaKey"].(string)
		if mediaKey == "" {
			continue
		}
		mediaKeys = append(mediaKeys, mediaKey)
		if err := a.upsertMedia(ctx, account.ID, item, "library", false); err != nil {
			return nil, fmt.Errorf("indexer: upsert media %s: %w", mediaKey, err)
		}
	}

	report(0.42, "syncing favorites and trash flags")
	favoriteKeys, err := a.collectSimpleKeys(ctx, account, job, "get_favorite_items", maxItems)
	if err != nil {
		return nil, fmt.Errorf("indexer: collect favorites: %w", err)
	}
	trashKeys, err := a.collectSimpleKeys(ctx, account, job, "get_trash_items", maxItems)
	if err != nil {
		return nil, fmt.Errorf("indexer: collect trash: %w", err)
	}
	favoriteSet := toStringSet(favoriteKeys)
	trashSet := toStringSet(trashKeys)

	existing, err := a.store.ListMediaIndexForAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("indexer: list existing media index: %w", err)
	}
	for i := range existing {
		row := existing[i]
		_, row.IsFavorite = favoriteSet[row.MediaKey]
		_, row.IsTrashed = trashSet[row.MediaKey]
		if row.IsTrashed {
			row.Source = "trash"
		} else {
			row.Source = "library"
		}
		if err := a.store.UpsertMediaIndexRow(ctx, &row); err != nil {
			return nil, fmt.Errorf("indexer: sync flags for %s: %w", row.MediaKey, err)
		}
	}

	report(0.55, "syncing albums")
	albums, err := a.collectAlbums(ctx, account, job, indexerAlbumMaxItems)
	if err != nil {
		return nil, fmt.Errorf("indexer: collect albums: %w", err)
	}
	albumKeys := make([]string, 0, len(albums))
	for _, album := range albums {
		mediaKey, _ := album["mediaKey"].(string)
		if mediaKey == "" {
			continue
		}
		albumKeys = append(albumKeys, mediaKey)
		row := &model.AlbumIndexRow{
			AlbumID:           mediaKey,
			AccountID:         account.ID,
			Title:             stringOf(album["title"]),
			OwnerActorID:      stringOf(album["ownerActorId"]),
			ItemCount:         intOf(album["itemCount"]),
			CreationTimestamp: int64Of(album["creationTimestamp"]),
			ModifiedTimestamp: int64Of(album["modifiedTimestamp"]),
			IsShared:          boolOf(album["isShared"]),
			Thumb:             stringOf(album["thumb"]),
			RawInfo:           model.JSONMap(album),
		}
		if err := a.store.UpsertAlbumIndexRow(ctx, row); err != nil {
			return nil, fmt.Errorf("indexer: upsert album %s: %w", mediaKey, err)
		}
	}
	if err := a.store.PruneAlbumIndex(ctx, account.ID, albumKeys); err != nil {
		return nil, fmt.Errorf("indexer: prune album index: %w", err)
	}

	report(0.7, "pulling metadata batch")
	for _, chunk := range chunkStrings(mediaKeys, indexerMediaInfoChunk) {
		infoRows, err := a.fetchBatchMediaInfo(ctx, account, job, chunk)
		if err != nil {
			// best-effort enrichment, mirrors refresh_index swallowing batch errors
			continue
		}
		for _, info := range infoRows {
			mediaKey, _ := info["mediaKey"].(string)
			if mediaKey == "" {
				continue
			}
			row, err := a.store.GetMediaIndexItem(ctx, account.ID, mediaKey)
			if err != nil {
				continue
			}
			if fileName := stringOf(info["fileName"]); fileName != "" {
				row.Filename = fileName
			}
			if info["size"] != nil {
				row.Size = int64Of(info["size"])
			}
			if uploaded := int64Of(info["creationTimestamp"]); uploaded != 0 {
				t := time.Unix(uploaded, 0).UTC()
				row.UploadedAt = &t
			}
			if taken := int64Of(info["timestamp"]); taken != 0 {
				t := time.Unix(taken, 0).UTC()
				row.TakenAt = &t
			}
			row.SpaceFlags = model.JSONMap{
				"takesUpSpace":      info["takesUpSpace"],
				"spaceTaken":        info["spaceTaken"],
				"isOriginalQuality": info["isOriginalQuality"],
			}
			row.MediaType = mediaTypeFromPayload(row.Filename, row.RawInfo["duration"])
			_ = a.store.UpsertMediaIndexRow(ctx, row)
		}
	}

	if includeAlbumMembers {
		report(0.82, "indexing album members")
		if err := a.syncAlbumMemberships(ctx, account, job, albumKeys); err != nil {
			return nil, fmt.Errorf("indexer: sync album memberships: %w", err)
		}
	}

	report(1.0, "explorer index refresh complete")
	return model.JSONMap{
		"library_items":  len(mediaKeys),
		"favorite_items": len(favoriteKeys),
		"trash_items":    len(trashKeys),
		"albums":         len(albumKeys),
		"account_id":     account.ID,
	}, nil
}

// collectLibraryItems walks get_items_by_uploaded_date pages until maxItems
// is reached or the server stops returning a nextPageId.
func (a *IndexerAdapter) collectLibraryItems(ctx context.Context, account *model.Account, job *model.Job, maxItems int, report ProgressFunc) ([]map[string]interface{}, error) {
	items := make([]map[string]interface{}, 0, maxItems)
	var pageID interface{}
	for len(items) < maxItems {
		result, err := a.callGptk(ctx, account, job, "get_items_by_uploaded_date", model.JSONMap{"pageId": pageID})
		if err != nil {
			return nil, err
		}
		page := parsePage(result)
		if len(page.items) == 0 {
			break
		}
		items = append(items, page.items...)
		progress := 0.04 + (float64(len(items))/float64(maxOf(maxItems, 1)))*0.31
		if progress > 0.35 {
			progress = 0.35
		}
		report(progress, fmt.Sprintf("fetched %d library items", len(items)))
		if page.nextPageID == "" {
			break
		}
		pageID = page.nextPageID
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

// collectSimpleKeys walks a paginated gptk operation and keeps only its
// mediaKey values, used for the favorites/trash flag sync.
func (a *IndexerAdapter) collectSimpleKeys(ctx context.Context, account *model.Account, job *model.Job, operation string, maxItems int) ([]string, error) {
	keys := make([]string, 0, maxItems)
	var pageID interface{}
	for len(keys) < maxItems {
		result, err := a.callGptk(ctx, account, job, operation, model.JSONMap{"pageId": pageID})
		if err != nil {
			return nil, err
		}
		page := parsePage(result)
		if len(page.items) == 0 {
			break
		}
		for _, item := range page.items {
			if mediaKey, _ := item["mediaKey"].(string); mediaKey != "" {
				keys = append(keys, mediaKey)
			}
		}
		if page.nextPageID == "" {
			break
		}
		pageID = page.nextPageID
	}
	if len(keys) > maxItems {
		keys = keys[:maxItems]
	}
	return keys, nil
}

func (a *IndexerAdapter) collectAlbums(ctx context.Context, account *model.Account, job *model.Job, maxItems int) ([]map[string]interface{}, error) {
	albums := make([]map[string]interface{}, 0, maxItems)
	var pageID interface{}
	for len(albums) < maxItems {
		result, err := a.callGptk(ctx, account, job, "get_albums", model.JSONMap{"pageId": pageID})
		if err != nil {
			return nil, err
		}
		page := parsePage(result)
		if len(page.items) == 0 {
			break
		}
		albums = append(albums, page.items...)
		if page.nextPageID == "" {
			break
		}
		pageID = page.nextPageID
	}
	if len(albums) > maxItems {
		albums = albums[:maxItems]
	}
	return albums, nil
}

// syncAlbumMemberships clears every row's album_ids then repopulates them
// by walking each album's item pages, mirroring _sync_album_memberships
// literally: there is a window mid-refresh where memberships read empty.
func (a *IndexerAdapter) syncAlbumMemberships(ctx context.Context, account *model.Account, job *model.Job, albumKeys []string) error {
	if err := a.store.ClearAlbumMemberships(ctx, account.ID); err != nil {
		return err
	}

	for _, albumKey := range albumKeys {
		var pageID interface{}
		count := 0
		for count < indexerMaxItemsPerAlbum {
			result, err := a.callGptk(ctx, account, job, "get_album_page", model.JSONMap{"albumMediaKey": albumKey, "pageId": pageID})
			if err != nil {
				return err
			}
			page := parsePage(result)
			if len(page.items) == 0 {
				break
			}
			for _, item := range page.items {
				mediaKey, _ := item["mediaKey"].(string)
				if mediaKey == "" {
					continue
				}
				row, err := a.store.GetMediaIndexItem(ctx, account.ID, mediaKey)
				if err != nil {
					row = &model.MediaIndexRow{MediaKey: mediaKey, AccountID: account.ID, Source: "library", RawInfo: model.JSONMap(item)}
				}
				albumSet := toStringSet(row.AlbumIDs)
				if _, ok := albumSet[albumKey]; !ok {
					row.AlbumIDs = append(row.AlbumIDs, albumKey)
				}
				if err := a.store.UpsertMediaIndexRow(ctx, row); err != nil {
					return err
				}
				count++
			}
			if page.nextPageID == "" {
				break
			}
			pageID = page.nextPageID
		}
	}
	return nil
}

func (a *IndexerAdapter) fetchBatchMediaInfo(ctx context.Context, account *model.Account, job *model.Job, mediaKeys []string) ([]map[string]interface{}, error) {
	result, err := a.callGptk(ctx, account, job, "get_batch_media_info", model.JSONMap{"mediaKeyArray": mediaKeys})
	if err != nil {
		return nil, err
	}
	rows, ok := result["__list__"].([]map[string]interface{})
	if !ok {
		return nil, nil
	}
	return rows, nil
}

func (a *IndexerAdapter) upsertMedia(ctx context.Context, accountID string, item map[string]interface{}, source string, isTrashed bool) error {
	mediaKey, _ := item["mediaKey"].(string)
	if mediaKey == "" {
		return nil
	}
	row, err := a.store.GetMediaIndexItem(ctx, accountID, mediaKey)
	if err != nil {
		row = &model.MediaIndexRow{MediaKey: mediaKey, AccountID: accountID}
	}

	if dedupKey := stringOf(item["dedupKey"]); dedupKey != "" {
		row.DedupKey = dedupKey
	}
	if taken := int64Of(item["timestamp"]); taken != 0 {
		t := time.Unix(taken, 0).UTC()
		row.TakenAt = &t
	}
	if uploaded := int64Of(item["creationTimestamp"]); uploaded != 0 {
		t := time.Unix(uploaded, 0).UTC()
		row.UploadedAt = &t
	}
	if tz := int64Of(item["timezoneOffset"]); tz != 0 {
		row.TimezoneOffset = tz
	}
	if thumb := stringOf(item["thumb"]); thumb != "" {
		row.ThumbURL = thumb
	}
	row.IsArchived = boolOf(item["isArchived"])
	if boolOf(item["isFavorite"]) {
		row.IsFavorite = true
	}
	row.IsTrashed = isTrashed
	row.Source = source
	row.MediaType = mediaTypeFromPayload(row.Filename, item["duration"])
	row.RawInfo = model.JSONMap(item)

	return a.store.UpsertMediaIndexRow(ctx, row)
}

// callGptk synthesizes a native-rpc job for one gptk operation and returns
// its parsed response as a generic map, or the special key "__list__" when
// the parser produced a bare array (get_batch_media_info's shape).
func (a *IndexerAdapter) callGptk(ctx context.Context, account *model.Account, job *model.Job, operation string, params model.JSONMap) (map[string]interface{}, error) {
	sub := &model.Job{
		AccountID: job.AccountID,
		Provider:  model.ProviderNativeRPC,
		Operation: "gptk." + operation,
		Params:    params,
	}
	out, err := a.native.Run(ctx, account, sub, false, NoopProgress())
	if err != nil {
		return nil, err
	}
	switch v := out["result"].(type) {
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		list := make([]map[string]interface{}, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]interface{}); ok {
				list = append(list, m)
			}
		}
		return map[string]interface{}{"__list__": list}, nil
	default:
		return map[string]interface{}{}, nil
	}
}

type pageResult struct {
	items      []map[string]interface{}
	nextPageID string
}

// parsePage mirrors ExplorerService._parse_page: any non-list "items" or
// missing "nextPageId" degrades to an empty page rather than an error.
func parsePage(payload map[string]interface{}) pageResult {
	items := make([]map[string]interface{}, 0)
	if raw, ok := payload["items"].([]interface{}); ok {
		for _, e := range raw {
			if m, ok := e.(map[string]interface{}); ok {
				items = append(items, m)
			}
		}
	}
	return pageResult{items: items, nextPageID: stringOf(payload["nextPageId"])}
}

func mediaTypeFromPayload(fileName string, duration interface{}) string {
	if duration != nil {
		if n := int64Of(duration); n != 0 {
			return "video"
		}
	}
	if fileName == "" {
		return ""
	}
	lower := make([]byte, len(fileName))
	for i := 0; i < len(fileName); i++ {
		c := fileName[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	name := string(lower)
	for _, ext := range []string{".mp4", ".mov", ".mkv", ".avi", ".webm"} {
		if hasSuffix(name, ext) {
			return "video"
		}
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".gif"} {
		if hasSuffix(name, ext) {
			return "image"
		}
	}
	return ""
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func chunkStrings(values []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		out = append(out, values[i:end])
	}
	return out
}

func toStringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func intParam(p model.JSONMap, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolOf(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func intOf(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func int64Of(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
