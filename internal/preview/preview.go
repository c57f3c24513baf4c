// Package preview implements the two-phase commit flow for explorer
// actions: create a TTL-bound PreviewAction describing what a bulk action
// would touch, then commit it into a queued Job once a caller confirms.
// Grounded on action_service.py's ActionService.
package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/resolver"
	"github.com/evalgo/gphotoctl/internal/store"
)

var (
	ErrPreviewNotFound         = errors.New("preview: not found")
	ErrPreviewExpired          = errors.New("preview: expired")
	ErrPreviewAlreadyCommitted = errors.New("preview: already committed or invalid")
	ErrPreviewRequiresConfirm  = errors.New("preview: commit requires explicit confirm=true")
	ErrNoMatches               = errors.New("preview: no matching media keys")
)

// Registry creates and commits explorer-action previews.
type Registry struct {
	store    *store.Store
	resolver *resolver.Resolver
	ttl      time.Duration
}

func New(s *store.Store, r *resolver.Resolver, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Registry{store: s, resolver: r, ttl: ttl}
}

// CreateRequest is the explorer-action preview request: either Query or
// SelectedMediaKeys must resolve to at least one item.
type CreateRequest struct {
	AccountID         string
	Query             *store.ExplorerQuery
	SelectedMediaKeys []string
	Action            string
	ActionParams      model.JSONMap
}

// CreateResult mirrors ActionPreviewResult: the match count, a sample of
// affected items for display, and any resolution warnings.
type CreateResult struct {
	PreviewID       string
	MatchCount      int
	SampleItems     []model.JSONMap
	Warnings        []string
	RequiresConfirm bool
}

// Create resolves the request's targets, stores a sample, and returns a
// preview token the caller must confirm via Commit.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := r.store.CleanupExpiredPreviews(ctx); err != nil {
		return nil, err
	}

	mediaKeys, warnings, err := r.resolver.Resolve(ctx, req.AccountID, req.Query, req.SelectedMediaKeys)
	if err != nil {
		return nil, err
	}
	sampleRows, err := r.resolver.SampleRows(ctx, req.AccountID, mediaKeys, 12)
	if err != nil {
		return nil, err
	}
	sampleItems := make([]model.JSONMap, 0, len(sampleRows))
	for _, row := range sampleRows {
		sampleItems = append(sampleItems, toItemMap(row))
	}

	queryPayload := model.JSONMap{}
	if req.Query != nil {
		queryPayload = queryToMap(*req.Query)
	}

	p := &model.PreviewAction{
		AccountID:        req.AccountID,
		Kind:             model.PreviewExplorerAction,
		Action:           req.Action,
		QueryPayload:     queryPayload,
		ActionParams:     req.ActionParams,
		MatchedMediaKeys: mediaKeys,
		SampleItems:      sampleItems,
		Warnings:         warnings,
		RequiresConfirm:  true,
		Status:           model.PreviewPreviewed,
		ExpiresAt:        time.Now().UTC().Add(r.ttl),
	}
	if err := r.store.CreatePreview(ctx, p); err != nil {
		return nil, err
	}

	return &CreateResult{
		PreviewID:       p.ID,
		MatchCount:      len(mediaKeys),
		SampleItems:     sampleItems,
		Warnings:        warnings,
		RequiresConfirm: true,
	}, nil
}

// CommitResult mirrors ActionCommitResponse.
type CommitResult struct {
	PreviewID string
	JobID     string
	Status    string
}

// Commit validates ownership, expiry, status and confirmation, then builds
// the job the action maps to and enqueues it.
func (r *Registry) Commit(ctx context.Context, accountID, previewID string, confirm bool) (*CommitResult, error) {
	p, err := r.store.GetPreview(ctx, previewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPreviewNotFound
		}
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, ErrPreviewNotFound
	}
	now := time.Now().UTC()
	if p.ExpiresAt.Before(now) {
		p.Status = model.PreviewExpired
		_ = r.store.SavePreview(ctx, p)
		return nil, ErrPreviewExpired
	}
	if p.Status != model.PreviewPreviewed {
		return nil, ErrPreviewAlreadyCommitted
	}
	if p.RequiresConfirm && !confirm {
		return nil, ErrPreviewRequiresConfirm
	}

	provider, operation, params, err := r.buildJobParams(ctx, p)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		AccountID: accountID,
		Provider:  provider,
		Operation: operation,
		DryRun:    false,
		Params:    params,
		Message:   fmt.Sprintf("Queued from preview %s", p.ID),
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	p.Status = model.PreviewCommitted
	jobID := job.ID
	p.CommittedJobID = &jobID
	if err := r.store.SavePreview(ctx, p); err != nil {
		return nil, err
	}

	return &CommitResult{PreviewID: p.ID, JobID: job.ID, Status: string(model.JobQueued)}, nil
}

// Get returns a preview owned by accountID, or nil if absent/not owned.
func (r *Registry) Get(ctx context.Context, accountID, previewID string) (*model.PreviewAction, error) {
	p, err := r.store.GetPreview(ctx, previewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, nil
	}
	return p, nil
}

// buildJobParams is the Action Mapping Table from SPEC_FULL.md §6, grounded
// bit-exact on action_service.py's _build_job_params.
func (r *Registry) buildJobParams(ctx context.Context, p *model.PreviewAction) (model.Provider, string, model.JSONMap, error) {
	mediaKeys := p.MatchedMediaKeys
	if len(mediaKeys) == 0 {
		return "", "", nil, ErrNoMatches
	}

	dedupKeys, err := r.resolver.DedupKeysFor(ctx, p.AccountID, mediaKeys)
	if err != nil {
		return "", "", nil, err
	}

	return mapActionToJob(p.Action, p.ActionParams, mediaKeys, dedupKeys)
}

// mapActionToJob is the pure half of the Action Mapping Table: given an
// action name, its params, and the already-resolved media/dedup keys, it
// returns the provider, native-rpc operation and job params the action maps
// to. Operation strings always carry the "native-rpc." prefix
// catalog.ResolveGptkMethod and the catalog's own advertised operation names
// (catalog.go's Entry.Operation) expect.
func mapActionToJob(rawAction string, rawActionParams model.JSONMap, mediaKeys, dedupKeys []string) (model.Provider, string, model.JSONMap, error) {
	action := strings.ToLower(strings.TrimSpace(rawAction))
	actionParams := rawActionParams
	if actionParams == nil {
		actionParams = model.JSONMap{}
	}

	requireDedup := func() error {
		if len(dedupKeys) == 0 {
			return fmt.Errorf("preview: no dedup keys available for action %q", action)
		}
		return nil
	}

	switch action {
	case "trash", "move_to_trash":
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		return model.ProviderNativeRPC, "native-rpc.move_items_to_trash", model.JSONMap{"dedupKeyArray": dedupKeys, "confirmed": true}, nil

	case "restore", "restore_from_trash":
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		return model.ProviderNativeRPC, "native-rpc.restore_from_trash", model.JSONMap{"dedupKeyArray": dedupKeys, "confirmed": true}, nil

	case "archive":
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		return model.ProviderNativeRPC, "native-rpc.set_archive", model.JSONMap{"dedupKeyArray": dedupKeys, "action": true, "confirmed": true}, nil

	case "unarchive":
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		return model.ProviderNativeRPC, "native-rpc.set_archive", model.JSONMap{"dedupKeyArray": dedupKeys, "action": false, "confirmed": true}, nil

	case "favorite":
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		return model.ProviderNativeRPC, "native-rpc.set_favorite", model.JSONMap{"dedupKeyArray": dedupKeys, "action": true, "confirmed": true}, nil

	case "unfavorite":
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		return model.ProviderNativeRPC, "native-rpc.set_favorite", model.JSONMap{"dedupKeyArray": dedupKeys, "action": false, "confirmed": true}, nil

	case "add_album":
		albumMediaKey, _ := actionParams["album_id"].(string)
		albumName, _ := actionParams["album_name"].(string)
		if albumMediaKey == "" && albumName == "" {
			return "", "", nil, fmt.Errorf("preview: add_album requires action_params.album_id or action_params.album_name")
		}
		params := model.JSONMap{"mediaKeyArray": toInterfaceSlice(mediaKeys), "confirmed": true}
		if albumMediaKey != "" {
			params["albumMediaKey"] = albumMediaKey
		}
		if albumName != "" {
			params["albumName"] = albumName
		}
		return model.ProviderNativeRPC, "native-rpc.add_items_to_album", params, nil

	case "remove_album":
		albumMediaKey, _ := actionParams["album_id"].(string)
		if albumMediaKey == "" {
			return "", "", nil, fmt.Errorf("preview: remove_album requires action_params.album_id")
		}
		return model.ProviderNativeRPC, "native-rpc.remove_items_from_shared_album", model.JSONMap{
			"albumMediaKey": albumMediaKey, "mediaKeyArray": toInterfaceSlice(mediaKeys), "confirmed": true,
		}, nil

	case "set_datetime", "set_timestamp":
		timestampSec, ok := numberParam(actionParams["timestamp_sec"])
		if !ok {
			return "", "", nil, fmt.Errorf("preview: set_datetime requires action_params.timestamp_sec")
		}
		timezoneSec, _ := numberParam(actionParams["timezone_sec"])
		if err := requireDedup(); err != nil {
			return "", "", nil, err
		}
		items := make([]interface{}, 0, len(dedupKeys))
		for _, k := range dedupKeys {
			items = append(items, model.JSONMap{"dedupKey": k, "timestampSec": int64(timestampSec), "timezoneSec": int64(timezoneSec)})
		}
		return model.ProviderNativeRPC, "native-rpc.set_items_timestamp", model.JSONMap{"items": items, "confirmed": true}, nil
	}

	return "", "", nil, fmt.Errorf("preview: unsupported action %q", rawAction)
}

func numberParam(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func toItemMap(row model.MediaIndexRow) model.JSONMap {
	return model.JSONMap{
		"mediaKey":          row.MediaKey,
		"dedupKey":          row.DedupKey,
		"fileName":          row.Filename,
		"size":              row.Size,
		"type":              row.MediaType,
		"isArchived":        row.IsArchived,
		"isFavorite":        row.IsFavorite,
		"isTrashed":         row.IsTrashed,
		"albumIds":          row.AlbumIDs,
		"thumbUrl":          row.ThumbURL,
		"owner":             row.OwnerName,
		"source":            row.Source,
		"timestampTaken":    timeOrNil(row.TakenAt),
		"timestampUploaded": timeOrNil(row.UploadedAt),
	}
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func queryToMap(q store.ExplorerQuery) model.JSONMap {
	return model.JSONMap{
		"source":     q.Source,
		"albumId":    q.AlbumID,
		"search":     q.Search,
		"mediaType":  q.MediaType,
		"sort":       q.Sort,
		"pageCursor": q.PageCursor,
		"pageSize":   q.PageSize,
	}
}
