// file_preview.go implements the two remaining two-phase-commit flows that
// operate on local filesystem targets rather than resolved media keys: the
// bulk-upload preview (grounded on upload_service.py's UploadService) and
// the disguise-then-upload pipeline preview (grounded on
// pipeline_service.py's PipelineService). Both run their
// expire/status/confirm checks through the shared validateCommittable
// helper; Commit in preview.go performs the same checks inline.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

var fileMediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".gif": true, ".webp": true, ".raw": true, ".dng": true, ".cr2": true, ".nef": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".m4v": true, ".3gp": true,
}

func isMediaPath(path string) bool {
	return fileMediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// collectMediaFiles walks target (a file or directory) and returns every
// media file found, mirroring file_utils.collect_media_files.
func collectMediaFiles(target string, recursive bool) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("preview: stat target %q: %w", target, err)
	}
	if !info.IsDir() {
		if isMediaPath(target) {
			return []string{target}, nil
		}
		return nil, nil
	}

	var files []string
	if recursive {
		err = filepath.Walk(target, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !fi.IsDir() && isMediaPath(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("preview: walk target %q: %w", target, err)
		}
		return files, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("preview: read dir %q: %w", target, err)
	}
	for _, e := range entries {
		if !e.IsDir() && isMediaPath(e.Name()) {
			files = append(files, filepath.Join(target, e.Name()))
		}
	}
	return files, nil
}

// expandPatterns resolves each entry as a literal file, directory (walked
// recursively) or glob pattern, deduped by resolved absolute path.
// Mirrors file_utils.expand_patterns.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		if err == nil && !info.IsDir() {
			files = append(files, pattern)
			continue
		}
		if err == nil && info.IsDir() {
			walkErr := filepath.Walk(pattern, func(path string, fi os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !fi.IsDir() {
					files = append(files, path)
				}
				return nil
			})
			if walkErr != nil {
				return nil, walkErr
			}
			continue
		}
		matches, globErr := filepath.Glob(pattern)
		if globErr != nil {
			return nil, fmt.Errorf("preview: glob %q: %w", pattern, globErr)
		}
		for _, m := range matches {
			if mi, statErr := os.Stat(m); statErr == nil && !mi.IsDir() {
				files = append(files, m)
			}
		}
	}

	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

func sampleStrings(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func toSampleItems(paths []string) []model.JSONMap {
	items := make([]model.JSONMap, 0, len(paths))
	for _, p := range paths {
		items = append(items, model.JSONMap{"path": p})
	}
	return items
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asJSONMap(v interface{}) model.JSONMap {
	switch m := v.(type) {
	case model.JSONMap:
		return m
	case map[string]interface{}:
		return model.JSONMap(m)
	default:
		return model.JSONMap{}
	}
}

// validateCommittable applies the shared expiry/ownership/status/confirm
// checks every commit_preview variant in the reference services performs
// before building its job.
func (r *Registry) validateCommittable(ctx context.Context, accountID, previewID string, confirm bool) (*model.PreviewAction, error) {
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
	return p, nil
}

func (r *Registry) enqueueFromPreview(ctx context.Context, p *model.PreviewAction, provider model.Provider, operation string, params model.JSONMap) (*CommitResult, error) {
	job := &model.Job{
		AccountID: p.AccountID,
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

// FilePreviewResult mirrors UploadPreviewResult / PipelinePreviewResult.
type FilePreviewResult struct {
	PreviewID       string
	TargetCount     int
	SampleFiles     []string
	Warnings        []string
	RequiresConfirm bool
}

// UploadCreateRequest mirrors UploadPreviewRequest.
type UploadCreateRequest struct {
	AccountID     string
	Target        string
	Recursive     bool
	UploadOptions model.JSONMap
}

// CreateUploadPreview previews a bulk-upload.upload job without enqueuing it.
func (r *Registry) CreateUploadPreview(ctx context.Context, req UploadCreateRequest) (*FilePreviewResult, error) {
	if err := r.store.CleanupExpiredPreviews(ctx); err != nil {
		return nil, err
	}
	files, err := collectMediaFiles(req.Target, req.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("preview: no media files found in target %q", req.Target)
	}
	sample := sampleStrings(files, 20)

	p := &model.PreviewAction{
		AccountID:        req.AccountID,
		Kind:             model.PreviewUpload,
		Action:           "bulk-upload.upload",
		QueryPayload:     model.JSONMap{"target": req.Target, "recursive": req.Recursive},
		ActionParams:     model.JSONMap{"uploadOptions": req.UploadOptions},
		MatchedMediaKeys: files,
		SampleItems:      toSampleItems(sample),
		Warnings:         nil,
		RequiresConfirm:  true,
		Status:           model.PreviewPreviewed,
		ExpiresAt:        time.Now().UTC().Add(r.ttl),
	}
	if err := r.store.CreatePreview(ctx, p); err != nil {
		return nil, err
	}

	return &FilePreviewResult{
		PreviewID:       p.ID,
		TargetCount:     len(files),
		SampleFiles:     sample,
		RequiresConfirm: true,
	}, nil
}

// CommitUploadPreview enqueues the bulk-upload job described by a
// previously created upload preview. It re-sends the original target and
// recursive flag rather than the snapshotted file list, since
// BulkUploadAdapter walks a target itself.
func (r *Registry) CommitUploadPreview(ctx context.Context, accountID, previewID string, confirm bool) (*CommitResult, error) {
	p, err := r.validateCommittable(ctx, accountID, previewID, confirm)
	if err != nil {
		return nil, err
	}
	if p.Kind != model.PreviewUpload {
		return nil, fmt.Errorf("preview: %s is not an upload preview", previewID)
	}

	target, _ := p.QueryPayload["target"].(string)
	recursive, _ := p.QueryPayload["recursive"].(bool)
	if target == "" {
		return nil, fmt.Errorf("preview: upload preview has no target")
	}
	options := asJSONMap(p.ActionParams["uploadOptions"])

	params := model.JSONMap{"target": target, "recursive": recursive, "confirmed": true}
	for k, v := range options {
		params[k] = v
	}
	return r.enqueueFromPreview(ctx, p, model.ProviderBulkUpload, "bulk-upload.upload", params)
}

// PipelineCreateRequest mirrors DisguiseUploadRequest.
type PipelineCreateRequest struct {
	AccountID     string
	InputFiles    []string
	DisguiseType  string
	Separator     string
	OutputPolicy  model.JSONMap
	UploadOptions model.JSONMap
}

// CreatePipelinePreview previews a pipeline.disguise_upload job.
func (r *Registry) CreatePipelinePreview(ctx context.Context, req PipelineCreateRequest) (*FilePreviewResult, error) {
	if err := r.store.CleanupExpiredPreviews(ctx); err != nil {
		return nil, err
	}
	files, err := expandPatterns(req.InputFiles)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("preview: no input files found for pipeline")
	}

	p := &model.PreviewAction{
		AccountID: req.AccountID,
		Kind:      model.PreviewPipelineDisguiseUpld,
		Action:    "pipeline.disguise_upload",
		QueryPayload: model.JSONMap{
			"inputFiles":   req.InputFiles,
			"disguiseType": req.DisguiseType,
			"separator":    req.Separator,
		},
		ActionParams: model.JSONMap{
			"outputPolicy":  req.OutputPolicy,
			"uploadOptions": req.UploadOptions,
		},
		MatchedMediaKeys: files,
		SampleItems:      toSampleItems(sampleStrings(files, 20)),
		Warnings:         nil,
		RequiresConfirm:  true,
		Status:           model.PreviewPreviewed,
		ExpiresAt:        time.Now().UTC().Add(r.ttl),
	}
	if err := r.store.CreatePreview(ctx, p); err != nil {
		return nil, err
	}

	return &FilePreviewResult{
		PreviewID:       p.ID,
		TargetCount:     len(files),
		SampleFiles:     sampleStrings(files, 20),
		RequiresConfirm: true,
	}, nil
}

// CommitPipelinePreview enqueues the pipeline.disguise_upload job described
// by a previously created pipeline preview.
func (r *Registry) CommitPipelinePreview(ctx context.Context, accountID, previewID string, confirm bool) (*CommitResult, error) {
	p, err := r.validateCommittable(ctx, accountID, previewID, confirm)
	if err != nil {
		return nil, err
	}
	if p.Kind != model.PreviewPipelineDisguiseUpld {
		return nil, fmt.Errorf("preview: %s is not a pipeline preview", previewID)
	}

	inputFiles := toStringSlice(p.QueryPayload["inputFiles"])
	if len(inputFiles) == 0 {
		return nil, fmt.Errorf("preview: pipeline preview has no input files")
	}
	disguiseType, _ := p.QueryPayload["disguiseType"].(string)
	separator, _ := p.QueryPayload["separator"].(string)
	outputPolicy := asJSONMap(p.ActionParams["outputPolicy"])
	uploadOptions := asJSONMap(p.ActionParams["uploadOptions"])

	params := model.JSONMap{
		"input_files":          toInterfaceSlice(inputFiles),
		"disguise_type":        disguiseType,
		"separator":            separator,
		"output_policy":        map[string]interface{}(outputPolicy),
		"bulk_upload_options":  map[string]interface{}(uploadOptions),
		"confirmed":            true,
	}
	return r.enqueueFromPreview(ctx, p, model.ProviderPipeline, "pipeline.disguise_upload", params)
}
