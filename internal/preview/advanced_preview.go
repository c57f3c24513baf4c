// advanced_preview.go previews and commits an arbitrary catalog or raw
// native-rpc operation, grounded on advanced_service.py's AdvancedService.
// Unlike the explorer-action flow it never resolves media keys: it merely
// records the operation name and params for a confirm step, deferring all
// validation to the adapter that eventually runs it.
package preview

import (
	"fmt"
	"strings"
	"time"

	"context"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/safety"
)

// AdvancedCreateRequest mirrors AdvancedPreviewRequest.
type AdvancedCreateRequest struct {
	AccountID string
	Provider  string
	Operation string
	Params    model.JSONMap
}

// AdvancedPreviewResult mirrors AdvancedPreviewResult.
type AdvancedPreviewResult struct {
	PreviewID       string
	Operation       string
	Provider        string
	Warnings        []string
	RequiresConfirm bool
}

// CreateAdvancedPreview records a pending operation+params pair for confirm,
// flagging a warning when the operation is destructive.
func (r *Registry) CreateAdvancedPreview(ctx context.Context, req AdvancedCreateRequest) (*AdvancedPreviewResult, error) {
	if err := r.store.CleanupExpiredPreviews(ctx); err != nil {
		return nil, err
	}

	operation := req.Operation
	if !strings.HasPrefix(operation, req.Provider+".") {
		operation = req.Provider + "." + operation
	}

	var warnings []string
	if safety.IsDestructive(operation) {
		warnings = append(warnings, "Operation is destructive. Confirm explicitly before commit.")
	}

	p := &model.PreviewAction{
		AccountID:       req.AccountID,
		Kind:            model.PreviewAdvanced,
		Action:          operation,
		QueryPayload:    model.JSONMap{},
		ActionParams:    req.Params,
		RequiresConfirm: true,
		Status:          model.PreviewPreviewed,
		ExpiresAt:       time.Now().UTC().Add(r.ttl),
	}
	if err := r.store.CreatePreview(ctx, p); err != nil {
		return nil, err
	}

	return &AdvancedPreviewResult{
		PreviewID:       p.ID,
		Operation:       operation,
		Provider:        req.Provider,
		Warnings:        warnings,
		RequiresConfirm: true,
	}, nil
}

// CommitAdvancedPreview enqueues the previewed operation as a job, stamping
// params.confirmed = true the way every committed job in this system does.
func (r *Registry) CommitAdvancedPreview(ctx context.Context, accountID, previewID string, confirm bool) (*CommitResult, error) {
	p, err := r.validateCommittable(ctx, accountID, previewID, confirm)
	if err != nil {
		return nil, err
	}
	if p.Kind != model.PreviewAdvanced {
		return nil, fmt.Errorf("preview: %s is not an advanced preview", previewID)
	}

	operation := p.Action
	providerName := "native-rpc"
	if i := strings.Index(operation, "."); i >= 0 {
		providerName = operation[:i]
	}

	params := asJSONMap(p.ActionParams)
	if params == nil {
		params = model.JSONMap{}
	}
	params["confirmed"] = true

	return r.enqueueFromPreview(ctx, p, model.Provider(providerName), operation, params)
}
