// previews.go wires the explorer-action, upload, pipeline and advanced
// two-phase-commit flows onto HTTP, grounded on routes_v2/actions.py,
// routes_v2/uploads.py, routes_v2/pipeline.py and routes_v2/advanced.py.
package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evalgo/gphotoctl/internal/catalog"
	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/preview"
	"github.com/evalgo/gphotoctl/internal/store"
)

type previewActionRequest struct {
	AccountID         string             `json:"account_id"`
	Query             *explorerQueryBody `json:"query"`
	SelectedMediaKeys []string           `json:"selected_media_keys"`
	Action            string             `json:"action"`
	ActionParams      model.JSONMap      `json:"action_params"`
}

type explorerQueryBody struct {
	Source     string `json:"source"`
	AlbumID    string `json:"album_id"`
	Search     string `json:"search"`
	DateFrom   *int64 `json:"date_from"`
	DateTo     *int64 `json:"date_to"`
	MediaType  string `json:"media_type"`
	Favorite   *bool  `json:"favorite"`
	Archived   *bool  `json:"archived"`
	Trashed    *bool  `json:"trashed"`
	Sort       string `json:"sort"`
	PageCursor string `json:"page_cursor"`
	PageSize   int    `json:"page_size"`
}

func (b *explorerQueryBody) toStoreQuery() *store.ExplorerQuery {
	if b == nil {
		return nil
	}
	return &store.ExplorerQuery{
		Source: b.Source, AlbumID: b.AlbumID, Search: b.Search,
		DateFrom: b.DateFrom, DateTo: b.DateTo, MediaType: b.MediaType,
		Favorite: b.Favorite, Archived: b.Archived, Trashed: b.Trashed,
		Sort: b.Sort, PageCursor: b.PageCursor, PageSize: b.PageSize,
	}
}

type previewCreatedResponse struct {
	PreviewID       string          `json:"preview_id"`
	MatchCount      int             `json:"match_count,omitempty"`
	TargetCount     int             `json:"target_count,omitempty"`
	SampleItems     []model.JSONMap `json:"sample_items,omitempty"`
	SampleFiles     []string        `json:"sample_files,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	RequiresConfirm bool            `json:"requires_confirm"`
}

type commitRequest struct {
	AccountID string `json:"account_id"`
	PreviewID string `json:"preview_id"`
	Confirm   bool   `json:"confirm"`
}

type commitResponse struct {
	PreviewID string `json:"preview_id"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
}

func toCommitResponse(r *preview.CommitResult) commitResponse {
	return commitResponse{PreviewID: r.PreviewID, JobID: r.JobID, Status: r.Status}
}

func previewError(err error) *echo.HTTPError {
	switch err {
	case preview.ErrPreviewNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case preview.ErrPreviewExpired, preview.ErrPreviewAlreadyCommitted, preview.ErrPreviewRequiresConfirm, preview.ErrNoMatches:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *handlers) previewAction(c echo.Context) error {
	var req previewActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.Create(c.Request().Context(), preview.CreateRequest{
		AccountID:         req.AccountID,
		Query:             req.Query.toStoreQuery(),
		SelectedMediaKeys: req.SelectedMediaKeys,
		Action:            req.Action,
		ActionParams:      req.ActionParams,
	})
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, previewCreatedResponse{
		PreviewID: result.PreviewID, MatchCount: result.MatchCount,
		SampleItems: result.SampleItems, Warnings: result.Warnings,
		RequiresConfirm: result.RequiresConfirm,
	})
}

func (h *handlers) commitAction(c echo.Context) error {
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.Commit(c.Request().Context(), req.AccountID, req.PreviewID, req.Confirm)
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, toCommitResponse(result))
}

func (h *handlers) getActionPreview(c echo.Context) error {
	accountID := c.QueryParam("account_id")
	p, err := h.d.Previews.Get(c.Request().Context(), accountID, c.Param("id"))
	if err != nil {
		return err
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "preview not found")
	}
	return c.JSON(http.StatusOK, p)
}

type previewUploadRequest struct {
	AccountID     string        `json:"account_id"`
	Target        string        `json:"target"`
	Recursive     bool          `json:"recursive"`
	UploadOptions model.JSONMap `json:"upload_options"`
}

func (h *handlers) previewUpload(c echo.Context) error {
	var req previewUploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.CreateUploadPreview(c.Request().Context(), preview.UploadCreateRequest{
		AccountID: req.AccountID, Target: req.Target, Recursive: req.Recursive, UploadOptions: req.UploadOptions,
	})
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, previewCreatedResponse{
		PreviewID: result.PreviewID, TargetCount: result.TargetCount,
		SampleFiles: result.SampleFiles, Warnings: result.Warnings, RequiresConfirm: result.RequiresConfirm,
	})
}

func (h *handlers) commitUpload(c echo.Context) error {
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.CommitUploadPreview(c.Request().Context(), req.AccountID, req.PreviewID, req.Confirm)
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, toCommitResponse(result))
}

type previewPipelineRequest struct {
	AccountID     string        `json:"account_id"`
	InputFiles    []string      `json:"input_files"`
	DisguiseType  string        `json:"disguise_type"`
	Separator     string        `json:"separator"`
	OutputPolicy  model.JSONMap `json:"output_policy"`
	UploadOptions model.JSONMap `json:"upload_options"`
}

func (h *handlers) previewPipeline(c echo.Context) error {
	var req previewPipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.CreatePipelinePreview(c.Request().Context(), preview.PipelineCreateRequest{
		AccountID: req.AccountID, InputFiles: req.InputFiles, DisguiseType: req.DisguiseType,
		Separator: req.Separator, OutputPolicy: req.OutputPolicy, UploadOptions: req.UploadOptions,
	})
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, previewCreatedResponse{
		PreviewID: result.PreviewID, TargetCount: result.TargetCount,
		SampleFiles: result.SampleFiles, Warnings: result.Warnings, RequiresConfirm: result.RequiresConfirm,
	})
}

func (h *handlers) commitPipeline(c echo.Context) error {
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.CommitPipelinePreview(c.Request().Context(), req.AccountID, req.PreviewID, req.Confirm)
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, toCommitResponse(result))
}

type previewAdvancedRequest struct {
	AccountID string        `json:"account_id"`
	Provider  string        `json:"provider"`
	Operation string        `json:"operation"`
	Params    model.JSONMap `json:"params"`
}

type advancedPreviewResponse struct {
	PreviewID       string   `json:"preview_id"`
	Operation       string   `json:"operation"`
	Provider        string   `json:"provider"`
	Warnings        []string `json:"warnings,omitempty"`
	RequiresConfirm bool     `json:"requires_confirm"`
}

func (h *handlers) previewAdvanced(c echo.Context) error {
	var req previewAdvancedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.CreateAdvancedPreview(c.Request().Context(), preview.AdvancedCreateRequest{
		AccountID: req.AccountID, Provider: req.Provider, Operation: req.Operation, Params: req.Params,
	})
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, advancedPreviewResponse{
		PreviewID: result.PreviewID, Operation: result.Operation, Provider: result.Provider,
		Warnings: result.Warnings, RequiresConfirm: result.RequiresConfirm,
	})
}

func (h *handlers) commitAdvanced(c echo.Context) error {
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.d.Previews.CommitAdvancedPreview(c.Request().Context(), req.AccountID, req.PreviewID, req.Confirm)
	if err != nil {
		return previewError(err)
	}
	return c.JSON(http.StatusOK, toCommitResponse(result))
}

func (h *handlers) operationsCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, catalog.Entries())
}
