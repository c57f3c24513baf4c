// explorer.go serves the local media/album index and triggers refreshes
// against the indexer adapter, grounded on routes_v2/explorer.py.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

type albumOut struct {
	AlbumID           string        `json:"album_id"`
	Title             string        `json:"title"`
	OwnerActorID      string        `json:"owner_actor_id,omitempty"`
	ItemCount         int           `json:"item_count"`
	IsShared          bool          `json:"is_shared"`
	Thumb             string        `json:"thumb,omitempty"`
	CreationTimestamp int64         `json:"creation_timestamp,omitempty"`
	ModifiedTimestamp int64         `json:"modified_timestamp,omitempty"`
	RawInfo           model.JSONMap `json:"raw_info,omitempty"`
}

func toAlbumOut(a model.AlbumIndexRow) albumOut {
	return albumOut{
		AlbumID: a.AlbumID, Title: a.Title, OwnerActorID: a.OwnerActorID,
		ItemCount: a.ItemCount, IsShared: a.IsShared, Thumb: a.Thumb,
		CreationTimestamp: a.CreationTimestamp, ModifiedTimestamp: a.ModifiedTimestamp, RawInfo: a.RawInfo,
	}
}

func (h *handlers) listAlbums(c echo.Context) error {
	accountID := c.QueryParam("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}
	rows, err := h.d.Store.ListAlbumIndex(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	out := make([]albumOut, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAlbumOut(r))
	}
	return c.JSON(http.StatusOK, out)
}

type mediaItemOut struct {
	MediaKey   string        `json:"media_key"`
	DedupKey   string        `json:"dedup_key,omitempty"`
	Filename   string        `json:"filename,omitempty"`
	MimeType   string        `json:"mime_type,omitempty"`
	MediaType  string        `json:"media_type,omitempty"`
	Source     string        `json:"source,omitempty"`
	Size       int64         `json:"size,omitempty"`
	ThumbURL   string        `json:"thumb_url,omitempty"`
	OwnerName  string        `json:"owner_name,omitempty"`
	IsFavorite bool          `json:"is_favorite"`
	IsTrashed  bool          `json:"is_trashed"`
	IsArchived bool          `json:"is_archived"`
	TakenAt    *int64        `json:"taken_at,omitempty"`
	UploadedAt *int64        `json:"uploaded_at,omitempty"`
	AlbumIDs   []string      `json:"album_ids,omitempty"`
	RawInfo    model.JSONMap `json:"raw_info,omitempty"`
}

func toMediaItemOut(r model.MediaIndexRow) mediaItemOut {
	out := mediaItemOut{
		MediaKey: r.MediaKey, DedupKey: r.DedupKey, Filename: r.Filename, MimeType: r.MimeType,
		MediaType: r.MediaType, Source: r.Source, Size: r.Size, ThumbURL: r.ThumbURL,
		OwnerName: r.OwnerName, IsFavorite: r.IsFavorite, IsTrashed: r.IsTrashed,
		IsArchived: r.IsArchived, AlbumIDs: r.AlbumIDs, RawInfo: r.RawInfo,
	}
	if r.TakenAt != nil {
		v := r.TakenAt.Unix()
		out.TakenAt = &v
	}
	if r.UploadedAt != nil {
		v := r.UploadedAt.Unix()
		out.UploadedAt = &v
	}
	return out
}

type queryItemsResponse struct {
	Items      []mediaItemOut `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func parseBoolParam(v string) *bool {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func parseInt64Param(v string) *int64 {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func (h *handlers) queryItems(c echo.Context) error {
	accountID := c.QueryParam("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}
	pageSize := 100
	if v := c.QueryParam("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pageSize = n
		}
	}
	q := store.ExplorerQuery{
		Source:     c.QueryParam("source"),
		AlbumID:    c.QueryParam("album_id"),
		Search:     c.QueryParam("search"),
		DateFrom:   parseInt64Param(c.QueryParam("date_from")),
		DateTo:     parseInt64Param(c.QueryParam("date_to")),
		MediaType:  c.QueryParam("media_type"),
		Favorite:   parseBoolParam(c.QueryParam("favorite")),
		Archived:   parseBoolParam(c.QueryParam("archived")),
		Trashed:    parseBoolParam(c.QueryParam("trashed")),
		Sort:       c.QueryParam("sort"),
		PageCursor: c.QueryParam("page_cursor"),
		PageSize:   pageSize,
	}
	rows, next, err := h.d.Store.QueryMediaIndex(c.Request().Context(), accountID, q)
	if err != nil {
		return err
	}
	items := make([]mediaItemOut, 0, len(rows))
	for _, r := range rows {
		items = append(items, toMediaItemOut(r))
	}
	return c.JSON(http.StatusOK, queryItemsResponse{Items: items, NextCursor: next})
}

func (h *handlers) getItem(c echo.Context) error {
	accountID := c.QueryParam("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}
	row, err := h.d.Store.GetMediaIndexItem(c.Request().Context(), accountID, c.Param("media_key"))
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, toMediaItemOut(*row))
}

type refreshIndexRequest struct {
	AccountID           string `json:"account_id"`
	MaxItems            int    `json:"max_items"`
	IncludeAlbumMembers bool   `json:"include_album_members"`
	ForceFull           bool   `json:"force_full"`
}

// refreshIndex queues an indexer job rather than running it inline, so a
// large library walk does not block the HTTP request.
func (h *handlers) refreshIndex(c echo.Context) error {
	var req refreshIndexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AccountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}
	job := &model.Job{
		AccountID: req.AccountID,
		Provider:  model.ProviderIndexer,
		Operation: "indexer.refresh_index",
		DryRun:    false,
		Params: model.JSONMap{
			"maxItems":            req.MaxItems,
			"includeAlbumMembers": req.IncludeAlbumMembers,
			"forceFull":           req.ForceFull,
			"confirmed":           true,
		},
	}
	if err := h.d.Store.CreateJob(c.Request().Context(), job); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toJobOut(job))
}
