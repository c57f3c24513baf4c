// Package store implements the durable, transactional record store for
// accounts, jobs, job events and previews on top of PostgreSQL via GORM,
// following the connection-pool setup this codebase uses for its other
// Postgres-backed services.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/evalgo/gphotoctl/internal/model"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a *gorm.DB with the operations the orchestrator's components need.
type Store struct {
	db *gorm.DB
}

// Config configures the Postgres connection pool.
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to Postgres, configures the pool, and runs AutoMigrate for
// every model the orchestrator owns.
func Open(cfg Config) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(
		&model.Account{},
		&model.Job{},
		&model.JobEvent{},
		&model.PreviewAction{},
		&model.MediaIndexRow{},
		&model.AlbumIndexRow{},
	); err != nil {
		return nil, fmt.Errorf("store: automigrate: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying *gorm.DB for packages (the indexer adapter)
// that need direct query access beyond this struct's methods.
func (s *Store) DB() *gorm.DB { return s.db }

// --- Accounts ---

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get account: %w", err)
	}
	return &a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a *model.Account) error {
	a.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("store: save account: %w", err)
	}
	return nil
}

// UpdateSession persists refreshed RPC session state for an account,
// last-writer-wins as the concurrency model in SPEC_FULL.md §5 requires.
func (s *Store) UpdateSession(ctx context.Context, accountID string, sessionRaw []byte) error {
	res := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{"session_raw": sessionRaw, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("store: update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	if j.Status == "" {
		j.Status = model.JobQueued
	}
	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("store: create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get job: %w", err)
	}
	return &j, nil
}

// ListJobsFilter narrows ListJobs to a subset of rows.
type ListJobsFilter struct {
	AccountID string
	Status    model.JobStatus
	Limit     int
}

func (s *Store) ListJobs(ctx context.Context, f ListJobsFilter) ([]model.Job, error) {
	q := s.db.WithContext(ctx).Model(&model.Job{}).Order("created_at DESC")
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var jobs []model.Job
	if err := q.Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	return jobs, nil
}

// SaveJob persists a full job row, bumping updated_at.
func (s *Store) SaveJob(ctx context.Context, j *model.Job) error {
	j.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(j).Error; err != nil {
		return fmt.Errorf("store: save job: %w", err)
	}
	return nil
}

// RequestCancel sets cancel_requested, or transitions a still-queued job
// straight to cancelled without worker involvement (spec.md §4.6).
func (s *Store) RequestCancel(ctx context.Context, jobID string) (*model.Job, error) {
	var job *model.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j model.Job
		if err := tx.First(&j, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		now := time.Now().UTC()
		if j.Status == model.JobQueued {
			j.Status = model.JobCancelled
			j.FinishedAt = &now
			j.Message = "Job cancelled by user"
		} else {
			j.CancelRequested = true
		}
		j.UpdatedAt = now
		if err := tx.Save(&j).Error; err != nil {
			return err
		}
		if j.Status == model.JobCancelled {
			if err := tx.Create(&model.JobEvent{
				ID: uuid.NewString(), JobID: j.ID, Level: model.EventWarn,
				Message: "Job cancelled by user", CreatedAt: now,
			}).Error; err != nil {
				return err
			}
		}
		job = &j
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: request cancel: %w", err)
	}
	return job, nil
}

// ClaimJobs is the core fairness-bound claim transaction: it selects up to
// `scanLimit` oldest queued jobs and admits up to `slots` of them, skipping
// (not blocking on) any account already at maxPerAccount in-flight, per
// spec.md §4.6. inFlight counts jobs already running, keyed by account id.
func (s *Store) ClaimJobs(ctx context.Context, slots, scanLimit, maxPerAccount int, inFlight map[string]int) ([]model.Job, error) {
	if slots <= 0 {
		return nil, nil
	}
	var claimed []model.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []model.Job
		if err := tx.Where("status = ?", model.JobQueued).
			Order("created_at ASC").Limit(scanLimit).Find(&candidates).Error; err != nil {
			return err
		}

		localCounts := make(map[string]int)
		now := time.Now().UTC()
		for _, j := range candidates {
			if len(claimed) >= slots {
				break
			}
			total := inFlight[j.AccountID] + localCounts[j.AccountID]
			if total >= maxPerAccount {
				continue
			}
			j.Status = model.JobRunning
			j.StartedAt = &now
			j.UpdatedAt = now
			if err := tx.Save(&j).Error; err != nil {
				return err
			}
			if err := tx.Create(&model.JobEvent{
				ID: uuid.NewString(), JobID: j.ID, Level: model.EventInfo,
				Message: "Worker claimed job", CreatedAt: now,
			}).Error; err != nil {
				return err
			}
			localCounts[j.AccountID]++
			claimed = append(claimed, j)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: claim jobs: %w", err)
	}
	return claimed, nil
}

// --- Job events ---

func (s *Store) AppendEvent(ctx context.Context, ev *model.JobEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

// TailEvents returns events for a job created strictly after `since`,
// oldest first, backing the SSE stream's poll-cursor model.
func (s *Store) TailEvents(ctx context.Context, jobID string, since time.Time, limit int) ([]model.JobEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	var events []model.JobEvent
	q := s.db.WithContext(ctx).Where("created_at > ?", since).Order("created_at ASC").Limit(limit)
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: tail events: %w", err)
	}
	return events, nil
}

// --- Previews ---

func (s *Store) CreatePreview(ctx context.Context, p *model.PreviewAction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("store: create preview: %w", err)
	}
	return nil
}

func (s *Store) GetPreview(ctx context.Context, id string) (*model.PreviewAction, error) {
	var p model.PreviewAction
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get preview: %w", err)
	}
	return &p, nil
}

func (s *Store) SavePreview(ctx context.Context, p *model.PreviewAction) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("store: save preview: %w", err)
	}
	return nil
}

// CleanupExpiredPreviews deletes every preview whose expires_at has passed.
func (s *Store) CleanupExpiredPreviews(ctx context.Context) error {
	if err := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&model.PreviewAction{}).Error; err != nil {
		return fmt.Errorf("store: cleanup expired previews: %w", err)
	}
	return nil
}

// --- Media / album index ---

// ExplorerQuery narrows QueryMediaIndex, mirroring the filters the explorer
// UI exposes: source tab, album membership, free-text search, date range,
// flags, and an offset-encoded page cursor.
type ExplorerQuery struct {
	Source     string
	AlbumID    string
	Search     string
	DateFrom   *int64
	DateTo     *int64
	MediaType  string
	Favorite   *bool
	Archived   *bool
	Trashed    *bool
	Sort       string // timestamp_desc (default) | timestamp_asc | uploaded_desc
	PageCursor string
	PageSize   int
}

func encodeCursor(offset int) string { return fmt.Sprintf("o:%d", offset) }

func decodeCursor(cursor string) int {
	var offset int
	if _, err := fmt.Sscanf(cursor, "o:%d", &offset); err != nil || offset < 0 {
		return 0
	}
	return offset
}

// QueryMediaIndex runs a filtered, paginated scan over one account's media
// index, returning a page of rows and the cursor for the next page (empty
// when exhausted).
func (s *Store) QueryMediaIndex(ctx context.Context, accountID string, q ExplorerQuery) ([]model.MediaIndexRow, string, error) {
	offset := decodeCursor(q.PageCursor)
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 120
	}

	db := s.db.WithContext(ctx).Model(&model.MediaIndexRow{}).Where("account_id = ?", accountID)
	switch q.Source {
	case "library":
		db = db.Where("is_trashed = ?", false)
	case "trash":
		db = db.Where("is_trashed = ?", true)
	case "favorites":
		db = db.Where("is_favorite = ? AND is_trashed = ?", true, false)
	case "locked_folder":
		db = db.Where("source = ?", "locked_folder")
	}
	if q.Favorite != nil {
		db = db.Where("is_favorite = ?", *q.Favorite)
	}
	if q.Archived != nil {
		db = db.Where("is_archived = ?", *q.Archived)
	}
	if q.Trashed != nil {
		db = db.Where("is_trashed = ?", *q.Trashed)
	}
	if q.MediaType != "" {
		db = db.Where("media_type = ?", q.MediaType)
	}
	if q.DateFrom != nil {
		db = db.Where("taken_at >= ?", time.Unix(*q.DateFrom, 0).UTC())
	}
	if q.DateTo != nil {
		db = db.Where("taken_at <= ?", time.Unix(*q.DateTo, 0).UTC())
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		db = db.Where("LOWER(filename) LIKE ? OR LOWER(media_key) LIKE ? OR LOWER(dedup_key) LIKE ?", like, like, like)
	}
	if q.AlbumID != "" {
		db = db.Where("album_ids::jsonb @> ?", fmt.Sprintf(`["%s"]`, q.AlbumID))
	}

	switch q.Sort {
	case "timestamp_asc":
		db = db.Order("taken_at ASC, media_key ASC")
	case "uploaded_desc":
		db = db.Order("uploaded_at DESC, media_key DESC")
	default:
		db = db.Order("taken_at DESC, media_key DESC")
	}

	var rows []model.MediaIndexRow
	if err := db.Offset(offset).Limit(pageSize + 1).Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("store: query media index: %w", err)
	}
	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}
	next := ""
	if hasMore {
		next = encodeCursor(offset + pageSize)
	}
	return rows, next, nil
}

// GetMediaIndexItem fetches one media row by key, or ErrNotFound.
func (s *Store) GetMediaIndexItem(ctx context.Context, accountID, mediaKey string) (*model.MediaIndexRow, error) {
	var row model.MediaIndexRow
	if err := s.db.WithContext(ctx).First(&row, "account_id = ? AND media_key = ?", accountID, mediaKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get media index item: %w", err)
	}
	return &row, nil
}

// GetMediaIndexByKeys fetches every indexed row among the given media keys,
// used to translate action-resolver media keys into dedup keys.
func (s *Store) GetMediaIndexByKeys(ctx context.Context, accountID string, mediaKeys []string) ([]model.MediaIndexRow, error) {
	if len(mediaKeys) == 0 {
		return nil, nil
	}
	var rows []model.MediaIndexRow
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND media_key IN ?", accountID, mediaKeys).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: get media index by keys: %w", err)
	}
	return rows, nil
}

// FindMediaIndexBySHA1 looks up the indexed row whose raw_info carries the
// given content hash, used by the bulk-upload adapter to map an uploaded
// file's hash back to the row it recorded for it (keyed "local:<sha1>").
func (s *Store) FindMediaIndexBySHA1(ctx context.Context, accountID, sha1Hash string) (*model.MediaIndexRow, error) {
	var row model.MediaIndexRow
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND raw_info::jsonb @> ?", accountID, fmt.Sprintf(`{"sha1Hash":%q}`, sha1Hash)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find media index by sha1: %w", err)
	}
	return &row, nil
}

// UpsertMediaIndexRow inserts or replaces one indexed media row.
func (s *Store) UpsertMediaIndexRow(ctx context.Context, row *model.MediaIndexRow) error {
	row.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("store: upsert media index row: %w", err)
	}
	return nil
}

// ListMediaIndexForAccount returns every indexed row for an account, used
// for in-process flag syncing and album membership rebuilds.
func (s *Store) ListMediaIndexForAccount(ctx context.Context, accountID string) ([]model.MediaIndexRow, error) {
	var rows []model.MediaIndexRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list media index: %w", err)
	}
	return rows, nil
}

// DeleteMediaIndexForAccount clears an account's media index (force-full reindex).
func (s *Store) DeleteMediaIndexForAccount(ctx context.Context, accountID string) error {
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&model.MediaIndexRow{}).Error; err != nil {
		return fmt.Errorf("store: delete media index: %w", err)
	}
	return nil
}

// ListAlbumIndex returns an account's indexed albums, most recently modified first.
func (s *Store) ListAlbumIndex(ctx context.Context, accountID string) ([]model.AlbumIndexRow, error) {
	var rows []model.AlbumIndexRow
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("modified_timestamp DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list album index: %w", err)
	}
	return rows, nil
}

// GetAlbumIndexRow fetches one album row, or ErrNotFound.
func (s *Store) GetAlbumIndexRow(ctx context.Context, accountID, albumID string) (*model.AlbumIndexRow, error) {
	var row model.AlbumIndexRow
	if err := s.db.WithContext(ctx).First(&row, "account_id = ? AND album_id = ?", accountID, albumID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get album index row: %w", err)
	}
	return &row, nil
}

// UpsertAlbumIndexRow inserts or replaces one indexed album row.
func (s *Store) UpsertAlbumIndexRow(ctx context.Context, row *model.AlbumIndexRow) error {
	row.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("store: upsert album index row: %w", err)
	}
	return nil
}

// PruneAlbumIndex deletes an account's indexed albums not present in keep.
func (s *Store) PruneAlbumIndex(ctx context.Context, accountID string, keep []string) error {
	db := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if len(keep) > 0 {
		db = db.Where("album_id NOT IN ?", keep)
	}
	if err := db.Delete(&model.AlbumIndexRow{}).Error; err != nil {
		return fmt.Errorf("store: prune album index: %w", err)
	}
	return nil
}

// DeleteAlbumIndexForAccount clears an account's album index (force-full reindex).
func (s *Store) DeleteAlbumIndexForAccount(ctx context.Context, accountID string) error {
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&model.AlbumIndexRow{}).Error; err != nil {
		return fmt.Errorf("store: delete album index: %w", err)
	}
	return nil
}

// ClearAlbumMemberships zeroes album_ids on every indexed media row for an
// account. _sync_album_memberships in the reference explorer clears
// membership before repopulating it; a reader briefly sees empty
// memberships mid-refresh, and that window is preserved here rather than
// masked with a staging table, per the accepted Open Question in
// SPEC_FULL.md §9.
func (s *Store) ClearAlbumMemberships(ctx context.Context, accountID string) error {
	if err := s.db.WithContext(ctx).Model(&model.MediaIndexRow{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{"album_ids": "[]", "updated_at": time.Now().UTC()}).Error; err != nil {
		return fmt.Errorf("store: clear album memberships: %w", err)
	}
	return nil
}
