// Package model defines the durable entities of the job orchestrator:
// accounts, jobs, job events and preview (two-phase commit) records. All
// types are GORM models, following the embedded-model-plus-JSON-column
// strategy this codebase uses for RabbitLog in the Postgres store.
package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the job state machine's current state.
type JobStatus string

const (
	JobQueued              JobStatus = "queued"
	JobRunning             JobStatus = "running"
	JobSucceeded           JobStatus = "succeeded"
	JobFailed              JobStatus = "failed"
	JobCancelled           JobStatus = "cancelled"
	JobRequiresCredentials JobStatus = "requires_credentials"
)

// IsTerminal reports whether the status cannot transition further.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled, JobRequiresCredentials:
		return true
	default:
		return false
	}
}

// Provider identifies the adapter that executes a job's operation.
type Provider string

const (
	ProviderNativeRPC    Provider = "native-rpc"
	ProviderBulkUpload   Provider = "bulk-upload"
	ProviderFileDisguise Provider = "file-disguise"
	ProviderIndexer      Provider = "indexer"
	ProviderPipeline     Provider = "pipeline"
	ProviderAdvanced     Provider = "advanced"
)

// JSONMap is an arbitrary structured map stored as a JSONB column.
type JSONMap map[string]interface{}

// Account is a credential-bearing tenant. It owns a cookie jar for the
// native-rpc provider, an opaque auth blob for the bulk-upload provider,
// and the session state produced by RPC bootstrap.
type Account struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Label     string `gorm:"type:varchar(120);not null"`
	EmailHint string `gorm:"type:varchar(255)"`
	IsActive  bool   `gorm:"not null;default:true"`

	AuthData   string          `gorm:"type:text"`       // CredentialAuthData: opaque bulk-upload credential
	CookieJar  json.RawMessage `gorm:"type:jsonb"`       // CredentialCookies: ordered cookie records
	SessionRaw json.RawMessage `gorm:"type:jsonb"`       // SessionState: opaque RPC session material

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// Cookie is one entry of an Account's CredentialCookies jar.
type Cookie struct {
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Expiry   int64  `json:"expiry"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"http_only"`
}

// SessionState is the opaque mapping produced by RPC bootstrap. It is
// mutable and overwritten wholesale on refresh; see rpcclient.Bootstrap.
type SessionState struct {
	SessionID      string `json:"f_sid"`
	BuildLabel     string `json:"bl"`
	PathPrefix     string `json:"path"`
	AntiForgery    string `json:"at"`
	ReAuthToken    string `json:"rapt,omitempty"`
	AccountTag     string `json:"account_tag,omitempty"`
}

// Job is the primary entity: a unit of work dispatched to one provider.
type Job struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	AccountID string `gorm:"type:varchar(36);not null;index"`

	Provider  Provider `gorm:"type:varchar(32);not null;index"`
	Operation string   `gorm:"type:varchar(120);not null"`
	DryRun    bool     `gorm:"not null;default:true"`
	Params    JSONMap  `gorm:"type:jsonb;serializer:json"`

	Status          JobStatus `gorm:"type:varchar(40);not null;default:queued;index"`
	Progress        float64   `gorm:"not null;default:0"`
	Message         string    `gorm:"type:text"`
	Result          JSONMap   `gorm:"type:jsonb;serializer:json"`
	Error           JSONMap   `gorm:"type:jsonb;serializer:json"`
	CancelRequested bool      `gorm:"not null;default:false"`

	CreatedAt  time.Time  `gorm:"not null;index"`
	UpdatedAt  time.Time  `gorm:"not null;index"`
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (Job) TableName() string { return "jobs" }

// EventLevel classifies a JobEvent's severity.
type EventLevel string

const (
	EventInfo  EventLevel = "info"
	EventWarn  EventLevel = "warn"
	EventError EventLevel = "error"
)

// JobEvent is an append-only progress/log entry for a Job. Rows are never
// mutated or deleted; the store only ever inserts and tails them.
type JobEvent struct {
	ID        string     `gorm:"type:varchar(36);primaryKey"`
	JobID     string     `gorm:"type:varchar(36);not null;index"`
	Level     EventLevel `gorm:"type:varchar(10);not null"`
	Message   string     `gorm:"type:text;not null"`
	Progress  *float64
	CreatedAt time.Time `gorm:"not null;index"`
}

func (JobEvent) TableName() string { return "job_events" }

// PreviewKind identifies which service produced a preview.
type PreviewKind string

const (
	PreviewExplorerAction       PreviewKind = "explorer_action"
	PreviewUpload               PreviewKind = "upload"
	PreviewPipelineDisguiseUpld PreviewKind = "pipeline_disguise_upload"
	PreviewAdvanced             PreviewKind = "advanced"
)

// PreviewStatus is the two-phase commit token's lifecycle state.
type PreviewStatus string

const (
	PreviewPreviewed PreviewStatus = "previewed"
	PreviewCommitted PreviewStatus = "committed"
	PreviewExpired   PreviewStatus = "expired"
)

// PreviewAction is a TTL-bound two-phase commit token: it captures the
// effect of an action before a job is enqueued, so a client can confirm.
type PreviewAction struct {
	ID        string      `gorm:"type:varchar(36);primaryKey"`
	AccountID string      `gorm:"type:varchar(36);not null;index"`
	Kind      PreviewKind `gorm:"type:varchar(32);not null"`

	Action          string   `gorm:"type:varchar(120);not null"`
	QueryPayload    JSONMap  `gorm:"type:jsonb;serializer:json"`
	ActionParams    JSONMap  `gorm:"type:jsonb;serializer:json"`
	MatchedMediaKeys []string `gorm:"type:jsonb;serializer:json"`
	SampleItems     []JSONMap `gorm:"type:jsonb;serializer:json"`
	Warnings        []string `gorm:"type:jsonb;serializer:json"`

	RequiresConfirm bool          `gorm:"not null;default:true"`
	Status          PreviewStatus `gorm:"type:varchar(20);not null;default:previewed;index"`
	CommittedJobID  *string       `gorm:"type:varchar(36)"`
	ExpiresAt       time.Time     `gorm:"not null;index"`
	CreatedAt       time.Time     `gorm:"not null"`
}

func (PreviewAction) TableName() string { return "preview_actions" }

// MediaIndexRow mirrors one remote library item into the local index. It
// is written by the indexer adapter and by the bulk-upload adapter, which
// records uploaded files under "local:<sha1>" keys (both in
// internal/adapters), and read by the action resolver.
type MediaIndexRow struct {
	MediaKey  string `gorm:"type:varchar(120);primaryKey"`
	AccountID string `gorm:"type:varchar(36);not null;index"`
	DedupKey  string `gorm:"type:varchar(120);index"`
	Filename  string `gorm:"type:varchar(512)"`
	MimeType  string `gorm:"type:varchar(120)"`
	MediaType string `gorm:"type:varchar(16)"` // "image" | "video" | ""
	Source    string `gorm:"type:varchar(32);index"`

	Size            int64
	ThumbURL        string `gorm:"type:text"`
	OwnerName       string `gorm:"type:varchar(255)"`
	TimezoneOffset  int64

	IsFavorite bool `gorm:"not null;default:false"`
	IsTrashed  bool `gorm:"not null;default:false"`
	IsArchived bool `gorm:"not null;default:false"`

	TakenAt    *time.Time
	UploadedAt *time.Time

	AlbumIDs   []string  `gorm:"type:jsonb;serializer:json"`
	SpaceFlags JSONMap   `gorm:"type:jsonb;serializer:json"`
	RawInfo    JSONMap   `gorm:"type:jsonb;serializer:json"`
	UpdatedAt  time.Time `gorm:"not null;index"`
}

func (MediaIndexRow) TableName() string { return "media_index" }

// AlbumIndexRow mirrors one remote album into the local index.
type AlbumIndexRow struct {
	AlbumID      string `gorm:"type:varchar(120);primaryKey"`
	AccountID    string `gorm:"type:varchar(36);not null;index"`
	Title        string `gorm:"type:varchar(512)"`
	OwnerActorID string `gorm:"type:varchar(120)"`
	ItemCount    int
	IsShared     bool `gorm:"not null;default:false"`
	Thumb        string `gorm:"type:text"`

	CreationTimestamp int64
	ModifiedTimestamp int64 `gorm:"index"`

	RawInfo   JSONMap   `gorm:"type:jsonb;serializer:json"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

func (AlbumIndexRow) TableName() string { return "album_index" }
