package httpapi

import (
	"github.com/labstack/echo/v4"

	"github.com/evalgo/gphotoctl/internal/adapters"
	"github.com/evalgo/gphotoctl/internal/cache"
	"github.com/evalgo/gphotoctl/internal/preview"
	"github.com/evalgo/gphotoctl/internal/resolver"
	"github.com/evalgo/gphotoctl/internal/rpcclient"
	"github.com/evalgo/gphotoctl/internal/store"
	"github.com/evalgo/gphotoctl/internal/worker"
)

const serviceVersion = "dev"

// Deps bundles the components every route handler closes over. Built once
// in cmd/gphotoctl and threaded into NewRouter.
type Deps struct {
	Store     *store.Store
	Cache     *cache.SessionCache
	RPC       *rpcclient.Client
	Resolver  *resolver.Resolver
	Previews  *preview.Registry
	Adapters  *adapters.Registry
	Pool      *worker.Pool
	PollSeconds float64
}

// NewRouter builds the full echo server: middleware stack from
// NewEchoServer plus every route group this orchestrator serves.
func NewRouter(cfg ServerConfig, d *Deps) *echo.Echo {
	e := NewEchoServer(cfg)
	e.HTTPErrorHandler = CustomHTTPErrorHandler
	e.Use(SecurityHeadersMiddleware())
	e.Use(JSONContentTypeMiddleware())

	e.GET("/healthz", HealthCheckHandlerWithDetails("gphotoctl", serviceVersion, func() map[string]interface{} {
		stats := d.Pool.Stats()
		return map[string]interface{}{
			"total_operations": stats.TotalOperations,
			"by_status":        stats.ByStatus,
			"average_duration": stats.AverageDuration,
		}
	}))

	h := &handlers{d: d}

	jobs := e.Group("/jobs")
	jobs.POST("", h.createJob)
	jobs.GET("", h.listJobs)
	jobs.GET("/stream", h.streamJobs)
	jobs.GET("/:id", h.getJob)
	jobs.POST("/:id/cancel", h.cancelJob)

	actions := e.Group("/actions")
	actions.POST("/preview", h.previewAction)
	actions.POST("/commit", h.commitAction)
	actions.GET("/previews/:id", h.getActionPreview)

	uploads := e.Group("/uploads")
	uploads.POST("/preview", h.previewUpload)
	uploads.POST("/commit", h.commitUpload)

	pipeline := e.Group("/pipeline")
	pipeline.POST("/disguise-upload/preview", h.previewPipeline)
	pipeline.POST("/disguise-upload/commit", h.commitPipeline)

	advanced := e.Group("/advanced")
	advanced.POST("/preview", h.previewAdvanced)
	advanced.POST("/commit", h.commitAdvanced)

	e.GET("/operations/catalog", h.operationsCatalog)

	accounts := e.Group("/accounts")
	accounts.POST("", h.createAccount)
	accounts.GET("", h.listAccounts)
	accounts.POST("/:id/credentials/gpmc", h.setGpmcAuth)
	accounts.POST("/:id/credentials/cookies/import", h.importCookiesFile)
	accounts.POST("/:id/credentials/cookies/paste", h.pasteCookieString)

	explorer := e.Group("/explorer")
	explorer.GET("/albums", h.listAlbums)
	explorer.GET("/items", h.queryItems)
	explorer.GET("/items/:media_key", h.getItem)
	explorer.POST("/index/refresh", h.refreshIndex)

	return e
}

type handlers struct {
	d *Deps
}
