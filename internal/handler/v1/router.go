package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kerc-health/recordvault/pkg/auth"
	"github.com/kerc-health/recordvault/pkg/metrics"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth   *AuthHandler
	Record *RecordHandler
	Access *AccessHandler
	Upload *UploadHandler
}

// NewRouter builds the gin engine with all v1 routes. Everything under
// /api/v1 except login requires a valid access token.
func NewRouter(h Handlers, jwtManager *auth.JWTManager, m *metrics.Collector) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if m != nil {
		r.Use(Metrics(m))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	protected := api.Group("")
	protected.Use(AuthRequired(jwtManager))

	protected.POST("/upload", h.Upload.Pin)
	protected.POST("/upload/batch", h.Upload.Batch)

	protected.POST("/records", h.Record.Register)
	protected.POST("/records/bulk", h.Record.RegisterBulk)
	protected.GET("/records/:mrn/cid", h.Record.GetCID)

	protected.POST("/access/associations", h.Access.Associate)
	protected.GET("/access/check", h.Access.Check)
	protected.POST("/access/requests", h.Access.RequestAccess)
	protected.GET("/access/requests", h.Access.ListPending)
	protected.POST("/access/requests/:id/approve", h.Access.Approve)

	return r
}
