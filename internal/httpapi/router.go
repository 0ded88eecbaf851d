// Package httpapi is the HTTP surface around the pipeline: job upload,
// status polling, and result/artifact download. It is deliberately thin —
// all real work happens in the queue worker.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/dig"

	"github.com/veridocs/trainforge/internal/middleware"
	"github.com/veridocs/trainforge/internal/types"
)

// RouterParams collects the router's dependencies for dig injection.
type RouterParams struct {
	dig.In

	Config     *types.Config
	JobHandler *JobHandler
}

// NewRouter builds the gin engine: CORS first, then request ID and logging
// middleware, then the job routes.
func NewRouter(params RouterParams) *gin.Engine {
	r := gin.New()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", params.JobHandler.Create)
		v1.GET("/jobs/:id", params.JobHandler.Status)
		v1.GET("/jobs/:id/result", params.JobHandler.Result)
		v1.GET("/jobs/:id/artifact", params.JobHandler.Artifact)
	}

	return r
}
