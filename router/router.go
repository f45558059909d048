package router

import (
	"net/http"

	"doc-ingest-backend/controller"
	"doc-ingest-backend/middleware"

	"github.com/gin-gonic/gin"
)

func Register() *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	api := r.Group("/api")
	api.Use(middleware.IdentityMiddleware())
	{
		api.POST("/documents", controller.SubmitDocument)
		api.GET("/documents", controller.GetDocuments)
		api.GET("/document/:id/status", controller.GetDocumentStatus)
		api.GET("/document/:id/download-link", controller.GetDownloadLink)
		api.POST("/document/:id/retry", controller.RetryDocument)
		api.DELETE("/document/:id", controller.DeleteDocument)
	}

	return r
}
