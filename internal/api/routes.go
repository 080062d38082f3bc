package api

import (
	"github.com/gin-gonic/gin"

	"traderesonance/server/internal/realtime"
	"traderesonance/server/internal/session"
)

// NewRouter builds the engine with the middleware chain and every route.
func NewRouter(h *Handler, hub *realtime.Hub, sessions *session.Manager) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(h.logger))
	if mw := CORS(h.cfg.CORSOrigins); mw != nil {
		router.Use(mw)
	}
	router.Use(sessions.Middleware())

	SetupRoutes(router, h, hub)
	return router
}

func SetupRoutes(router *gin.Engine, h *Handler, hub *realtime.Hub) {
	router.GET("/health", h.Health)

	admin := AdminOnly(h.cfg.AdminToken)

	api := router.Group("/api")
	{
		api.GET("/entries", h.ListEntries)
		api.POST("/entries", h.CreateEntry)
		api.GET("/entries/:id", h.GetEntry)
		api.GET("/entries/:id/edit", h.EditEntry)
		api.PUT("/entries/:id", h.UpdateEntry)
		api.POST("/entries/:id", h.UpdateEntry)
		api.DELETE("/entries/:id", admin, h.DeleteEntry)

		api.GET("/cities", h.GetCities)
		api.GET("/routes", h.GetRoutes)
		api.GET("/routes/pairs", h.GetPairRoutes)
		api.GET("/chart", h.GetChart)
		api.GET("/suggestions/products", h.SuggestProducts)
		api.GET("/suggestions/cities", h.SuggestCities)

		api.GET("/export.csv", h.ExportEntries)
		api.POST("/import", admin, h.ImportEntries)

		api.GET("/flash", h.GetFlash)
		api.GET("/i18n", h.GetStrings)

		if hub != nil {
			api.GET("/live", hub.ServeWS)
		}
	}

	adminGroup := api.Group("/admin", admin)
	{
		adminGroup.GET("/requests", h.ListRequests)
		adminGroup.POST("/requests/:id/approve", h.ApproveRequest)
		adminGroup.POST("/requests/:id/reject", h.RejectRequest)
		adminGroup.POST("/dedupe", h.Dedupe)
		adminGroup.GET("/dedupe", h.Dedupe)
	}
}
