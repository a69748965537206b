package routes

import (
	"github.com/gin-gonic/gin"

	"fenix-advisor/backend/config"
	"fenix-advisor/backend/controllers"
	"fenix-advisor/backend/datasource"
	"fenix-advisor/backend/engine"
	"fenix-advisor/backend/middlewares"
	"fenix-advisor/backend/session"
)

func Register(r *gin.Engine, cfg config.Config, eng *engine.Engine, cache *datasource.Cache, store *session.Store) {
	api := r.Group("/api")
	{
		api.POST("/session", controllers.CreateSession(store, cfg.JWTSecret, cfg.SessionTTL))

		priv := api.Group("/")
		priv.Use(middlewares.Auth(cfg.JWTSecret, store))
		priv.GET("session", controllers.GetSession())
		priv.DELETE("session", controllers.DeleteSession(store))
		priv.GET("history", controllers.History())
		// Natural-language question over the session's ledger
		priv.POST("ask", controllers.Ask(eng))
		// Ledger source: upload, inspect, reload
		priv.POST("data/upload", controllers.Upload(cache))
		priv.GET("data/sheets", controllers.Sheets())
		priv.GET("data/preview", controllers.Preview(cache))
		priv.GET("data/schema", controllers.Schema(cache))
		priv.POST("data/reload", controllers.Reload(cache))
	}
}
