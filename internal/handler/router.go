package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/handler/middleware"
	jwtpkg "joinus/partyboard/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	recruitmentHandler *RecruitmentHandler,
	linkHandler *LinkHandler,
	adminHandler *AdminHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Browser redirect target of the Riot authorize page (public)
	if linkHandler != nil {
		r.GET("/oauth/callback", linkHandler.Callback)
	}

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		rec := protected.Group("/recruitments")
		rec.POST("", recruitmentHandler.Create)
		rec.GET("/open", recruitmentHandler.GetOpen)
		rec.PATCH("/open", recruitmentHandler.EditOpen)
		rec.POST("/open/cancel", recruitmentHandler.CancelOpen)
		rec.GET("/by-message/:ref", recruitmentHandler.GetByMessage)
		rec.GET("/:id", recruitmentHandler.Get)
		rec.PUT("/:id/message", recruitmentHandler.AttachMessage)
		rec.POST("/:id/join", recruitmentHandler.Join)
		rec.POST("/:id/leave", recruitmentHandler.Leave)

		if linkHandler != nil {
			protected.POST("/links/riot", linkHandler.Begin)
		}
	}

	if adminHandler != nil {
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.JWTAuth(jwtManager))
		admin.Use(middleware.AdminAuth(cfg.Admin.MemberIDs))
		{
			admin.POST("/guilds/:guild_id/activity-pass", adminHandler.RunActivityPass)
			admin.POST("/guilds/:guild_id/rank-refresh", adminHandler.RefreshRanks)
		}
	}

	return r
}
