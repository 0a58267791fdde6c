package server

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"groupomania/internal/auth"
	"groupomania/internal/config"
	"groupomania/internal/feed"
	"groupomania/internal/metrics"
	"groupomania/internal/mw"
	"groupomania/internal/service"
	"groupomania/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps 是路由需要的外部依赖。Hub 与 Limiter 的生命周期由调用方负责，为 nil 时不启用对应功能。
type Deps struct {
	DB      *gorm.DB
	Hub     *feed.Hub
	Store   storage.Store
	Limiter *mw.Limiter
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 feed WebSocket 端点。
func SetupRouter(cfg config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLogger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware())
	}
	r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 避免把 nil *feed.Hub 装进非 nil 接口。
	var pub Publisher
	if deps.Hub != nil {
		pub = deps.Hub
	}
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	issuer := auth.NewIssuer(cfg.JWTSecret, ttl)
	h := NewHandler(cfg, ttl,
		service.NewUserService(deps.DB, issuer, service.AuthOptions{AdminEmail: cfg.AdminEmail}),
		service.NewPostService(deps.DB),
		service.NewCommentService(deps.DB),
		deps.Store,
		pub,
	)

	api := r.Group("/api")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:id", h.GetPost)

	// 需要会话 cookie 的业务接口。
	authed := api.Group("")
	authed.Use(auth.Middleware(issuer, cfg.SessionCookie))
	authed.GET("/auth/me", h.Me)
	authed.POST("/posts", h.CreatePost)
	authed.PUT("/posts/:id", h.UpdatePost)
	authed.DELETE("/posts/:id", h.DeletePost)
	authed.PATCH("/posts/:id/like", h.LikePost)
	authed.PATCH("/posts/:id/unlike", h.UnlikePost)
	authed.POST("/posts/:id/comments", h.CreateComment)
	authed.DELETE("/comments/:id", h.DeleteComment)
	if deps.Hub != nil {
		authed.GET("/feed/ws", feed.Serve(deps.Hub, cfg.CORSOrigins))
	}

	if disk, ok := deps.Store.(*storage.DiskStore); ok {
		// NewDiskStore 已把默认头像写入 profil/。
		r.Static("/"+storage.FolderPost, filepath.Join(disk.Root, storage.FolderPost))
		r.Static("/"+storage.FolderProfile, filepath.Join(disk.Root, storage.FolderProfile))
	} else {
		r.GET("/"+storage.DefaultProfilePicture, func(c *gin.Context) {
			c.Header("Cache-Control", "public, max-age=86400")
			c.Data(http.StatusOK, "image/png", storage.DefaultProfileImage)
		})
	}
	return r
}
