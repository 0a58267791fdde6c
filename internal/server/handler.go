package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"groupomania/internal/auth"
	"groupomania/internal/config"
	"groupomania/internal/feed"
	"groupomania/internal/metrics"
	"groupomania/internal/service"
	"groupomania/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Publisher 接收帖子相关事件，由实时 feed 推送给在线客户端。
type Publisher interface {
	Publish(evt feed.Event)
}

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	cfg        config.Config
	sessionTTL time.Duration
	userSvc    *service.UserService
	postSvc    *service.PostService
	commentSvc *service.CommentService
	store      storage.Store
	pub        Publisher
}

func NewHandler(cfg config.Config, sessionTTL time.Duration, userSvc *service.UserService, postSvc *service.PostService,
	commentSvc *service.CommentService, store storage.Store, pub Publisher) *Handler {
	return &Handler{
		cfg:        cfg,
		sessionTTL: sessionTTL,
		userSvc:    userSvc,
		postSvc:    postSvc,
		commentSvc: commentSvc,
		store:      store,
		pub:        pub,
	}
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError 把业务错误映射为 {"errors": ...}；未知错误记录日志并返回 500。
func writeError(c *gin.Context, op string, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		status := statusFor(se.Kind)
		if se.Field != "" {
			c.JSON(status, gin.H{"errors": gin.H{se.Field: se.Msg}})
			return
		}
		c.JSON(status, gin.H{"errors": se.Msg})
		return
	}
	log.Error().Err(err).Str("op", op).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"errors": "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": msg})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func requireIdentity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		writeError(c, "identity", service.ErrUnauthenticated)
	}
	return id, ok
}

// baseURL 优先使用配置的 PUBLIC_BASE_URL，否则由请求的协议与 Host 推导。
func (h *Handler) baseURL(c *gin.Context) string {
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// upload 保存请求中的可选文件 "file"，返回其公开 URL；未上传文件时返回空串。
func (h *Handler) upload(c *gin.Context, folder string) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		metrics.ObserveUpload(folder, metrics.UploadRejected, 0)
		return "", &service.Error{Kind: service.KindValidation, Field: "file", Msg: "malformed upload"}
	}
	if limit := int64(h.cfg.MaxUploadMB) << 20; limit > 0 && fh.Size > limit {
		metrics.ObserveUpload(folder, metrics.UploadRejected, fh.Size)
		return "", &service.Error{Kind: service.KindValidation, Field: "file", Msg: fmt.Sprintf("file exceeds %d MB", h.cfg.MaxUploadMB)}
	}
	f, err := fh.Open()
	if err != nil {
		metrics.ObserveUpload(folder, metrics.UploadFailed, fh.Size)
		return "", err
	}
	defer f.Close()
	key, err := h.store.Put(c.Request.Context(), folder, fh.Filename, f, fh.Size)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			metrics.ObserveUpload(folder, metrics.UploadRejected, fh.Size)
			return "", &service.Error{Kind: service.KindValidation, Field: "file", Msg: "only jpg, png, gif and webp images are accepted"}
		}
		metrics.ObserveUpload(folder, metrics.UploadFailed, fh.Size)
		return "", fmt.Errorf("store upload: %w", err)
	}
	metrics.ObserveUpload(folder, metrics.UploadStored, fh.Size)
	return h.store.URL(h.baseURL(c), key), nil
}

func (h *Handler) publish(evtType string, postID, commentID, userID uint) {
	if h.pub == nil {
		return
	}
	h.pub.Publish(feed.Event{Type: evtType, PostID: postID, CommentID: commentID, UserID: userID})
}

// Register 处理用户注册请求（JSON 或 multipart，可附带头像文件）。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name" form:"first_name"`
		LastName  string `json:"last_name" form:"last_name"`
		Email     string `json:"email" form:"email"`
		Password  string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Picture:   h.profilePicture(c),
	})
	if err != nil {
		writeError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// profilePicture 在注册校验通过后才保存头像；未上传时使用默认头像。
func (h *Handler) profilePicture(c *gin.Context) service.PictureSource {
	return func(context.Context) (string, error) {
		url, err := h.upload(c, storage.FolderProfile)
		if err != nil || url != "" {
			return url, err
		}
		return h.baseURL(c) + "/" + storage.DefaultProfilePicture, nil
	}
}

// Login 校验凭据并通过 cookie 下发会话令牌，响应体为空对象。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	result, err := h.userSvc.Login(c.Request.Context(), req.Email, req.Password)
	metrics.ObserveLogin(err == nil)
	if err != nil {
		writeError(c, "login", err)
		return
	}
	auth.SetSessionCookie(c, h.cfg.SessionCookie, result.Token, h.sessionTTL)
	c.JSON(http.StatusOK, gin.H{})
}

// Logout 覆盖会话 cookie。
func (h *Handler) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c, h.cfg.SessionCookie)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	user, err := h.userSvc.Me(c.Request.Context(), id)
	if err != nil {
		writeError(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListPosts 返回全部帖子，最新在前。
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.postSvc.List(c.Request.Context())
	if err != nil {
		writeError(c, "list posts", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := parseID(c)
	if !ok {
		return
	}
	post, err := h.postSvc.Get(c.Request.Context(), postID)
	if err != nil {
		writeError(c, "get post", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost 处理发帖请求（JSON 或 multipart，可附带图片文件）；图片在确认用户后才保存。
func (h *Handler) CreatePost(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message" form:"message"`
		Video   string `json:"video" form:"video"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	post, err := h.postSvc.Create(c.Request.Context(), id, service.CreatePostInput{
		Message: req.Message,
		Video:   req.Video,
		Picture: func(context.Context) (string, error) { return h.upload(c, storage.FolderPost) },
	})
	if err != nil {
		writeError(c, "create post", err)
		return
	}
	h.publish(feed.PostCreated, post.ID, 0, id.UserID)
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message" form:"message"`
		Picture string `json:"picture" form:"picture"`
		Video   string `json:"video" form:"video"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	post, err := h.postSvc.Update(c.Request.Context(), id, postID, service.UpdatePostInput{
		Message: req.Message,
		Picture: req.Picture,
		Video:   req.Video,
	})
	if err != nil {
		writeError(c, "update post", err)
		return
	}
	h.publish(feed.PostUpdated, post.ID, 0, id.UserID)
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.postSvc.Delete(c.Request.Context(), id, postID); err != nil {
		writeError(c, "delete post", err)
		return
	}
	h.publish(feed.PostDeleted, postID, 0, id.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

func (h *Handler) LikePost(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseID(c)
	if !ok {
		return
	}
	post, err := h.postSvc.Like(c.Request.Context(), id, postID)
	if err != nil {
		writeError(c, "like post", err)
		return
	}
	h.publish(feed.PostLiked, postID, 0, id.UserID)
	c.JSON(http.StatusOK, post)
}

func (h *Handler) UnlikePost(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseID(c)
	if !ok {
		return
	}
	post, err := h.postSvc.Unlike(c.Request.Context(), id, postID)
	if err != nil {
		writeError(c, "unlike post", err)
		return
	}
	h.publish(feed.PostUnliked, postID, 0, id.UserID)
	c.JSON(http.StatusOK, post)
}

func (h *Handler) CreateComment(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message" form:"message"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	comment, err := h.commentSvc.Create(c.Request.Context(), id, postID, req.Message)
	if err != nil {
		writeError(c, "create comment", err)
		return
	}
	h.publish(feed.CommentCreated, postID, comment.ID, id.UserID)
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	commentID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.commentSvc.Delete(c.Request.Context(), id, commentID); err != nil {
		writeError(c, "delete comment", err)
		return
	}
	h.publish(feed.CommentDeleted, 0, commentID, id.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
