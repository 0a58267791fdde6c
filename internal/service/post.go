package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"groupomania/internal/auth"
	"groupomania/internal/models"

	"gorm.io/gorm"
)

// PostService 封装帖子与点赞相关的业务逻辑。
type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// AuthorDTO 是嵌入帖子、评论中的作者摘要。
type AuthorDTO struct {
	ID             uint   `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ProfilePicture string `json:"profile_picture"`
}

type LikeDTO struct {
	UserID uint `json:"user_id"`
	PostID uint `json:"post_id"`
}

type CommentDTO struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	User      AuthorDTO `json:"user"`
}

// PostDTO 是对外输出的帖子，附带作者、点赞与评论。
type PostDTO struct {
	ID        uint         `json:"id"`
	UserID    uint         `json:"user_id"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Message   string       `json:"message"`
	Picture   string       `json:"picture"`
	Video     string       `json:"video"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	User      AuthorDTO    `json:"user"`
	Likes     []LikeDTO    `json:"likes"`
	Comments  []CommentDTO `json:"comments"`
}

func toAuthorDTO(u models.User) AuthorDTO {
	return AuthorDTO{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, ProfilePicture: u.ProfilePicture}
}

func toCommentDTO(c models.Comment) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
		User:      toAuthorDTO(c.User),
	}
}

func toPostDTO(p models.Post) PostDTO {
	likes := make([]LikeDTO, 0, len(p.Likes))
	for _, l := range p.Likes {
		likes = append(likes, LikeDTO{UserID: l.UserID, PostID: l.PostID})
	}
	comments := make([]CommentDTO, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, toCommentDTO(c))
	}
	return PostDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Message:   p.Message,
		Picture:   p.Picture,
		Video:     p.Video,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		User:      toAuthorDTO(p.User),
		Likes:     likes,
		Comments:  comments,
	}
}

func authorColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "first_name", "last_name", "profile_picture")
}

// withRelations 预加载作者摘要、点赞和评论（含评论作者）。
func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User", authorColumns).
		Preload("Likes", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		Preload("Comments.User", authorColumns)
}

// List 返回全部帖子，按创建时间倒序（最新在前）。
func (s *PostService) List(ctx context.Context) ([]PostDTO, error) {
	var posts []models.Post
	if err := withRelations(s.db.WithContext(ctx)).Order("created_at desc").Order("id desc").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	out := make([]PostDTO, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostDTO(p))
	}
	return out, nil
}

func loadPost(tx *gorm.DB, postID uint) (*models.Post, error) {
	var post models.Post
	if err := withRelations(tx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

// findPost 只取帖子本身，不加载关联。
func findPost(tx *gorm.DB, postID uint) (*models.Post, error) {
	var post models.Post
	if err := tx.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

func (s *PostService) Get(ctx context.Context, postID uint) (*PostDTO, error) {
	post, err := loadPost(s.db.WithContext(ctx), postID)
	if err != nil {
		return nil, err
	}
	dto := toPostDTO(*post)
	return &dto, nil
}

type CreatePostInput struct {
	Message string
	Video   string
	// Picture 在确认会话用户后才调用，未上传图片时返回空串。
	Picture PictureSource
}

// Create 以当前用户身份发帖，作者姓名从用户表冗余写入。
func (s *PostService) Create(ctx context.Context, id auth.Identity, in CreatePostInput) (*PostDTO, error) {
	message := strings.TrimSpace(in.Message)
	video := strings.TrimSpace(in.Video)
	db := s.db.WithContext(ctx)
	user, err := findUser(db, id)
	if err != nil {
		return nil, err
	}
	var picture string
	if in.Picture != nil {
		if picture, err = in.Picture(ctx); err != nil {
			return nil, err
		}
	}
	if message == "" && picture == "" && video == "" {
		return nil, validation("message", "a post needs a message, picture or video")
	}
	post := models.Post{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		UserID:    user.ID,
		Message:   message,
		Picture:   picture,
		Video:     video,
	}
	if err := db.Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return s.Get(ctx, post.ID)
}

type UpdatePostInput struct {
	Message string
	Picture string
	Video   string
}

// Update 覆盖 message/picture/video 三个字段；仅作者或管理员可操作。
func (s *PostService) Update(ctx context.Context, id auth.Identity, postID uint, in UpdatePostInput) (*PostDTO, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		if !canModify(user, post.UserID) {
			return ErrForbidden
		}
		return tx.Model(post).Select("message", "picture", "video").Updates(models.Post{
			Message: in.Message,
			Picture: in.Picture,
			Video:   in.Video,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, postID)
}

// Delete 在同一事务内删除帖子的评论、点赞以及帖子本身。
func (s *PostService) Delete(ctx context.Context, id auth.Identity, postID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		if !canModify(user, post.UserID) {
			return ErrForbidden
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return fmt.Errorf("delete likes: %w", err)
		}
		if err := tx.Delete(post).Error; err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
}

// Like 为当前用户点赞；检查与插入在同一事务中，唯一索引兜底并发重复。
// 返回插入后的帖子状态。
func (s *PostService) Like(ctx context.Context, id auth.Identity, postID uint) (*PostDTO, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Like{}).Where("post_id = ? AND user_id = ?", post.ID, user.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		if count > 0 {
			return ErrAlreadyLiked
		}
		if err := tx.Create(&models.Like{PostID: post.ID, UserID: user.ID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyLiked
			}
			return fmt.Errorf("create like: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, postID)
}

// Unlike 只删除当前用户对该帖子的点赞，其他用户的点赞保持不变。
func (s *PostService) Unlike(ctx context.Context, id auth.Identity, postID uint) (*PostDTO, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		res := tx.Where("post_id = ? AND user_id = ?", post.ID, user.ID).Delete(&models.Like{})
		if res.Error != nil {
			return fmt.Errorf("delete like: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotLiked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, postID)
}
