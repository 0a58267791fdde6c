package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"groupomania/internal/auth"
	"groupomania/internal/models"

	"gorm.io/gorm"
)

// CommentService 封装评论相关的业务逻辑。
type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// Create 在帖子下发表评论。
func (s *CommentService) Create(ctx context.Context, id auth.Identity, postID uint, message string) (*CommentDTO, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		comment = models.Comment{
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Message:   message,
			PostID:    post.ID,
			UserID:    user.ID,
			User:      *user,
		}
		if err := tx.Omit("User").Create(&comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toCommentDTO(comment)
	return &dto, nil
}

// Delete 删除评论；仅作者或管理员可操作。
func (s *CommentService) Delete(ctx context.Context, id auth.Identity, commentID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return fmt.Errorf("find comment: %w", err)
		}
		user, err := findUser(tx, id)
		if err != nil {
			return err
		}
		if !canModify(user, comment.UserID) {
			return ErrForbidden
		}
		return tx.Delete(&comment).Error
	})
}
