package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"groupomania/internal/auth"
	"groupomania/internal/models"

	"gorm.io/gorm"
)

// 密码长度必须严格大于该值（6 位会被拒绝，7 位通过）。
const minPasswordLen = 6

// AuthOptions 是注册/登录流程的显式配置。
type AuthOptions struct {
	// AdminEmail 注册时完全匹配该邮箱的用户成为管理员。
	AdminEmail string
}

// UserService 封装注册、登录等用户相关的业务逻辑。
type UserService struct {
	db     *gorm.DB
	issuer *auth.Issuer
	opts   AuthOptions
}

func NewUserService(db *gorm.DB, issuer *auth.Issuer, opts AuthOptions) *UserService {
	opts.AdminEmail = normalizeEmail(opts.AdminEmail)
	return &UserService{db: db, issuer: issuer, opts: opts}
}

// UserDTO 是对外输出的用户数据，不包含密码哈希。
type UserDTO struct {
	ID             uint      `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profile_picture"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
}

func toUserDTO(u models.User) UserDTO {
	return UserDTO{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      u.CreatedAt,
	}
}

// PictureSource 在所有校验通过后才被调用，返回头像 URL；避免为失败的注册保存文件。
type PictureSource func(ctx context.Context) (string, error)

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Picture   PictureSource
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 注册新用户。
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*UserDTO, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validation("email", "a valid email is required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateAccount
	}
	if utf8.RuneCountInString(in.Password) <= minPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if len(in.Password) > 72 {
			return nil, validation("password", "password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	var picture string
	if in.Picture != nil {
		if picture, err = in.Picture(ctx); err != nil {
			return nil, err
		}
	}
	user := models.User{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          email,
		PasswordHash:   hash,
		ProfilePicture: picture,
		IsAdmin:        s.opts.AdminEmail != "" && email == s.opts.AdminEmail,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	dto := toUserDTO(user)
	return &dto, nil
}

// LoginResult 登录成功后返回的会话令牌。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      UserDTO
}

// Login 校验邮箱密码并签发会话令牌。用户不存在与密码错误返回同一个错误。
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	tok, exp, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: tok, ExpiresAt: exp, User: toUserDTO(user)}, nil
}

// Me 返回当前会话对应的用户。
func (s *UserService) Me(ctx context.Context, id auth.Identity) (*UserDTO, error) {
	user, err := findUser(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(*user)
	return &dto, nil
}

// findUser 按会话身份加载用户；令牌有效但用户已不存在时视为未认证。
func findUser(tx *gorm.DB, id auth.Identity) (*models.User, error) {
	if id.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	var user models.User
	if err := tx.First(&user, id.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// canModify 作者本人或管理员可以修改、删除内容。
func canModify(user *models.User, ownerID uint) bool {
	return user.IsAdmin || user.ID == ownerID
}
