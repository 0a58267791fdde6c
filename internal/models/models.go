package models

import "time"

type User struct {
	ID             uint   `gorm:"primaryKey"`
	FirstName      string `gorm:"size:64;not null"`
	LastName       string `gorm:"size:64;not null"`
	Email          string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string `gorm:"not null"`
	ProfilePicture string `gorm:"size:512"`
	IsAdmin        bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Post 冗余保存作者姓名，列表展示时无需回表。
type Post struct {
	ID        uint      `gorm:"primaryKey"`
	FirstName string    `gorm:"size:64"`
	LastName  string    `gorm:"size:64"`
	UserID    uint      `gorm:"index;not null"`
	Message   string    `gorm:"type:text"`
	Picture   string    `gorm:"size:512"`
	Video     string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	User     User      `gorm:"foreignKey:UserID"`
	Likes    []Like    `gorm:"foreignKey:PostID"`
	Comments []Comment `gorm:"foreignKey:PostID"`
}

// Like 的 (user_id, post_id) 组合唯一。
type Like struct {
	ID        uint `gorm:"primaryKey"`
	PostID    uint `gorm:"not null;index;uniqueIndex:idx_like_user_post"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_like_user_post"`
	CreatedAt time.Time
}

type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	FirstName string `gorm:"size:64"`
	LastName  string `gorm:"size:64"`
	Message   string `gorm:"type:text;not null"`
	PostID    uint   `gorm:"index;not null"`
	UserID    uint   `gorm:"index;not null"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}
