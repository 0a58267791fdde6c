package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"groupomania/internal/auth"
	"groupomania/internal/db"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newUserService(t *testing.T, gdb *gorm.DB) *UserService {
	t.Helper()
	return NewUserService(gdb, auth.NewIssuer("test-secret", 24*time.Hour), AuthOptions{AdminEmail: "admin@admin.admin"})
}

// mustRegister 注册用户并返回有效会话对应的身份。
func mustRegister(t *testing.T, users *UserService, email string) auth.Identity {
	t.Helper()
	u, err := users.Register(context.Background(), RegisterInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     email,
		Password:  "password1",
	})
	require.NoError(t, err)
	return auth.Identity{UserID: u.ID}
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	var se *Error
	require.True(t, errors.As(err, &se), "expected *service.Error, got %v", err)
	require.Equal(t, kind, se.Kind, "unexpected error kind for %v", err)
}

func staticPicture(url string) PictureSource {
	return func(context.Context) (string, error) { return url, nil }
}
