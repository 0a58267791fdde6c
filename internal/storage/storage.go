// Package storage 保存上传的图片并生成公开访问 URL。
package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 上传文件的目录，磁盘存储下同名路径即静态访问路径。
const (
	FolderPost    = "post"
	FolderProfile = "profil"
)

// DefaultProfilePicture 是未上传头像时使用的默认头像 key。
const DefaultProfilePicture = FolderProfile + "/random-User.png"

// DefaultProfileImage 是默认头像的 PNG 内容，随二进制一起发布。
//
//go:embed assets/random-User.png
var DefaultProfileImage []byte

var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Store 把对象保存到 folder 下并返回 key；URL 把 key 转成绝对地址，baseURL 为 API 的协议加主机。
type Store interface {
	Put(ctx context.Context, folder, filename string, r io.Reader, size int64) (string, error)
	URL(baseURL, key string) string
}

// ObjectName 生成 "<unix>-<uuid><ext>"，只保留白名单中的图片后缀。
func ObjectName(filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ct, ok := allowedExt[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return fmt.Sprintf("%d-%s%s", time.Now().Unix(), uuid.NewString(), ext), ct, nil
}

// DiskStore 把文件写到 Root 下，由路由以静态目录对外提供。
type DiskStore struct {
	Root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	for _, f := range []string{FolderPost, FolderProfile} {
		if err := os.MkdirAll(filepath.Join(root, f), 0o755); err != nil {
			return nil, err
		}
	}
	// 默认头像只在缺失时写入，不覆盖运维替换过的文件。
	avatar := filepath.Join(root, filepath.FromSlash(DefaultProfilePicture))
	if _, err := os.Stat(avatar); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(avatar, DefaultProfileImage, 0o644); err != nil {
			return nil, fmt.Errorf("write default avatar: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return &DiskStore{Root: root}, nil
}

func (s *DiskStore) Put(_ context.Context, folder, filename string, r io.Reader, _ int64) (string, error) {
	name, _, err := ObjectName(filename)
	if err != nil {
		return "", err
	}
	key := path.Join(folder, name)
	f, err := os.Create(filepath.Join(s.Root, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return key, nil
}

func (s *DiskStore) URL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
