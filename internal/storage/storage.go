package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"originmint/internal/config"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
)

// ErrObjectNotFound 表示对象在存储后端中不存在。
var ErrObjectNotFound = errors.New("storage: object not found")

// SaveOptions 控制存储后端如何持久化文件。
//
// Category 为空时对象直接位于根目录，Extension 不含前导点。
// BaseName 必须非空，生成的文件名由调用方决定，便于之后按文件名回查。
type SaveOptions struct {
	Category  string
	Extension string
	BaseName  string
}

// Storage 保存生成图片并按 key 读取、删除。
// key 不包含后端自身的前缀，调用方可以把它直接当作文件名对外暴露。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

func checkPayload(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}
