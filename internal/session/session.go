// Package session 保存生成批次与文件名之间的映射，供发布时回查 prompt 并清理整批文件。
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 表示文件名不在会话中（已过期、已发布或服务重启）
var ErrNotFound = errors.New("session: entry not found")

// ErrClaimed 表示同批的另一张图正在发布
var ErrClaimed = errors.New("session: batch already claimed")

// Entry 是单个文件名对应的会话记录
type Entry struct {
	Filename  string    `json:"filename"`
	BatchID   string    `json:"batch_id"`
	Prompt    string    `json:"prompt"`
	Siblings  []string  `json:"siblings"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 是生成会话存储。PutBatch 与 TakeBatch 之间的批次记账必须在并发下保持一致。
type Store interface {
	// PutBatch 登记一整批文件名
	PutBatch(ctx context.Context, batchID, prompt string, filenames []string) error
	// Lookup 返回文件名对应的记录，不存在时返回 ErrNotFound
	Lookup(ctx context.Context, filename string) (*Entry, error)
	// Claim 原子地占用文件名所在的批次并返回记录，批次已被占用时返回 ErrClaimed
	Claim(ctx context.Context, filename string) (*Entry, error)
	// Release 释放占用，发布失败后同批文件可以重试
	Release(ctx context.Context, batchID string) error
	// TakeBatch 原子地移除文件名所在的整批记录并返回该批全部文件名
	TakeBatch(ctx context.Context, filename string) ([]string, error)
	// Sweep 移除创建时间早于 olderThan 的批次，返回被移除的文件名
	Sweep(ctx context.Context, olderThan time.Time) ([]string, error)
	// Count 返回当前登记的批次数
	Count(ctx context.Context) (int, error)
	// Clear 清空全部记录
	Clear(ctx context.Context) error
}
