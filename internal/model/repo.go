package model

import (
	"context"

	"originmint/internal/entity"
)

// Repository 定义审计日志的数据库操作
type Repository interface {
	CreateRelayRecord(ctx context.Context, record *entity.DbRelayRecord) error
	ListRelayRecords(ctx context.Context, params *entity.RelayRecordQuery) ([]entity.DbRelayRecord, *entity.Meta, error)
}
