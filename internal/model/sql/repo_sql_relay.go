package sql

import (
	"context"
	"fmt"
	"strings"

	"originmint/internal/entity"
)

// CreateRelayRecord 追加一条链上中继审计记录
func (r *GormRepository) CreateRelayRecord(ctx context.Context, record *entity.DbRelayRecord) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(record.Action) == "" {
		return fmt.Errorf("relay record action is required")
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// ListRelayRecords 分页查询审计记录，按时间倒序
func (r *GormRepository) ListRelayRecords(ctx context.Context, params *entity.RelayRecordQuery) ([]entity.DbRelayRecord, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbRelayRecord{})
	if params != nil {
		if trimmed := strings.TrimSpace(params.Action); trimmed != "" {
			query = query.Where("action = ?", trimmed)
		}
		if trimmed := strings.TrimSpace(params.Wallet); trimmed != "" {
			query = query.Where("LOWER(wallet) = ?", strings.ToLower(trimmed))
		}
		if trimmed := strings.ToLower(strings.TrimSpace(params.Status)); trimmed != "" && trimmed != "all" {
			query = query.Where("status = ?", trimmed)
		}
	}

	var base entity.BaseParams
	if params != nil {
		base = params.BaseParams
	}
	paged, meta, err := r.paginate(query, base)
	if err != nil {
		return nil, nil, err
	}

	var records []entity.DbRelayRecord
	if err := paged.Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, nil, err
	}
	return records, meta, nil
}
