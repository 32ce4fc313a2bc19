package sql

import (
	"gorm.io/gorm"

	"originmint/internal/entity"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GormRepository 基于 GORM 的审计日志仓库
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// pageWindow 规范化分页参数：页码从 1 开始，每页条数有上限
func pageWindow(params entity.BaseParams) (page, pageSize int) {
	page = int(params.Page)
	if page <= 0 {
		page = 1
	}
	pageSize = int(params.PageSize)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func (r *GormRepository) paginate(query *gorm.DB, params entity.BaseParams) (*gorm.DB, *entity.Meta, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}
	page, pageSize := pageWindow(params)
	return query.Offset((page - 1) * pageSize).Limit(pageSize), &entity.Meta{
		Page:     int64(page),
		PageSize: int64(pageSize),
		Total:    total,
	}, nil
}
