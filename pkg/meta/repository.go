package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dbdb/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("file not found in catalog")

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record 追加一条文件记录，attrs 以 JSON 形式保存
func (r *Repository) Record(ctx context.Context, rec *FileRecord, attrs map[string]any) error {
	if attrs != nil {
		raw, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("failed to marshal attrs: %w", err)
		}
		rec.Attrs = datatypes.JSON(raw)
	}
	if err := r.db.GetConn().WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}
	return nil
}

// FindByName 返回 name 最近一次的记录
func (r *Repository) FindByName(ctx context.Context, name string) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		Order("id DESC").
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByRoot 返回引用了 root 的全部记录
func (r *Repository) FindByRoot(ctx context.Context, root types.Hash) ([]FileRecord, error) {
	var recs []FileRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("root = ?", root.String()).
		Order("id ASC").
		Find(&recs).Error
	return recs, err
}

// List 按写入顺序返回记录，limit <= 0 表示不限制
func (r *Repository) List(ctx context.Context, limit int) ([]FileRecord, error) {
	var recs []FileRecord
	q := r.db.GetConn().WithContext(ctx).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}
