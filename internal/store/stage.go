package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

type Stage interface {
	Get(ctx context.Context, id string) (*model.Stage, error)
	SetMixPath(ctx context.Context, id string, path string) error
}

type StageStore struct {
	db *gorm.DB
}

func NewStageStore(db *gorm.DB) Stage {
	return &StageStore{db: db}
}

func (s *StageStore) Get(ctx context.Context, id string) (*model.Stage, error) {
	var stage model.Stage
	result := s.getDB(ctx).WithContext(ctx).First(&stage, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying stage: %w", result.Error)
	}
	return &stage, nil
}

func (s *StageStore) SetMixPath(ctx context.Context, id string, path string) error {
	now := time.Now()
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Stage{}).
		Where("id = ?", id).
		Updates(map[string]any{"mix_path": path, "mixed_at": now, "updated_at": now})
	if result.Error != nil {
		return fmt.Errorf("updating stage mix path: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *StageStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
