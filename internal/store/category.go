package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

type Category interface {
	Create(ctx context.Context, category model.Category) (*model.Category, error)
	GetByName(ctx context.Context, trackID, name string) (*model.Category, error)
}

type CategoryStore struct {
	db *gorm.DB
}

func NewCategoryStore(db *gorm.DB) Category {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Create(ctx context.Context, category model.Category) (*model.Category, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return &category, nil
}

func (s *CategoryStore) GetByName(ctx context.Context, trackID, name string) (*model.Category, error) {
	var category model.Category
	result := s.getDB(ctx).WithContext(ctx).First(&category, "track_id = ? AND name = ?", trackID, name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying category: %w", result.Error)
	}
	return &category, nil
}

func (s *CategoryStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
