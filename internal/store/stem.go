package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

type Stem interface {
	Create(ctx context.Context, stem model.Stem) (*model.Stem, error)
	CreateVersion(ctx context.Context, version model.VersionStem) (*model.VersionStem, error)
	// ExistsByHash reports whether a permanent asset with hash exists in the given track and stage.
	ExistsByHash(ctx context.Context, trackID, stageID, hash string) (bool, error)
	NextVersion(ctx context.Context, stageID, categoryID string) (int, error)
}

type StemStore struct {
	db *gorm.DB
}

var _ Stem = (*StemStore)(nil)

func NewStemStore(db *gorm.DB) Stem {
	return &StemStore{db: db}
}

func (s *StemStore) Create(ctx context.Context, stem model.Stem) (*model.Stem, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&stem).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating stem: %w", err)
	}
	return &stem, nil
}

func (s *StemStore) CreateVersion(ctx context.Context, version model.VersionStem) (*model.VersionStem, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating version stem: %w", err)
	}
	return &version, nil
}

func (s *StemStore) ExistsByHash(ctx context.Context, trackID, stageID, hash string) (bool, error) {
	db := s.getDB(ctx).WithContext(ctx)

	var count int64
	if err := db.Model(&model.Stem{}).
		Where("track_id = ? AND stage_id = ? AND stem_hash = ?", trackID, stageID, hash).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting stems: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	if err := db.Model(&model.VersionStem{}).
		Where("track_id = ? AND stage_id = ? AND stem_hash = ?", trackID, stageID, hash).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting version stems: %w", err)
	}
	return count > 0, nil
}

func (s *StemStore) NextVersion(ctx context.Context, stageID, categoryID string) (int, error) {
	var count int64
	if err := s.getDB(ctx).WithContext(ctx).
		Model(&model.VersionStem{}).
		Where("stage_id = ? AND category_id = ?", stageID, categoryID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting version stems: %w", err)
	}
	return int(count) + 1, nil
}

func (s *StemStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
