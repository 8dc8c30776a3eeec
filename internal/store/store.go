package store

import (
	"context"

	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Stem() Stem
	Category() Category
	Stage() Stage
	User() User
	InitialMigration(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	job      Job
	stem     Stem
	category Category
	stage    Stage
	user     User
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		job:      NewJobStore(db),
		stem:     NewStemStore(db),
		category: NewCategoryStore(db),
		stage:    NewStageStore(db),
		user:     NewUserStore(db),
		db:       db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Stem() Stem {
	return s.stem
}

func (s *DataStore) Category() Category {
	return s.category
}

func (s *DataStore) Stage() Stage {
	return s.stage
}

func (s *DataStore) User() User {
	return s.user
}

// InitialMigration creates the schema from the gorm models. Used for sqlite and
// development databases; production schemas are managed with goose.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.Stage{},
		&model.Category{},
		&model.Job{},
		&model.Stem{},
		&model.VersionStem{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
