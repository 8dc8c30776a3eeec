package model

import "time"

type Stage struct {
	ID        string  `gorm:"primaryKey;column:id;type:VARCHAR;size:64"`
	TrackID   string  `gorm:"column:track_id;type:VARCHAR;size:64;not null;index"`
	Title     string  `gorm:"column:title;type:VARCHAR;size:255"`
	MixPath   *string `gorm:"column:mix_path;type:TEXT"`
	MixedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
