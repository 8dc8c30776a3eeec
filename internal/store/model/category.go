package model

import "time"

type Category struct {
	ID        string `gorm:"primaryKey;column:id;type:VARCHAR;size:64"`
	Name      string `gorm:"column:name;type:VARCHAR;size:255;not null;uniqueIndex:categories_track_id_name"`
	TrackID   string `gorm:"column:track_id;type:VARCHAR;size:64;not null;uniqueIndex:categories_track_id_name"`
	CreatedAt time.Time
}
