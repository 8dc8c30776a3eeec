package model

import "time"

// Stem is the per-upstream working asset produced by a finalized job.
type Stem struct {
	ID            string   `gorm:"primaryKey;column:id;type:VARCHAR;size:64"`
	UpstreamID    *string  `gorm:"column:upstream_id;type:VARCHAR;size:64;index"`
	CategoryID    string   `gorm:"column:category_id;type:VARCHAR;size:64;not null"`
	TrackID       string   `gorm:"column:track_id;type:VARCHAR;size:64;not null;index:stems_scope_hash"`
	StageID       string   `gorm:"column:stage_id;type:VARCHAR;size:64;not null;index:stems_scope_hash"`
	StemHash      string   `gorm:"column:stem_hash;type:VARCHAR;size:128;not null;index:stems_scope_hash"`
	UserID        string   `gorm:"column:user_id;type:VARCHAR;size:64;not null"`
	FileName      string   `gorm:"column:file_name;type:VARCHAR;size:512;not null"`
	FilePath      string   `gorm:"column:file_path;type:TEXT;not null"`
	Key           *string  `gorm:"column:key;type:VARCHAR;size:32"`
	BPM           *float64 `gorm:"column:bpm"`
	AudioWavePath *string  `gorm:"column:audio_wave_path;type:TEXT"`
	CreatedAt     time.Time
}

// VersionStem is the per-stage released copy of a stem.
type VersionStem struct {
	ID            string   `gorm:"primaryKey;column:id;type:VARCHAR;size:64"`
	StemID        string   `gorm:"column:stem_id;type:VARCHAR;size:64;not null"`
	CategoryID    string   `gorm:"column:category_id;type:VARCHAR;size:64;not null"`
	TrackID       string   `gorm:"column:track_id;type:VARCHAR;size:64;not null;index:version_stems_scope_hash"`
	StageID       string   `gorm:"column:stage_id;type:VARCHAR;size:64;not null;index:version_stems_scope_hash"`
	StemHash      string   `gorm:"column:stem_hash;type:VARCHAR;size:128;not null;index:version_stems_scope_hash"`
	Version       int      `gorm:"column:version;not null"`
	UserID        string   `gorm:"column:user_id;type:VARCHAR;size:64;not null"`
	FileName      string   `gorm:"column:file_name;type:VARCHAR;size:512;not null"`
	FilePath      string   `gorm:"column:file_path;type:TEXT;not null"`
	Key           *string  `gorm:"column:key;type:VARCHAR;size:32"`
	BPM           *float64 `gorm:"column:bpm"`
	AudioWavePath *string  `gorm:"column:audio_wave_path;type:TEXT"`
	CreatedAt     time.Time
}

// NewStemFromJob copies the promotable fields of a job into a working stem.
func NewStemFromJob(id string, job Job) Stem {
	s := Stem{
		ID:            id,
		UpstreamID:    job.UpstreamID,
		TrackID:       job.TrackID,
		StageID:       job.StageID,
		UserID:        job.UserID,
		FileName:      job.FileName,
		FilePath:      job.FilePath,
		Key:           job.Key,
		BPM:           job.BPM,
		AudioWavePath: job.AudioWavePath,
	}
	if job.CategoryID != nil {
		s.CategoryID = *job.CategoryID
	}
	if job.StemHash != nil {
		s.StemHash = *job.StemHash
	}
	return s
}

// NewVersionStem derives the released copy of a working stem.
func NewVersionStem(id string, stem Stem, version int) VersionStem {
	return VersionStem{
		ID:            id,
		StemID:        stem.ID,
		CategoryID:    stem.CategoryID,
		TrackID:       stem.TrackID,
		StageID:       stem.StageID,
		StemHash:      stem.StemHash,
		Version:       version,
		UserID:        stem.UserID,
		FileName:      stem.FileName,
		FilePath:      stem.FilePath,
		Key:           stem.Key,
		BPM:           stem.BPM,
		AudioWavePath: stem.AudioWavePath,
	}
}
