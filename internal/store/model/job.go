package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the explicit lifecycle state of a stem job.
type JobStatus string

const (
	JobStatusCreated         JobStatus = "CREATED"
	JobStatusHashPending     JobStatus = "HASH_PENDING"
	JobStatusDuplicate       JobStatus = "DUPLICATE"
	JobStatusApproved        JobStatus = "APPROVED"
	JobStatusAnalysisPending JobStatus = "ANALYSIS_PENDING"
	JobStatusFinalized       JobStatus = "FINALIZED"
	JobStatusFailed          JobStatus = "FAILED"
)

// jobTransitions maps a target status to the statuses it may be entered from.
// The APPROVED -> HASH_PENDING step back is not listed here; see RevertApproval.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusHashPending:     {JobStatusCreated},
	JobStatusDuplicate:       {JobStatusCreated, JobStatusHashPending},
	JobStatusApproved:        {JobStatusCreated, JobStatusHashPending},
	JobStatusAnalysisPending: {JobStatusApproved},
	JobStatusFinalized:       {JobStatusAnalysisPending, JobStatusFailed},
	JobStatusFailed:          {JobStatusCreated, JobStatusHashPending, JobStatusApproved, JobStatusAnalysisPending},
}

// TransitionSources returns the statuses from which next can be entered.
func TransitionSources(next JobStatus) []JobStatus {
	return jobTransitions[next]
}

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, from := range jobTransitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// AwaitingHash reports whether the hash-check callback still has work to do.
func (s JobStatus) AwaitingHash() bool {
	return s == JobStatusCreated || s == JobStatusHashPending
}

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusDuplicate, JobStatusFinalized:
		return true
	default:
		return false
	}
}

// Job tracks one uploaded stem file between upload and promotion or discard.
type Job struct {
	ID            string    `gorm:"primaryKey;column:id;type:VARCHAR;size:64"`
	FileName      string    `gorm:"column:file_name;type:VARCHAR;size:512;not null"`
	FilePath      string    `gorm:"column:file_path;type:TEXT;not null"`
	StemHash      *string   `gorm:"column:stem_hash;type:VARCHAR;size:128;index"`
	Key           *string   `gorm:"column:key;type:VARCHAR;size:32"`
	BPM           *float64  `gorm:"column:bpm"`
	TrackID       string    `gorm:"column:track_id;type:VARCHAR;size:64;not null;index"`
	StageID       string    `gorm:"column:stage_id;type:VARCHAR;size:64;not null;index"`
	UpstreamID    *string   `gorm:"column:upstream_id;type:VARCHAR;size:64"`
	CategoryID    *string   `gorm:"column:category_id;type:VARCHAR;size:64"`
	UserID        string    `gorm:"column:user_id;type:VARCHAR;size:64;not null;index"`
	AudioWavePath *string   `gorm:"column:audio_wave_path;type:TEXT"`
	Status        JobStatus `gorm:"column:status;type:VARCHAR;size:32;not null;index"`
	FailureReason *string   `gorm:"column:failure_reason;type:TEXT"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Job) TableName() string {
	return "stem_jobs"
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
