package v1alpha1

import (
	"encoding/json"
	"time"
)

// CreateJobRequest is sent by the browser once the file is in object storage.
type CreateJobRequest struct {
	FileName   string   `json:"fileName" validate:"required,max=512"`
	FilePath   string   `json:"filePath" validate:"required,object_path"`
	TrackID    string   `json:"trackId" validate:"required,max=64"`
	StageID    string   `json:"stageId" validate:"required,max=64"`
	UpstreamID *string  `json:"upstreamId,omitempty" validate:"omitempty,max=64"`
	Key        *string  `json:"key,omitempty" validate:"omitempty,max=32"`
	BPM        *float64 `json:"bpm,omitempty" validate:"omitempty,gt=0,lte=400"`
}

type Job struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	FileName      string    `json:"fileName"`
	FilePath      string    `json:"filePath"`
	TrackID       string    `json:"trackId"`
	StageID       string    `json:"stageId"`
	UpstreamID    *string   `json:"upstreamId,omitempty"`
	CategoryID    *string   `json:"categoryId,omitempty"`
	StemHash      *string   `json:"stemHash,omitempty"`
	Key           *string   `json:"key,omitempty"`
	BPM           *float64  `json:"bpm,omitempty"`
	AudioWavePath *string   `json:"audioWavePath,omitempty"`
	FailureReason *string   `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type JobList []Job

type HashCheckRequest struct {
	StemID           string `json:"stemId" validate:"required"`
	UserID           string `json:"userId" validate:"required"`
	TrackID          string `json:"trackId" validate:"required"`
	StageID          string `json:"stageId"`
	FilePath         string `json:"filepath"`
	AudioHash        string `json:"audio_hash" validate:"required,max=128"`
	Timestamp        string `json:"timestamp"`
	OriginalFilename string `json:"original_filename"`
}

type HashCheckResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	IsDuplicate bool   `json:"isDuplicate"`
	StemID      string `json:"stemId"`
	AudioHash   string `json:"audio_hash"`
}

type CompletionRequest struct {
	StemID           string          `json:"stemId" validate:"required"`
	UserID           string          `json:"userId" validate:"required"`
	TrackID          string          `json:"trackId" validate:"required"`
	Status           string          `json:"status" validate:"required,max=32"`
	Result           json.RawMessage `json:"result,omitempty"`
	Timestamp        string          `json:"timestamp"`
	OriginalFilename *string         `json:"original_filename,omitempty"`
	ProcessingTime   *float64        `json:"processing_time,omitempty"`
	AudioWavePath    *string         `json:"audio_wave_path,omitempty"`
}

type CompletionResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	StemID          string `json:"stemId"`
	ProcessedStatus string `json:"processedStatus"`
}

type ProgressRequest struct {
	StemID   string `json:"stemId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	TrackID  string `json:"trackId" validate:"required"`
	Progress int    `json:"progress" validate:"gte=0,lte=100"`
	Stage    string `json:"stage" validate:"required"`
	Message  string `json:"message,omitempty"`
}

type ProgressResponse struct {
	Status string `json:"status"`
	StemID string `json:"stemId"`
}

type MixingCompleteRequest struct {
	StageID       string   `json:"stageId" validate:"required"`
	Status        string   `json:"status" validate:"required,max=32"`
	MixedFilePath string   `json:"mixed_file_path"`
	StemCount     int      `json:"stem_count" validate:"gte=0"`
	StemPaths     []string `json:"stem_paths"`
	TaskID        string   `json:"task_id"`
	ProcessedAt   string   `json:"processed_at"`
}

type MixingCompleteResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	StageID       string `json:"stageId"`
	MixedFilePath string `json:"mixedFilePath,omitempty"`
	StemCount     int    `json:"stemCount"`
}

type Error struct {
	Message string `json:"message"`
}
