package tasks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind identifies the worker routine a task is dispatched to.
type Kind string

const (
	KindGenerateHash    Kind = "generate-hash"
	KindDeleteDuplicate Kind = "delete-duplicate"
	KindAnalyzeAudio    Kind = "analyze-audio"
)

// Envelope is the self-describing message read by the worker. One JSON object per queue entry.
type Envelope struct {
	Task   string `json:"task"`
	ID     string `json:"id"`
	Args   []any  `json:"args"`
	Kwargs any    `json:"kwargs"`
}

// Task is implemented by the typed keyword payload of each task kind.
type Task interface {
	Kind() Kind
	JobID() string
}

// NewEnvelope wraps t. The id is a diagnostic trace key only.
func NewEnvelope(t Task, now time.Time) Envelope {
	return Envelope{
		Task:   string(t.Kind()),
		ID:     fmt.Sprintf("%s-%s-%d", t.Kind(), t.JobID(), now.UnixMilli()),
		Args:   []any{},
		Kwargs: t,
	}
}

// IdempotencyKey is deterministic per job and kind so redelivered requests collapse to one task.
func IdempotencyKey(jobID string, kind Kind) string {
	sum := sha256.Sum256([]byte(jobID + ":" + string(kind)))
	return hex.EncodeToString(sum[:])
}

type GenerateHashArgs struct {
	UserID           string `json:"userId"`
	TrackID          string `json:"trackId"`
	StageID          string `json:"stageId"`
	StemID           string `json:"stemId"`
	FilePath         string `json:"filepath"`
	OriginalFilename string `json:"original_filename"`
}

func (a GenerateHashArgs) Kind() Kind    { return KindGenerateHash }
func (a GenerateHashArgs) JobID() string { return a.StemID }

type DeleteDuplicateArgs struct {
	UserID        string `json:"userId"`
	TrackID       string `json:"trackId"`
	StageID       string `json:"stageId"`
	StemID        string `json:"stemId"`
	FilePath      string `json:"filepath"`
	DuplicateHash string `json:"duplicate_hash"`
}

func (a DeleteDuplicateArgs) Kind() Kind    { return KindDeleteDuplicate }
func (a DeleteDuplicateArgs) JobID() string { return a.StemID }

type AnalyzeAudioArgs struct {
	UserID           string `json:"userId"`
	TrackID          string `json:"trackId"`
	StageID          string `json:"stageId"`
	StemID           string `json:"stemId"`
	FilePath         string `json:"filepath"`
	StemHash         string `json:"stem_hash"`
	OriginalFilename string `json:"original_filename"`
	NumPeaks         int    `json:"numPeaks"`
}

func (a AnalyzeAudioArgs) Kind() Kind    { return KindAnalyzeAudio }
func (a AnalyzeAudioArgs) JobID() string { return a.StemID }
