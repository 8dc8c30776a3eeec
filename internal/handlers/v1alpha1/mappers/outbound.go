package mappers

import (
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"github.com/stemflow/stemflow/internal/store/model"
)

func JobToApi(j model.Job) api.Job {
	return api.Job{
		ID:            j.ID,
		Status:        string(j.Status),
		FileName:      j.FileName,
		FilePath:      j.FilePath,
		TrackID:       j.TrackID,
		StageID:       j.StageID,
		UpstreamID:    j.UpstreamID,
		CategoryID:    j.CategoryID,
		StemHash:      j.StemHash,
		Key:           j.Key,
		BPM:           j.BPM,
		AudioWavePath: j.AudioWavePath,
		FailureReason: j.FailureReason,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

func JobListToApi(jobs ...model.Job) api.JobList {
	list := make(api.JobList, 0, len(jobs))
	for _, j := range jobs {
		list = append(list, JobToApi(j))
	}
	return list
}
