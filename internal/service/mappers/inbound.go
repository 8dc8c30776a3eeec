package mappers

import (
	api "github.com/stemflow/stemflow/api/v1alpha1"
	"github.com/stemflow/stemflow/internal/store/model"
)

func JobFromApi(id string, user model.User, resource api.CreateJobRequest) model.Job {
	return model.Job{
		ID:         id,
		UserID:     user.ID,
		FileName:   resource.FileName,
		FilePath:   resource.FilePath,
		TrackID:    resource.TrackID,
		StageID:    resource.StageID,
		UpstreamID: resource.UpstreamID,
		Key:        resource.Key,
		BPM:        resource.BPM,
		Status:     model.JobStatusCreated,
	}
}
