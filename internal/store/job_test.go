package store_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

const (
	insertJobStm = "INSERT INTO stem_jobs (id, file_name, file_path, track_id, stage_id, user_id, status, created_at, updated_at) VALUES ('%s', 'drums.wav', 'uploads/drums.wav', '%s', 'stage-1', '%s', '%s', '%s', '%s');"
)

func insertJob(db *gorm.DB, id, trackID, userID string, status model.JobStatus, updatedAt time.Time) {
	ts := updatedAt.Format("2006-01-02 15:04:05")
	tx := db.Exec(fmt.Sprintf(insertJobStm, id, trackID, userID, status, ts, ts))
	Expect(tx.Error).To(BeNil())
}

var _ = Describe("job store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := store.InitDB(testConfig())
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration(context.TODO())).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM stem_jobs;")
	})

	Context("create and get", func() {
		It("creates a job in CREATED status", func() {
			job, err := s.Job().Create(context.TODO(), model.Job{
				ID:       "job-1",
				FileName: "drums.wav",
				FilePath: "uploads/drums.wav",
				TrackID:  "track-1",
				StageID:  "stage-1",
				UserID:   "user-1",
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCreated))

			got, err := s.Job().Get(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(got.FileName).To(Equal("drums.wav"))
			Expect(got.StemHash).To(BeNil())
		})

		It("rejects a duplicated id", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusCreated, time.Now())
			_, err := s.Job().Create(context.TODO(), model.Job{
				ID:       "job-1",
				FileName: "drums.wav",
				FilePath: "uploads/drums.wav",
				TrackID:  "track-1",
				StageID:  "stage-1",
				UserID:   "user-1",
			})
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})

		It("returns ErrRecordNotFound for a missing job", func() {
			_, err := s.Job().Get(context.TODO(), "missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("field updates", func() {
		It("persists hash, category and wave path", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusHashPending, time.Now())

			Expect(s.Job().SetHash(context.TODO(), "job-1", "H1")).To(BeNil())
			Expect(s.Job().SetCategory(context.TODO(), "job-1", "cat-1")).To(BeNil())
			Expect(s.Job().SetWavePath(context.TODO(), "job-1", "waves/drums.json")).To(BeNil())

			job, err := s.Job().Get(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(*job.StemHash).To(Equal("H1"))
			Expect(*job.CategoryID).To(Equal("cat-1"))
			Expect(*job.AudioWavePath).To(Equal("waves/drums.json"))
		})

		It("reports a missing job", func() {
			err := s.Job().SetHash(context.TODO(), "missing", "H1")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("transition", func() {
		It("moves along an allowed edge", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusHashPending, time.Now())

			job, err := s.Job().Transition(context.TODO(), "job-1", model.JobStatusApproved)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusApproved))

			job, err = s.Job().Transition(context.TODO(), "job-1", model.JobStatusAnalysisPending)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusAnalysisPending))
		})

		It("lets only the first of two identical transitions win", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusHashPending, time.Now())

			_, err := s.Job().Transition(context.TODO(), "job-1", model.JobStatusApproved)
			Expect(err).To(BeNil())

			_, err = s.Job().Transition(context.TODO(), "job-1", model.JobStatusApproved)
			Expect(err).To(MatchError(store.ErrInvalidTransition))
		})

		It("refuses to skip the analysis step", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusHashPending, time.Now())

			_, err := s.Job().Transition(context.TODO(), "job-1", model.JobStatusFinalized)
			Expect(err).To(MatchError(store.ErrInvalidTransition))

			job, err := s.Job().Get(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusHashPending))
		})

		It("reports a missing job instead of an invalid transition", func() {
			_, err := s.Job().Transition(context.TODO(), "missing", model.JobStatusApproved)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("records the failure reason", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusAnalysisPending, time.Now())

			job, err := s.Job().MarkFailed(context.TODO(), "job-1", "decoder crashed")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(*job.FailureReason).To(Equal("decoder crashed"))

			job, err = s.Job().Transition(context.TODO(), "job-1", model.JobStatusFinalized)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFinalized))
		})

		It("enters hash pending only from created", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusApproved, time.Now())

			_, err := s.Job().Transition(context.TODO(), "job-1", model.JobStatusHashPending)
			Expect(err).To(MatchError(store.ErrInvalidTransition))

			job, err := s.Job().Get(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusApproved))
		})

		It("reverts an approval only while approved", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusApproved, time.Now())
			insertJob(gormdb, "job-2", "track-1", "user-1", model.JobStatusCreated, time.Now())

			job, err := s.Job().RevertApproval(context.TODO(), "job-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusHashPending))

			_, err = s.Job().RevertApproval(context.TODO(), "job-2")
			Expect(err).To(MatchError(store.ErrInvalidTransition))
		})

		It("fails a job that never reached analysis", func() {
			for i, status := range []model.JobStatus{model.JobStatusCreated, model.JobStatusHashPending, model.JobStatusApproved} {
				id := fmt.Sprintf("job-%d", i)
				insertJob(gormdb, id, "track-1", "user-1", status, time.Now())

				job, err := s.Job().MarkFailed(context.TODO(), id, "worker gave up")
				Expect(err).To(BeNil())
				Expect(job.Status).To(Equal(model.JobStatusFailed))
			}
		})
	})

	Context("list and delete", func() {
		It("filters by status and age", func() {
			old := time.Now().Add(-48 * time.Hour)
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusFailed, old)
			insertJob(gormdb, "job-2", "track-1", "user-1", model.JobStatusFailed, time.Now())
			insertJob(gormdb, "job-3", "track-1", "user-1", model.JobStatusAnalysisPending, old)

			jobs, err := s.Job().List(context.TODO(),
				store.NewJobQueryFilter().ByStatus(model.JobStatusFailed).UpdatedBefore(time.Now().Add(-24*time.Hour)),
				store.NewJobQueryOptions().WithSortOrder(store.SortByUpdatedTime))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal("job-1"))
		})

		It("filters by owner", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusCreated, time.Now())
			insertJob(gormdb, "job-2", "track-1", "user-2", model.JobStatusCreated, time.Now())

			jobs, err := s.Job().List(context.TODO(), store.NewJobQueryFilter().ByUserID("user-2"), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal("job-2"))
		})

		It("counts jobs by status", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusFailed, time.Now())
			insertJob(gormdb, "job-2", "track-1", "user-1", model.JobStatusFailed, time.Now())
			insertJob(gormdb, "job-3", "track-1", "user-1", model.JobStatusApproved, time.Now())

			counts, err := s.Job().CountByStatus(context.TODO())
			Expect(err).To(BeNil())
			Expect(counts[model.JobStatusFailed]).To(Equal(int64(2)))
			Expect(counts[model.JobStatusApproved]).To(Equal(int64(1)))
			Expect(counts[model.JobStatusCreated]).To(Equal(int64(0)))
		})

		It("deletes a job once", func() {
			insertJob(gormdb, "job-1", "track-1", "user-1", model.JobStatusCreated, time.Now())

			Expect(s.Job().Delete(context.TODO(), "job-1")).To(BeNil())
			Expect(s.Job().Delete(context.TODO(), "job-1")).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
