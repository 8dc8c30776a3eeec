package v1alpha1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	api "github.com/stemflow/stemflow/api/v1alpha1"
	handlers "github.com/stemflow/stemflow/internal/handlers/v1alpha1"
	"github.com/stemflow/stemflow/internal/service"
	"github.com/stemflow/stemflow/internal/storage"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"github.com/stemflow/stemflow/internal/tasks"
	"gorm.io/gorm"
)

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

var _ = Describe("service handler", Ordered, func() {
	var (
		s        store.Store
		gormdb   *gorm.DB
		producer *countingProducer
		router   *chi.Mux
	)

	do := func(method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if user != "" {
			req.Header.Set("X-User", user)
		}
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

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

	BeforeEach(func() {
		producer = &countingProducer{}
		h := handlers.NewServiceHandler(
			service.NewJobService(s, producer, storage.NoopStore{}, nopNotifier{}),
			service.NewWebhookService(s, producer, nopNotifier{}),
			"s3cret",
		)
		router = chi.NewRouter()
		h.RegisterJobRoutes(router, headerAuthn)
		h.RegisterWebhookRoutes(router)
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM stem_jobs;")
		gormdb.Exec("DELETE FROM categories;")
		gormdb.Exec("DELETE FROM stages;")
		gormdb.Exec("DELETE FROM stems;")
		gormdb.Exec("DELETE FROM version_stems;")
	})

	Context("jobs", func() {
		createBody := api.CreateJobRequest{FileName: "kick.wav", FilePath: "uploads/kick.wav", TrackID: "T1", StageID: "S1"}

		It("creates a job", func() {
			rec := do(http.MethodPost, "/api/v1/jobs", "U1", createBody)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var job api.Job
			Expect(json.Unmarshal(rec.Body.Bytes(), &job)).To(Succeed())
			Expect(job.Status).To(Equal(string(model.JobStatusHashPending)))
			Expect(producer.kinds).To(Equal([]tasks.Kind{tasks.KindGenerateHash}))
		})

		It("rejects an invalid body", func() {
			body := createBody
			body.FilePath = "../etc/passwd"
			rec := do(http.MethodPost, "/api/v1/jobs", "U1", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(producer.kinds).To(BeEmpty())
		})

		It("requires a user", func() {
			rec := do(http.MethodPost, "/api/v1/jobs", "", createBody)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("hides jobs of other users", func() {
			rec := do(http.MethodPost, "/api/v1/jobs", "U1", createBody)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			var job api.Job
			Expect(json.Unmarshal(rec.Body.Bytes(), &job)).To(Succeed())

			Expect(do(http.MethodGet, "/api/v1/jobs/"+job.ID, "U1", nil).Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodGet, "/api/v1/jobs/"+job.ID, "U2", nil).Code).To(Equal(http.StatusNotFound))

			rec = do(http.MethodGet, "/api/v1/jobs?trackId=T1", "U1", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var list api.JobList
			Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
			Expect(list).To(HaveLen(1))
		})
	})

	Context("webhooks", func() {
		secret := []string{"X-Webhook-Secret", "s3cret"}

		It("refuses callbacks without the shared secret", func() {
			rec := do(http.MethodPost, "/webhook/progress", "", api.ProgressRequest{StemID: "J1", UserID: "U1", TrackID: "T1", Stage: "decode"})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("answers 200 for a job that no longer exists", func() {
			rec := do(http.MethodPost, "/webhook/hash-check", "", api.HashCheckRequest{
				StemID: "missing", UserID: "U1", TrackID: "T1", AudioHash: testHash,
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp api.HashCheckResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Success).To(BeFalse())
		})

		It("rejects a hash check without a hash", func() {
			rec := do(http.MethodPost, "/webhook/hash-check", "", api.HashCheckRequest{
				StemID: "J1", UserID: "U1", TrackID: "T1",
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("passes any hash format through to the service", func() {
			_, err := s.Job().Create(context.TODO(), model.Job{
				ID: "J1", FileName: "kick.wav", FilePath: "uploads/kick.wav",
				TrackID: "T1", StageID: "S1", UserID: "U1", Status: model.JobStatusHashPending,
			})
			Expect(err).To(BeNil())

			rec := do(http.MethodPost, "/webhook/hash-check", "", api.HashCheckRequest{
				StemID: "J1", UserID: "U1", TrackID: "T1", AudioHash: "xxh3:1f2e3d4c", OriginalFilename: "kick.wav",
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusOK))

			job, err := s.Job().Get(context.TODO(), "J1")
			Expect(err).To(BeNil())
			Expect(*job.StemHash).To(Equal("xxh3:1f2e3d4c"))
		})

		It("records a worker status other than success as a failure", func() {
			_, err := s.Job().Create(context.TODO(), model.Job{
				ID: "J1", FileName: "kick.wav", FilePath: "uploads/kick.wav",
				TrackID: "T1", StageID: "S1", UserID: "U1", Status: model.JobStatusAnalysisPending,
			})
			Expect(err).To(BeNil())

			rec := do(http.MethodPost, "/webhook/completion", "", api.CompletionRequest{
				StemID: "J1", UserID: "U1", TrackID: "T1", Status: "FAILED", Result: json.RawMessage(`{"error":"timeout"}`),
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusOK))

			job, err := s.Job().Get(context.TODO(), "J1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(*job.FailureReason).To(Equal("timeout"))
		})

		It("drives a job from hash check to completion", func() {
			_, err := s.Job().Create(context.TODO(), model.Job{
				ID: "J1", FileName: "kick.wav", FilePath: "uploads/kick.wav",
				TrackID: "T1", StageID: "S1", UserID: "U1", Status: model.JobStatusHashPending,
			})
			Expect(err).To(BeNil())

			rec := do(http.MethodPost, "/webhook/hash-check", "", api.HashCheckRequest{
				StemID: "J1", UserID: "U1", TrackID: "T1", AudioHash: testHash, OriginalFilename: "kick.wav",
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodPost, "/webhook/completion", "", api.CompletionRequest{
				StemID: "J1", UserID: "U1", TrackID: "T1", Status: "SUCCESS", Result: json.RawMessage(`{"bpm":90}`),
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp api.CompletionResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Status).To(Equal("success"))

			_, err = s.Job().Get(context.TODO(), "J1")
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})

		It("maps an invariant violation to 409", func() {
			_, err := s.Job().Create(context.TODO(), model.Job{
				ID: "J1", FileName: "kick.wav", FilePath: "uploads/kick.wav",
				TrackID: "T1", StageID: "S1", UserID: "U1", Status: model.JobStatusAnalysisPending,
			})
			Expect(err).To(BeNil())

			rec := do(http.MethodPost, "/webhook/completion", "", api.CompletionRequest{
				StemID: "J1", UserID: "U1", TrackID: "T1", Status: "SUCCESS",
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("rejects a successful mixdown without a file", func() {
			Expect(gormdb.Create(&model.Stage{ID: "S1", TrackID: "T1", Title: "verse"}).Error).To(BeNil())

			rec := do(http.MethodPost, "/webhook/mixing-complete", "", api.MixingCompleteRequest{
				StageID: "S1", Status: "success",
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("acknowledges mixing complete for an unknown stage", func() {
			rec := do(http.MethodPost, "/webhook/mixing-complete", "", api.MixingCompleteRequest{
				StageID: "S9", Status: "SUCCESS", MixedFilePath: "mixes/S9.wav",
			}, secret...)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp api.MixingCompleteResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Status).To(Equal("ignored"))
		})
	})
})
