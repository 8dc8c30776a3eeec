package storage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stemflow/stemflow/internal/storage"
)

var _ = Describe("minio store", func() {
	var (
		server  *httptest.Server
		objects *fakeBucket
		store   *storage.MinioStore
	)

	BeforeEach(func() {
		objects = &fakeBucket{objects: map[string]bool{"/stemflow/uploads/kick.wav": true}}
		server = httptest.NewServer(objects)

		var err error
		store, err = storage.NewMinioStore(
			storage.WithEndpoint(strings.TrimPrefix(server.URL, "http://")),
			storage.WithBucket("stemflow"),
			storage.WithCredentials("access", "secret"),
		)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		server.Close()
	})

	It("finds an uploaded object", func() {
		found, err := store.Exists(context.TODO(), "uploads/kick.wav")
		Expect(err).To(BeNil())
		Expect(found).To(BeTrue())
	})

	It("reports a missing object without an error", func() {
		found, err := store.Exists(context.TODO(), "uploads/missing.wav")
		Expect(err).To(BeNil())
		Expect(found).To(BeFalse())
	})

	It("removes an object", func() {
		Expect(store.Remove(context.TODO(), "/uploads/kick.wav")).To(Succeed())
		Expect(objects.has("/stemflow/uploads/kick.wav")).To(BeFalse())
	})

	It("signs requests for the configured region", func() {
		regional, err := storage.NewMinioStore(
			storage.WithEndpoint(strings.TrimPrefix(server.URL, "http://")),
			storage.WithBucket("stemflow"),
			storage.WithCredentials("access", "secret"),
			storage.WithRegion("eu-west-1"),
		)
		Expect(err).To(BeNil())

		_, err = regional.Exists(context.TODO(), "uploads/kick.wav")
		Expect(err).To(BeNil())
		Expect(objects.authorizations()).To(ContainElement(ContainSubstring("/eu-west-1/s3/aws4_request")))
	})

	It("requires a bucket", func() {
		_, err := storage.NewMinioStore(storage.WithEndpoint("localhost:9000"))
		Expect(err).NotTo(BeNil())
	})
})

var _ = Describe("noop store", func() {
	It("assumes every object exists", func() {
		found, err := storage.NoopStore{}.Exists(context.TODO(), "anything")
		Expect(err).To(BeNil())
		Expect(found).To(BeTrue())
		Expect(storage.NoopStore{}.Remove(context.TODO(), "anything")).To(Succeed())
	})
})

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]bool
	auth    []string
}

func (f *fakeBucket) authorizations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeBucket) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[path]
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	switch r.Method {
	case http.MethodHead:
		if !f.objects[r.URL.Path] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Content-Length", "0")
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
