package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("user store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM users;")
	})

	It("creates and reads a user", func() {
		_, err := s.User().Create(context.TODO(), model.User{ID: "U1", Username: "alice", Email: "alice@example.com"})
		Expect(err).To(BeNil())

		user, err := s.User().Get(context.TODO(), "U1")
		Expect(err).To(BeNil())
		Expect(user.Username).To(Equal("alice"))
	})

	It("refuses a second user with the same id", func() {
		_, err := s.User().Create(context.TODO(), model.User{ID: "U1", Username: "alice"})
		Expect(err).To(BeNil())

		_, err = s.User().Create(context.TODO(), model.User{ID: "U1", Username: "bob"})
		Expect(err).To(Equal(store.ErrDuplicateKey))
	})

	It("returns not found for an unknown user", func() {
		_, err := s.User().Get(context.TODO(), "nobody")
		Expect(err).To(Equal(store.ErrRecordNotFound))
	})
})
