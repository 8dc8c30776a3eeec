package migrations_test

import (
	"fmt"
	"os"
	"path"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stemflow/stemflow/internal/config"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/pkg/migrations"
	"gorm.io/gorm"
)

var _ = Describe("migrations", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Type = "sqlite"
		cfg.Database.Name = "file::memory:?cache=shared"
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
	})

	AfterAll(func() {
		s.Close()
	})

	Context("store migrations", Ordered, func() {
		It("fails to migrate the db -- migration folder does not exist", func() {
			err := migrations.MigrateStore(gormdb, "some folder")
			Expect(err).NotTo(BeNil())
		})

		It("fails to migrate the db -- migration folder is a file", func() {
			currentFolder, err := os.Getwd()
			Expect(err).To(BeNil())

			err = migrations.MigrateStore(gormdb, path.Join(currentFolder, "migrations.go"))
			Expect(err).NotTo(BeNil())
		})

		It("successfully migrates the db", func() {
			currentFolder, err := os.Getwd()
			Expect(err).To(BeNil())

			err = migrations.MigrateStore(gormdb, path.Join(currentFolder, "sql"))
			Expect(err).To(BeNil())

			tableExists := func(name string) bool {
				var count int64
				tx := gormdb.Raw(fmt.Sprintf("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = '%s';", name)).Scan(&count)
				Expect(tx.Error).To(BeNil())

				return count == 1
			}

			for _, table := range []string{"users", "stages", "categories", "stem_jobs", "stems", "version_stems"} {
				Expect(tableExists(table)).To(BeTrue(), table)
			}
		})

		It("leaves a schema the store can use", func() {
			currentFolder, err := os.Getwd()
			Expect(err).To(BeNil())
			Expect(migrations.MigrateStore(gormdb, path.Join(currentFolder, "sql"))).To(Succeed())

			tx := gormdb.Exec("INSERT INTO stem_jobs (id, file_name, file_path, track_id, stage_id, user_id, status) VALUES ('J1', 'kick.wav', 'uploads/kick.wav', 'T1', 'S1', 'U1', 'CREATED');")
			Expect(tx.Error).To(BeNil())
		})

		AfterAll(func() {
			gormdb.Exec("DROP TABLE IF EXISTS version_stems;")
			gormdb.Exec("DROP TABLE IF EXISTS stems;")
			gormdb.Exec("DROP TABLE IF EXISTS stem_jobs;")
			gormdb.Exec("DROP TABLE IF EXISTS categories;")
			gormdb.Exec("DROP TABLE IF EXISTS stages;")
			gormdb.Exec("DROP TABLE IF EXISTS users;")
			gormdb.Exec("DROP TABLE IF EXISTS goose_db_version;")
		})
	})
})
