package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/reminder-engine/internal/infra/postgresql"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createKVEntriesTable(),
		createDeliveryAttemptsTable(),
	})

	return m.Migrate()
}

func createKVEntriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_kv_entries",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&postgresql.KVEntryModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&postgresql.KVEntryModel{})
		},
	}
}
