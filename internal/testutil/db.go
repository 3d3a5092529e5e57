package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/MirrorQuest/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开内存 SQLite 并自动迁移所有表
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.KVEntry{},
		&schema.RewardLogEntry{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
