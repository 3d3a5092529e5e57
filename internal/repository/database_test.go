package repository

import (
	"path/filepath"
	"testing"
)

func TestNewDatabaseMigratesToLatestVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "quest.db")
	d, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	defer d.Close()

	if d.SafeMode {
		t.Fatalf("unexpected safe mode: %s", d.MigrationError)
	}
	if d.SchemaVersion != latestSchemaVersion {
		t.Fatalf("schema version=%d, want %d", d.SchemaVersion, latestSchemaVersion)
	}
	if !d.DB.Migrator().HasTable("kv_store") || !d.DB.Migrator().HasTable("reward_logs") {
		t.Fatalf("expected kv_store and reward_logs tables")
	}

	// 重复打开不应重复迁移或进入安全模式
	d.Close()
	d2, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer d2.Close()
	if d2.SafeMode || d2.SchemaVersion != latestSchemaVersion {
		t.Fatalf("reopen safe=%v version=%d", d2.SafeMode, d2.SchemaVersion)
	}
}

func TestDSNAddsBusyTimeoutForFiles(t *testing.T) {
	if got := dsn(":memory:"); got != ":memory:" {
		t.Fatalf("dsn=%q, want :memory:", got)
	}
	if got := dsn("/tmp/quest.db"); got != "/tmp/quest.db?_pragma=busy_timeout(5000)" {
		t.Fatalf("dsn=%q", got)
	}
}
