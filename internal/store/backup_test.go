package store

import (
	"testing"
	"time"

	"github.com/dstark/habitforge/internal/database"
	"github.com/dstark/habitforge/internal/model"
)

func setupBackupTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db)
}

func TestBackupLifecycle(t *testing.T) {
	bs := setupBackupTestDB(t)

	record, err := bs.Create("backups/2026-08-29T030000Z-abc.db.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if record.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", record.Status, model.BackupStatusPending)
	}

	if err := bs.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := bs.Complete(record.ID, 4096); err != nil {
		t.Fatalf("complete: %v", err)
	}

	records, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", records[0].Status)
	}
	if records[0].SizeBytes != 4096 {
		t.Errorf("size = %d, want 4096", records[0].SizeBytes)
	}
	if records[0].Error != "" {
		t.Errorf("error = %q, want empty after completion", records[0].Error)
	}
}

func TestBackupListNewestFirstWithLimit(t *testing.T) {
	bs := setupBackupTestDB(t)

	for _, key := range []string{"backups/a.db.enc", "backups/b.db.enc", "backups/c.db.enc"} {
		if _, err := bs.Create(key); err != nil {
			t.Fatalf("create %s: %v", key, err)
		}
	}

	records, err := bs.List(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ObjectKey != "backups/c.db.enc" {
		t.Errorf("first record = %q, want newest", records[0].ObjectKey)
	}
	if records[1].ObjectKey != "backups/b.db.enc" {
		t.Errorf("second record = %q", records[1].ObjectKey)
	}
}

func TestBackupRetentionQuery(t *testing.T) {
	bs := setupBackupTestDB(t)

	completed, err := bs.Create("backups/old.db.enc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bs.Complete(completed.ID, 100); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := bs.Create("backups/failed.db.enc"); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	// A cutoff in the future matches every completed backup, but never
	// pending or failed ones.
	old, err := bs.ListCompletedBefore(time.Now().UTC().AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("list completed before: %v", err)
	}
	if len(old) != 1 {
		t.Fatalf("old backups = %d, want 1", len(old))
	}
	if old[0].ID != completed.ID {
		t.Errorf("old backup id = %d, want %d", old[0].ID, completed.ID)
	}

	// A cutoff in the past matches nothing.
	old, err = bs.ListCompletedBefore(time.Now().UTC().AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("list completed before past cutoff: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("old backups = %d, want 0", len(old))
	}

	if err := bs.Delete(completed.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records after delete = %d, want 1", len(records))
	}
}
