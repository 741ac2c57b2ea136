package backup

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dstark/habitforge/internal/database"
	"github.com/dstark/habitforge/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestManagerStateLifecycle(t *testing.T) {
	// Without S3 config or passphrase -> disabled
	m := NewManager(Config{}, nil, nil, slog.Default())
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("expected disabled manager")
	}

	// Credentials without a passphrase still leave backups disabled.
	m2 := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, slog.Default())
	if m2.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q without passphrase", m2.Status().State, StateDisabled)
	}

	m3 := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "hunter2hunter2",
	}, nil, nil, slog.Default())
	if m3.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m3.Status().State, StateIdle)
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "hunter2hunter2",
	}, nil, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, nil, slog.Default())

	m.Start(context.Background())
	m.Stop()
}

func TestRunNowUploadsEncryptedCopy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "habitforge.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		DBPath:     dbPath,
		Passphrase: "hunter2hunter2",
	}, db, store.NewBackupStore(db), slog.Default())

	mock := newMockS3()
	m.client = mock

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if id == 0 {
		t.Fatal("expected backup record id")
	}

	mock.mu.Lock()
	uploaded := len(mock.objects)
	mock.mu.Unlock()
	if uploaded != 1 {
		t.Fatalf("uploaded objects = %d, want 1", uploaded)
	}

	records, err := store.NewBackupStore(db).List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("backup records = %d, want 1", len(records))
	}
	if records[0].Status != "completed" {
		t.Errorf("status = %q, want completed", records[0].Status)
	}
	if records[0].SizeBytes == 0 {
		t.Error("expected non-zero encrypted size")
	}

	if m.Status().State != StateIdle {
		t.Errorf("state = %q after backup, want %q", m.Status().State, StateIdle)
	}
	if m.Status().LastBackup == nil {
		t.Error("expected last backup timestamp")
	}
}
