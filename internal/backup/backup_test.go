package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/prota/internal/config"
	"github.com/dukerupert/prota/internal/database"
	"github.com/dukerupert/prota/internal/logging"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/snapshot"
	"github.com/dukerupert/prota/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
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

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

var testConfig = config.BackupConfig{
	Bucket:     "test",
	AccessKey:  "key",
	SecretKey:  "secret",
	Region:     "us-east-1",
	Passphrase: "correct horse",
}

func setupStores(t *testing.T) snapshot.Stores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return snapshot.Stores{
		Objectives: store.NewObjectiveStore(db),
		Tasks:      store.NewTaskStore(db),
		Points:     store.NewPointsStore(db),
		Reminders:  store.NewReminderStore(db),
		Settings:   store.NewSettingsStore(db),
	}
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(config.BackupConfig{Bucket: "b", AccessKey: "k", SecretKey: "s"}, snapshot.Stores{}, logging.Discard(), nil)
	if m.Enabled() || m.Status().State != StateDisabled {
		t.Errorf("manager without passphrase should be disabled, got %q", m.Status().State)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}

	// Start on a disabled manager is a no-op and Stop must not block.
	m.Start(context.Background())
	m.Stop()
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	stores := setupStores(t)
	obj, _ := stores.Objectives.Create("Write a book", "One page a day", "", "", "")
	stores.Tasks.Create(obj.ID, model.TaskDescriptor{Title: "Open the editor", EstimatedTime: 5}, model.SourceManual)

	var states []State
	var mu sync.Mutex
	m := NewManager(testConfig, stores, logging.Discard(), func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	mock := newMockS3()
	m.client = mock

	archive, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if !strings.HasPrefix(archive.Key, "snapshots/prota-") || !strings.HasSuffix(archive.Key, ".json.enc") {
		t.Errorf("key = %q", archive.Key)
	}
	sealed := mock.objects[archive.Key]
	if int64(len(sealed)) != archive.Size {
		t.Errorf("size = %d, stored %d", archive.Size, len(sealed))
	}
	if bytes.Contains(sealed, []byte("Write a book")) {
		t.Error("archive is not encrypted")
	}

	doc, err := m.Fetch(context.Background(), archive.Key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(doc.Objectives) != 1 || doc.Objectives[0].Title != "Write a book" || len(doc.Tasks) != 1 {
		t.Errorf("document = %+v", doc)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != StateRunning || states[1] != StateIdle {
		t.Errorf("states = %v", states)
	}
	if st := m.Status(); st.LastBackup == nil || st.LastKey != archive.Key {
		t.Errorf("status = %+v", st)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m := NewManager(testConfig, setupStores(t), logging.Discard(), nil)
	mock := newMockS3()
	mock.putErr = errors.New("bucket gone")
	m.client = mock

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if st := m.Status(); st.State != StateError || st.Error == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, _ := Encrypt([]byte(`{"version":1}`), "right")
	if _, err := Open(sealed, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
	doc, err := Open(sealed, "right")
	if err != nil || doc.Version != 1 {
		t.Errorf("open = %+v, %v", doc, err)
	}
}

func TestManagerLoop(t *testing.T) {
	cfg := testConfig
	cfg.Interval = 10 * time.Millisecond
	m := NewManager(cfg, setupStores(t), logging.Discard(), nil)
	mock := newMockS3()
	m.client = mock

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Stop()

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.objects) == 0 {
		t.Error("expected at least one scheduled upload")
	}
}
