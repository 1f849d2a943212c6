package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/prota/internal/config"
	"github.com/dukerupert/prota/internal/snapshot"
)

// KeyPrefix is where archives live in the bucket.
const KeyPrefix = "snapshots/"

var ErrDisabled = errors.New("backup not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	LastKey    string     `json:"lastKey,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"inProgress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Archive describes one uploaded snapshot.
type Archive struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager uploads encrypted snapshot documents to S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	cfg      config.BackupConfig
	stores   snapshot.Stores
	client   s3Client
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg config.BackupConfig, stores snapshot.Stores, logger *slog.Logger, callback StatusCallback) *Manager {
	m := &Manager{
		cfg:      cfg,
		stores:   stores,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}
	if enabled(cfg) {
		m.client = newS3Client(cfg)
		m.status.State = StateIdle
	}
	return m
}

func enabled(cfg config.BackupConfig) bool {
	return cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" && cfg.Passphrase != ""
}

func newS3Client(cfg config.BackupConfig) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether archives can be uploaded.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start uploads an archive every configured interval. It does nothing when
// the manager is disabled or the interval is zero.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil || m.cfg.Interval <= 0 {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
		s.LastKey = m.status.LastKey
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(err error) error {
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

// RunNow exports a snapshot, encrypts it and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*Archive, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	doc, err := snapshot.Export(m.stores)
	if err != nil {
		return nil, m.fail(fmt.Errorf("export snapshot: %w", err))
	}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return nil, m.fail(fmt.Errorf("marshal snapshot: %w", err))
	}
	sealed, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return nil, m.fail(fmt.Errorf("encrypt: %w", err))
	}

	now := time.Now().UTC()
	key := KeyPrefix + "prota-" + now.Format("2006-01-02T150405Z") + ".json.enc"

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, m.fail(fmt.Errorf("upload to s3: %w", err))
	}

	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	m.logger.Info("uploaded backup", "key", key, "bytes", len(sealed), "objectives", len(doc.Objectives), "tasks", len(doc.Tasks))

	return &Archive{Key: key, Size: int64(len(sealed)), CreatedAt: now}, nil
}

// Fetch downloads and decrypts the archive stored under key.
func (m *Manager) Fetch(ctx context.Context, key string) (*snapshot.Document, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return Open(sealed, passphrase)
}

// Open decrypts an archive and decodes the snapshot inside it.
func Open(sealed []byte, passphrase string) (*snapshot.Document, error) {
	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(plaintext)
}
