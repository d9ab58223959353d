package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"scenecast.dev/internal/observability"
)

// Putter stores one local file under an object key.
type Putter interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type UploaderConfig struct {
	// BaseDir is stripped from local paths to form object keys.
	BaseDir string
	Prefix  string
	Workers int
	Queue   int
	// EnqueueWait bounds how long Enqueue blocks on a full queue.
	EnqueueWait time.Duration
	Attempts    int
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	Enqueued      uint64
	Dropped       uint64
	Uploaded      uint64
	Failed        uint64
}

// Uploader sends recording files to object storage from a small worker pool.
// Files are uploaded once, after the recorder has closed them.
type Uploader struct {
	putter  Putter
	baseDir string
	prefix  string
	wait    time.Duration
	tries   int
	log     zerolog.Logger
	backoff func(attempt int) time.Duration

	jobs chan string
	wg   sync.WaitGroup

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
}

func NewUploader(p Putter, cfg UploaderConfig, log zerolog.Logger) *Uploader {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 64
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = 25 * time.Millisecond
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 4
	}
	u := &Uploader{
		putter:  p,
		baseDir: cfg.BaseDir,
		prefix:  strings.Trim(strings.ReplaceAll(cfg.Prefix, "\\", "/"), "/"),
		wait:    cfg.EnqueueWait,
		tries:   cfg.Attempts,
		log:     log,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt*attempt) * 200 * time.Millisecond },
		jobs:    make(chan string, cfg.Queue),
	}
	for i := 0; i < cfg.Workers; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for local := range u.jobs {
				u.uploadOne(local)
			}
		}()
	}
	return u
}

// Enqueue schedules localPath for upload. When the queue stays full for the
// configured wait the file is skipped; it remains on disk.
func (u *Uploader) Enqueue(localPath string) {
	if u == nil {
		return
	}
	u.enqueued.Add(1)
	select {
	case u.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(u.wait)
	defer t.Stop()
	select {
	case u.jobs <- localPath:
	case <-t.C:
		u.dropped.Add(1)
		observability.RecordUpload("dropped")
		u.log.Warn().Str("path", localPath).Msg("upload queue full, skipping file")
	}
}

// Close waits for queued uploads to finish. Enqueue must not be called
// afterwards.
func (u *Uploader) Close() {
	if u == nil {
		return
	}
	close(u.jobs)
	u.wg.Wait()
}

func (u *Uploader) Stats() Stats {
	if u == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(u.jobs),
		QueueCapacity: cap(u.jobs),
		Enqueued:      u.enqueued.Load(),
		Dropped:       u.dropped.Load(),
		Uploaded:      u.uploaded.Load(),
		Failed:        u.failed.Load(),
	}
}

func (u *Uploader) uploadOne(localPath string) {
	key, err := u.objectKey(localPath)
	if err != nil {
		u.failed.Add(1)
		observability.RecordUpload("failed")
		u.log.Warn().Err(err).Str("path", localPath).Msg("upload skipped")
		return
	}
	var lastErr error
	for attempt := 1; attempt <= u.tries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = u.putter.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			u.uploaded.Add(1)
			observability.RecordUpload("ok")
			u.log.Info().Str("key", key).Msg("recording uploaded")
			return
		}
		if attempt < u.tries {
			time.Sleep(u.backoff(attempt))
		}
	}
	u.failed.Add(1)
	observability.RecordUpload("failed")
	u.log.Error().Err(lastErr).Str("key", key).Int("attempts", u.tries).Msg("recording upload failed")
}

func (u *Uploader) objectKey(localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	base, err := filepath.Abs(u.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("upload: %s is outside %s", abs, base)
	}
	if u.prefix != "" {
		rel = path.Join(u.prefix, rel)
	}
	return rel, nil
}
