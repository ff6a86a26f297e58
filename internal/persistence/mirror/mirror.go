// Package mirror copies build artifacts (grid snapshots, repaired images,
// finished diagnostics segments) to an S3-compatible bucket in the
// background.
package mirror

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	Uploaded      uint64
	Failed        uint64
	Dropped       uint64
	LastUploadMs  int64
}

type uploader interface {
	Put(ctx context.Context, key, localPath string) error
}

type job struct {
	key, path string
}

type Options struct {
	// Root is the local directory object keys are relative to.
	Root    string
	Prefix  string
	Workers int
	Queue   int
	Logger  *log.Logger
}

type Mirror struct {
	up     uploader
	root   string
	prefix string
	logger *log.Logger

	jobs     chan job
	attempts int
	backoff  func(attempt int) time.Duration
	wg       sync.WaitGroup

	uploaded   atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
	lastUpload atomic.Int64
}

func New(c *Client, opts Options) *Mirror { return newMirror(c, opts) }

func newMirror(up uploader, opts Options) *Mirror {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Queue <= 0 {
		opts.Queue = 256
	}
	m := &Mirror{
		up:       up,
		root:     opts.Root,
		prefix:   strings.Trim(filepath.ToSlash(opts.Prefix), "/"),
		logger:   opts.Logger,
		jobs:     make(chan job, opts.Queue),
		attempts: 4,
		backoff:  func(a int) time.Duration { return time.Duration(a*a) * 200 * time.Millisecond },
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
	return m
}

// Enqueue schedules localPath, which must live under Root. A full queue drops
// the file.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	key, err := m.keyFor(localPath)
	if err != nil {
		m.printf("mirror skip %s: %v", localPath, err)
		return
	}
	m.enqueue(job{key: key, path: localPath})
}

// EnqueueAs schedules localPath under an explicit key below the prefix.
func (m *Mirror) EnqueueAs(key, localPath string) {
	if m == nil {
		return
	}
	m.enqueue(job{key: m.withPrefix(key), path: localPath})
}

func (m *Mirror) enqueue(j job) {
	select {
	case m.jobs <- j:
	default:
		n := m.dropped.Add(1)
		m.printf("mirror drop %s (queue full, dropped=%d)", j.path, n)
	}
}

// Close waits for queued uploads.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(m.jobs),
		QueueCapacity: cap(m.jobs),
		Uploaded:      m.uploaded.Load(),
		Failed:        m.failed.Load(),
		Dropped:       m.dropped.Load(),
		LastUploadMs:  m.lastUpload.Load(),
	}
}

func (m *Mirror) work() {
	defer m.wg.Done()
	for j := range m.jobs {
		if err := m.upload(j); err != nil {
			m.failed.Add(1)
			m.printf("mirror upload %s: %v", j.key, err)
			continue
		}
		m.uploaded.Add(1)
		m.lastUpload.Store(time.Now().UnixMilli())
	}
}

func (m *Mirror) upload(j job) error {
	var err error
	for a := 1; a <= m.attempts; a++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.up.Put(ctx, j.key, j.path)
		cancel()
		if err == nil {
			return nil
		}
		if a < m.attempts {
			time.Sleep(m.backoff(a))
		}
	}
	return err
}

func (m *Mirror) keyFor(localPath string) (string, error) {
	root, err := filepath.Abs(m.root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("outside %s", root)
	}
	return m.withPrefix(rel), nil
}

func (m *Mirror) withPrefix(key string) string {
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
