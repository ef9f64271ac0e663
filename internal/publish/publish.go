// Package publish uploads packed regions to an Aliyun OSS bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of parallel uploads.
const DefaultConcurrency = 8

// Bucket is the part of *oss.Bucket the uploader needs.
type Bucket interface {
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
	PutObjectFromFile(objectKey, filePath string, options ...oss.Option) error
}

// Config holds connection and upload settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// Prefix is prepended to every object key.
	Prefix      string
	Concurrency int
	// Force re-uploads objects that already exist.
	Force  bool
	Logger *slog.Logger
}

// OpenBucket connects to OSS and returns the configured bucket.
func OpenBucket(cfg Config) (*oss.Bucket, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("endpoint and bucket are required")
	}
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		return nil, errors.New("access key id and secret are required")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", cfg.Bucket, err)
	}
	return bucket, nil
}

// Stats counts what an upload did.
type Stats struct {
	Uploaded int
	Skipped  int
	Bytes    int64
}

// Uploader copies files into a bucket.
type Uploader struct {
	bucket      Bucket
	prefix      string
	concurrency int
	force       bool
	logger      *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewUploader creates an uploader for bucket. Only the upload settings of cfg
// are used.
func NewUploader(bucket Bucket, cfg Config) *Uploader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Uploader{
		bucket:      bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		concurrency: concurrency,
		force:       cfg.Force,
		logger:      logger,
	}
}

type upload struct {
	key  string
	path string
	size int64
}

// Upload uploads a single file as {prefix}/{name}, or a directory tree as
// {prefix}/{dir name}/{relative path}.
func (u *Uploader) Upload(ctx context.Context, src string) (Stats, error) {
	u.mu.Lock()
	u.stats = Stats{}
	u.mu.Unlock()

	info, err := os.Stat(src)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to stat %s: %w", src, err)
	}

	var files []upload
	if info.IsDir() {
		files, err = u.collect(src)
		if err != nil {
			return Stats{}, err
		}
	} else {
		files = []upload{{key: u.Key(filepath.Base(src)), path: src, size: info.Size()}}
	}

	u.logger.Info("Uploading", "source", src, "files", len(files), "concurrency", u.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return u.put(gctx, f)
		})
	}

	// The group context is always done after Wait; check the caller's.
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	u.mu.Lock()
	stats := u.stats
	u.mu.Unlock()
	if err != nil {
		return stats, fmt.Errorf("upload %s: %w", src, err)
	}
	return stats, nil
}

func (u *Uploader) collect(dir string) ([]upload, error) {
	base := filepath.Base(filepath.Clean(dir))

	var files []upload
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, upload{
			key:  u.Key(path.Join(base, filepath.ToSlash(rel))),
			path: p,
			size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return files, nil
}

func (u *Uploader) put(ctx context.Context, f upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !u.force {
		exists, err := u.bucket.IsObjectExist(f.key)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", f.key, err)
		}
		if exists {
			u.logger.Debug("Object exists, skipping", "key", f.key)
			u.mu.Lock()
			u.stats.Skipped++
			u.mu.Unlock()
			return nil
		}
	}

	if err := u.bucket.PutObjectFromFile(f.key, f.path, oss.ContentType(ContentType(f.path))); err != nil {
		return fmt.Errorf("failed to upload %s: %w", f.key, err)
	}
	u.logger.Debug("Uploaded", "key", f.key, "bytes", f.size)

	u.mu.Lock()
	u.stats.Uploaded++
	u.stats.Bytes += f.size
	u.mu.Unlock()
	return nil
}

// Key returns the object key for name under the uploader prefix.
func (u *Uploader) Key(name string) string {
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}

// ContentType guesses the content type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".mbtiles":
		return "application/vnd.sqlite3"
	case ".json", ".geojson":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
