package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	puts    int
	failKey string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string]string)}
}

func (b *fakeBucket) IsObjectExist(key string, _ ...oss.Option) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *fakeBucket) PutObjectFromFile(key, path string, _ ...oss.Option) error {
	if key == b.failKey {
		return errors.New("access denied")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = string(data)
	b.puts++
	return nil
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestUploadFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "ht-haiti.mbtiles")
	writeFile(t, src, "sqlite")

	bucket := newFakeBucket()
	u := NewUploader(bucket, Config{Prefix: "/tiles/"})

	stats, err := u.Upload(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, Stats{Uploaded: 1, Bytes: 6}, stats)
	assert.Equal(t, []string{"tiles/ht-haiti.mbtiles"}, bucket.keys())
}

func TestUploadDir(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "ht-haiti")
	writeFile(t, filepath.Join(dir, "0", "0", "0.png"), "a")
	writeFile(t, filepath.Join(dir, "1", "0", "1.png"), "b")
	writeFile(t, filepath.Join(dir, "1", "1", "1.png"), "c")

	bucket := newFakeBucket()
	u := NewUploader(bucket, Config{Concurrency: 2})

	stats, err := u.Upload(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Uploaded)
	assert.Equal(t, []string{
		"ht-haiti/0/0/0.png",
		"ht-haiti/1/0/1.png",
		"ht-haiti/1/1/1.png",
	}, bucket.keys())
}

func TestUploadSkipsExisting(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "r")
	writeFile(t, filepath.Join(dir, "0", "0", "0.png"), "new")
	writeFile(t, filepath.Join(dir, "1", "0", "0.png"), "new")

	bucket := newFakeBucket()
	bucket.objects["r/0/0/0.png"] = "old"

	stats, err := NewUploader(bucket, Config{}).Upload(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Uploaded)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, "old", bucket.objects["r/0/0/0.png"])

	stats, err = NewUploader(bucket, Config{Force: true}).Upload(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Uploaded)
	assert.Equal(t, "new", bucket.objects["r/0/0/0.png"])
}

func TestUploadError(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "r")
	writeFile(t, filepath.Join(dir, "0", "0", "0.png"), "x")

	bucket := newFakeBucket()
	bucket.failKey = "r/0/0/0.png"

	_, err := NewUploader(bucket, Config{}).Upload(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestUploadCancelled(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "r", "0", "0", "0.png"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bucket := newFakeBucket()
	_, err := NewUploader(bucket, Config{}).Upload(ctx, filepath.Join(tmp, "r"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, bucket.puts)
}

func TestUploadMissingSource(t *testing.T) {
	_, err := NewUploader(newFakeBucket(), Config{}).Upload(context.Background(), "/does/not/exist")
	assert.Error(t, err)
}

func TestOpenBucketValidation(t *testing.T) {
	_, err := OpenBucket(Config{Bucket: "tiles"})
	assert.Error(t, err)

	_, err = OpenBucket(Config{Endpoint: "oss-cn-hangzhou.aliyuncs.com", Bucket: "tiles"})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("1/2/3.PNG"))
	assert.Equal(t, "application/vnd.sqlite3", ContentType("a.mbtiles"))
	assert.Equal(t, "application/octet-stream", ContentType("README"))
}
