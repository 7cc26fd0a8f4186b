package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// uploadPartSize is the part size used for multipart uploads of large batch
// objects (the S3 minimum, 5 MiB).
const uploadPartSize int64 = 5 * 1024 * 1024

// LogStore opens per-batch append-only tick log handles. Each batch owns a
// private handle; appends buffer JSONL lines in call order and Close uploads
// the whole batch as a single object, so the stored object replays in exact
// append order.
type LogStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewLogStore creates a LogStore writing under the given key prefix.
func NewLogStore(c *Client, prefix string) *LogStore {
	if prefix == "" {
		prefix = "ticklog"
	}
	return &LogStore{
		client: c.S3(),
		bucket: c.Bucket(),
		prefix: prefix,
	}
}

// batchKey builds the object key for one batch, bucketed by UTC date.
func (ls *LogStore) batchKey(batchID string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", ls.prefix, now.UTC().Format("2006-01-02"), batchID)
}

// Open returns a new private log handle for the given batch.
func (ls *LogStore) Open(batchID string) *TickLog {
	return &TickLog{
		store: ls,
		key:   ls.batchKey(batchID, time.Now()),
	}
}

// ReadBatch downloads one batch object and decodes it back into processed
// ticks in their original append order.
func (ls *LogStore) ReadBatch(ctx context.Context, key string) ([]domain.ProcessedTick, error) {
	out, err := ls.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ls.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: get log object %s: %w", key, err)
	}
	defer out.Body.Close()

	var ticks []domain.ProcessedTick
	scanner := bufio.NewScanner(out.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var tick domain.ProcessedTick
		if err := json.Unmarshal(line, &tick); err != nil {
			return nil, fmt.Errorf("s3blob: decode log line in %s: %w", key, err)
		}
		ticks = append(ticks, tick)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: read log object %s: %w", key, err)
	}
	return ticks, nil
}

// TickLog implements domain.TickLog. It buffers appends in memory and flushes
// them as one ordered JSONL object on Close. The handle is owned by a single
// batch; the mutex only guards against misuse, not for sharing.
type TickLog struct {
	store  *LogStore
	key    string
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// Key returns the object key the log will flush to.
func (l *TickLog) Key() string {
	return l.key
}

// Append buffers one tick as a JSONL line, preserving call order.
func (l *TickLog) Append(ctx context.Context, tick domain.ProcessedTick) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.ErrLogClosed
	}

	line, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("s3blob: marshal tick %s: %w", tick.TickHash, err)
	}
	l.buf.Write(line)
	l.buf.WriteByte('\n')
	return nil
}

// Close flushes the buffered lines as one object and releases the handle.
// An empty log uploads nothing. Close is idempotent.
func (l *TickLog) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	data := make([]byte, l.buf.Len())
	copy(data, l.buf.Bytes())
	l.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	uploader := manager.NewUploader(l.store.client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.store.bucket),
		Key:         aws.String(l.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: flush tick log %s: %w", l.key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TickLog = (*TickLog)(nil)
