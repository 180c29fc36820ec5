package cursor

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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/lightningnetwork/lnd/lnrpc"
)

// maxSnapshotSize is the maximum allowed size for an S3 cursor snapshot
// (1 MiB). A snapshot holds one offset and two small enum-keyed maps, so
// anything larger than this is corrupt.
const maxSnapshotSize = 1 << 20

// S3Client is the subset of the AWS S3 client API used by S3Cursor.
// It exists to allow dependency injection of a mock in tests.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Cursor wraps a Cursor and adds S3 persistence. All Store methods
// delegate to the embedded Cursor so reads stay in memory. Persist
// serialises the current cursor state to a single S3 object; Restore
// re-hydrates the Cursor from S3 on startup so cumulative payment tallies
// survive exporter restarts.
type S3Cursor struct {
	cur    *Cursor
	client S3Client
	bucket string
	key    string

	// persistMu serialises Persist calls so overlapping collection cycles
	// (shouldn't happen, but defensive) don't race on S3 writes.
	persistMu sync.Mutex
}

// NewS3Cursor creates an S3Cursor that persists snapshots to
// s3://<bucket>/<keyPrefix>/cursor.json.
func NewS3Cursor(cur *Cursor, client S3Client, bucket, keyPrefix string) *S3Cursor {
	return &S3Cursor{
		cur:    cur,
		client: client,
		bucket: bucket,
		key:    keyPrefix + "/cursor.json",
	}
}

// ---------------------------------------------------------------------------
// Store interface delegation – all reads/writes go through the Cursor.
// ---------------------------------------------------------------------------

func (s *S3Cursor) Apply(payments []*lnrpc.Payment, nextOffset uint64) {
	s.cur.Apply(payments, nextOffset)
}

func (s *S3Cursor) IndexOffset() uint64 { return s.cur.IndexOffset() }

func (s *S3Cursor) StatusCounts() map[lnrpc.Payment_PaymentStatus]int64 {
	return s.cur.StatusCounts()
}

func (s *S3Cursor) FailureReasonCounts() map[lnrpc.PaymentFailureReason]int64 {
	return s.cur.FailureReasonCounts()
}

func (s *S3Cursor) Snapshot() Snapshot { return s.cur.Snapshot() }

// ---------------------------------------------------------------------------
// PersistentStore implementation
// ---------------------------------------------------------------------------

// Persist serialises the current cursor state to S3 as JSON.
func (s *S3Cursor) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.cur.Snapshot()
	snap.PersistedAt = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(data),
		ContentType: strPtr("application/json"),
	})
	if err != nil {
		return err
	}

	slog.Debug("persisted payment cursor to S3",
		"bucket", s.bucket,
		"key", s.key,
		"indexOffset", snap.IndexOffset,
	)
	return nil
}

// Restore loads a snapshot from S3 and replays it into the Cursor.
// If the S3 key does not exist the cursor starts at offset 0 (no error).
// Any other S3 error is returned so the caller can decide how to handle it.
//
// Restore must run before the first payment scrape: replaying a snapshot
// after the cursor has moved would violate its forward-only guarantee.
func (s *S3Cursor) Restore(ctx context.Context) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
	})
	if err != nil {
		// NoSuchKey → start with a fresh cursor.
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			slog.Warn("no existing S3 cursor snapshot found, starting from offset 0",
				"bucket", s.bucket,
				"key", s.key,
			)
			return nil
		}
		return err
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxSnapshotSize+1))
	if err != nil {
		return err
	}
	if len(data) > maxSnapshotSize {
		return fmt.Errorf("S3 cursor snapshot exceeds maximum allowed size of %d bytes", maxSnapshotSize)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.cur.loadSnapshot(snap)

	slog.Info("restored payment cursor from S3",
		"bucket", s.bucket,
		"key", s.key,
		"indexOffset", snap.IndexOffset,
		"persistedAt", snap.PersistedAt,
	)
	return nil
}

// ---------------------------------------------------------------------------
// S3 client factory
// ---------------------------------------------------------------------------

// NewS3Client creates a real AWS S3 client using the default credential chain.
// If endpoint is non-empty, path-style addressing is enabled (for MinIO, LocalStack, etc.).
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){}
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, opts...), nil
}

func strPtr(s string) *string { return &s }
