package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/location-insights/internal/domain/pipeline"
)

// objectPutter is the part of the minio client used by ObjectArchive.
type objectPutter interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectArchive copies run artifacts to S3 compatible storage under
// {prefix}/{runID}/.
type ObjectArchive struct {
	client  objectPutter
	bucket  string
	prefix  string
	checked atomic.Bool
	logger  *slog.Logger
}

// ObjectStoreOptions configures NewObjectArchive.
type ObjectStoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// NewObjectArchive connects to the object store.
func NewObjectArchive(opts ObjectStoreOptions, logger *slog.Logger) (*ObjectArchive, error) {
	secure := opts.UseSSL || strings.HasPrefix(strings.ToLower(opts.Endpoint), "https")
	client, err := minio.New(sanitizeEndpoint(opts.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       secure,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return newObjectArchive(client, opts.Bucket, opts.Prefix, logger), nil
}

func newObjectArchive(client objectPutter, bucket, prefix string, logger *slog.Logger) *ObjectArchive {
	return &ObjectArchive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With("component", "output.object"),
	}
}

func (a *ObjectArchive) Name() string { return "object-store" }

// Archive uploads the insights and, when present, the top campaigns of a run.
func (a *ObjectArchive) Archive(ctx context.Context, run pipeline.Run) error {
	if run.Insights == nil {
		return nil
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if err := a.put(ctx, run.ID, "location_insights.json", run.Insights); err != nil {
		return err
	}
	if campaigns := run.TopCampaigns(); campaigns != nil {
		if err := a.put(ctx, run.ID, "top_campaigns.json", campaigns); err != nil {
			return err
		}
	}
	a.logger.Debug("run archived", "runId", run.ID, "bucket", a.bucket)
	return nil
}

func (a *ObjectArchive) put(ctx context.Context, runID, name string, value any) error {
	payload, err := encodeIndented(value)
	if err != nil {
		return err
	}
	key := a.key(runID, name)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (a *ObjectArchive) ensureBucket(ctx context.Context) error {
	if a.checked.Load() {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err == nil && exists {
		a.checked.Store(true)
		return nil
	}
	err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	a.checked.Store(true)
	return nil
}

func (a *ObjectArchive) key(runID, name string) string {
	if a.prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(a.prefix, runID, name)
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

var _ pipeline.Archiver = (*ObjectArchive)(nil)
