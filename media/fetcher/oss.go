package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/settings"
)

// Bucket is the part of *oss.Bucket the fetcher needs.
type Bucket interface {
	GetObjectDetailedMeta(objectKey string, options ...oss.Option) (http.Header, error)
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
}

// BucketResolver opens a bucket by name.
type BucketResolver func(name string) (Bucket, error)

// NewOSSBucketResolver creates an OSS client
// Endpoint: oss-cn-hangzhou.aliyuncs.com
func NewOSSBucketResolver(endpoint, accessKeyID, accessKeySecret string) (BucketResolver, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	return func(name string) (Bucket, error) {
		bucket, err := client.Bucket(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get bucket %s: %w", name, err)
		}
		return bucket, nil
	}, nil
}

// OSSFetcher reads oss://<bucket>/<key> sources. The bucket name must be
// on the allowed hosts list.
type OSSFetcher struct {
	settings *settings.Settings
	buckets  BucketResolver
	tempDir  string
}

func NewOSSFetcher(s *settings.Settings, buckets BucketResolver, opts Options) *OSSFetcher {
	return &OSSFetcher{settings: s, buckets: buckets, tempDir: opts.TempDir}
}

// Fetch checks the object size before downloading it.
// The OSS SDK in use takes no context, so ctx only guards the start.
func (f *OSSFetcher) Fetch(ctx context.Context, u *url.URL) (*Source, error) {
	bucketName := u.Host
	if !f.settings.HostAllowed(bucketName) {
		return nil, errors.NewAccess(fmt.Sprintf("%s is not permitted as source", u))
	}
	// Remove leading slash to get the object key
	objectKey := strings.TrimPrefix(u.Path, "/")
	if objectKey == "" {
		return nil, errors.NewURL(fmt.Sprintf("%s has no object key", u))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewUpstreamFailure(err, u.String())
	}

	bucket, err := f.buckets(bucketName)
	if err != nil {
		return nil, errors.NewUpstreamFailure(err, u.String())
	}

	limit := f.settings.MaxSourceSize()
	meta, err := bucket.GetObjectDetailedMeta(objectKey)
	if err != nil {
		return nil, ossError(err, u)
	}
	if size, err := strconv.ParseInt(meta.Get("Content-Length"), 10, 64); err == nil && size > limit {
		return nil, errors.NewTooLarge(fmt.Sprintf("%s is too large to process (%d bytes)", u, size), http.StatusBadGateway)
	}

	body, err := bucket.GetObject(objectKey)
	if err != nil {
		return nil, ossError(err, u)
	}
	defer body.Close()

	src, err := copyToSource(f.tempDir, body, limit, func(n int64) error {
		return errors.NewTooLarge(fmt.Sprintf("%s is too large to process (more than %d bytes)", u, limit), http.StatusBadGateway)
	})
	if err != nil {
		if errors.FromError(err).Type == errors.ErrorTypeUnknown {
			return nil, errors.NewUpstreamFailure(err, u.String())
		}
		return nil, err
	}
	return src, nil
}

// ossError replays the status of OSS service errors.
func ossError(err error, u *url.URL) error {
	var se oss.ServiceError
	if stderrors.As(err, &se) && se.StatusCode > 0 {
		return errors.NewUpstream(se.StatusCode, u.String()).WithInnerError(err)
	}
	var sep *oss.ServiceError
	if stderrors.As(err, &sep) && sep.StatusCode > 0 {
		return errors.NewUpstream(sep.StatusCode, u.String()).WithInnerError(err)
	}
	return errors.NewUpstreamFailure(err, u.String())
}
