// Package s3 is a blob provider for Amazon S3 and S3-compatible services.
package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

func init() {
	blob.RegisterFactory(blob.ProviderS3, func(ctx context.Context, cfg blob.Config, _ *logger.Logger) (blob.Storage, error) {
		return NewStorage(ctx, cfg)
	})
}

// Storage implements blob.Storage on one bucket.
type Storage struct {
	client *awss3.Client
	bucket string
}

// NewStorage creates an S3 client for cfg.Bucket. Static credentials are
// used when both keys are set, otherwise the default AWS chain.
func NewStorage(ctx context.Context, cfg blob.Config) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if stderrors.As(err, &nsk) || stderrors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return stderrors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// Exists issues a HEAD request for the object.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob: s3 head %s: %w", path, err)
	}
	return true, nil
}

// Download returns the object's body.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("object", path)
		}
		return nil, fmt.Errorf("blob: s3 get %s: %w", path, err)
	}
	return out.Body, nil
}

// List pages through ListObjectsV2 for prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	var files []blob.ObjectInfo
	paginator := awss3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("blob: s3 list %q: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			fi := blob.ObjectInfo{
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				fi.LastModified = *obj.LastModified
			}
			files = append(files, fi)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

var _ blob.Storage = (*Storage)(nil)
