package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	s3.ListObjectsV2APIClient
	s3manager.UploadAPIClient
	s3manager.DownloadAPIClient
}

// S3 implements Store on Amazon S3.
type S3 struct {
	api        S3API
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// NewS3 wraps an S3 client. Transfers go through the transfer manager:
// archives upload as multipart and weight shards download as concurrent
// ranged parts.
func NewS3(api S3API) *S3 {
	return &S3{
		api:        api,
		uploader:   s3manager.NewUploader(api),
		downloader: s3manager.NewDownloader(api),
	}
}

// NewS3FromConfig builds the store from an AWS config.
func NewS3FromConfig(cfg aws.Config) *S3 {
	return NewS3(s3.NewFromConfig(cfg))
}

func (s *S3) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3 upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	var out []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, o := range page.Contents {
			out = append(out, Object{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)})
		}
	}
	return out, nil
}

func (s *S3) Download(ctx context.Context, bucket, key string, w io.WriterAt) error {
	_, err := s.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
