package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// S3Store is the object-store backend (NE_ARTIFACT_BACKEND=cloud). Keys are
// "artifacts/{app_name}/{name}".
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store builds an S3Store against bucket in region, using the default
// AWS credential chain.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

func (s *S3Store) objectKey(appName, name string) string {
	return "artifacts/" + appName + "/" + name
}

func (s *S3Store) Put(ctx context.Context, appName, name string, data []byte, contentType string) (*models.Artifact, error) {
	key := s.objectKey(appName, name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return nil, apperrors.NewInfrastructureError("artifact-upload-failed", err)
	}
	return &models.Artifact{
		ID:          uuid.New().String(),
		AppName:     appName,
		ContentType: contentType,
		Size:        int64(len(data)),
		URI:         fmt.Sprintf("s3://%s/%s", s.bucket, key),
		CreatedAt:   time.Now(),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, appName, name string) ([]byte, *models.Artifact, error) {
	key := s.objectKey(appName, name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil, apperrors.ErrNotFound
		}
		return nil, nil, apperrors.NewInfrastructureError("artifact-download-failed", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, apperrors.NewInfrastructureError("artifact-download-failed", err)
	}
	meta := &models.Artifact{
		AppName: appName,
		Size:    int64(len(data)),
		URI:     fmt.Sprintf("s3://%s/%s", s.bucket, key),
	}
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}
	return data, meta, nil
}

func (s *S3Store) Delete(ctx context.Context, appName, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(appName, name)),
	})
	if err != nil {
		return apperrors.NewInfrastructureError("artifact-delete-failed", err)
	}
	return nil
}
