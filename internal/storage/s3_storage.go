package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ikkim/gold-portfolio-backend/config"
)

const (
	uploadTimeout  = 30 * time.Second
	downloadExpiry = 15 * time.Minute
)

// S3Storage 포트폴리오 내보내기 파일 보관소
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// Enabled 버킷이 설정되어 있을 때만 사용
func Enabled(cfg *config.S3Config) bool {
	return cfg.Bucket != ""
}

func NewS3Storage(cfg *config.S3Config) *S3Storage {
	var awsCfg aws.Config
	var err error

	// If credentials are provided, use them. Otherwise, use default credential chain
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		}
	} else {
		// Use default credential chain (environment variables, ~/.aws/credentials, IAM role, etc.)
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.Region),
		)
		if err != nil {
			// If default config fails, create a basic config with region only
			awsCfg = aws.Config{
				Region: cfg.Region,
			}
		}
	}

	return newS3Storage(s3.NewFromConfig(awsCfg), cfg)
}

func newS3Storage(client *s3.Client, cfg *config.S3Config) *S3Storage {
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
	}
}

// ObjectKey prefix/2026/10/<uuid>-<filename>
func (s *S3Storage) ObjectKey(filename string) string {
	now := time.Now().UTC()
	name := fmt.Sprintf("%s-%s", uuid.New().String(), path.Base(filename))
	return path.Join(s.prefix, now.Format("2006"), now.Format("01"), name)
}

// Upload 파일 업로드
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(body),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PresignGet 다운로드용 pre-signed URL (15분)
func (s *S3Storage) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	presignedReq, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(downloadExpiry))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return presignedReq.URL, time.Now().Add(downloadExpiry), nil
}
