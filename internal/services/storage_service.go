// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/internal/config"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

// StorageService keeps block bundles in S3. Bundles are never public;
// delivery happens through short-lived presigned URLs handed out per
// license.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Local development: presigned URLs are stubbed
		return &StorageService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// UploadBundle stores a creator's block bundle and returns its object key.
func (s *StorageService) UploadBundle(file multipart.File, header *multipart.FileHeader, blockID uuid.UUID) (*UploadResult, error) {
	const maxBundleSize = 50 * 1024 * 1024

	if header.Size > maxBundleSize {
		return nil, fmt.Errorf("bundle size %d bytes exceeds maximum allowed size %d bytes", header.Size, int64(maxBundleSize))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".zip" && ext != ".tgz" && ext != ".gz" {
		return nil, fmt.Errorf("bundle type %s is not allowed", ext)
	}

	suffix, err := utils.GenerateRandomString(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate object key: %w", err)
	}
	key := fmt.Sprintf("bundles/%s/%s%s", blockID, suffix, ext)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	contentType := header.Header.Get("Content-Type")

	if s.s3Client != nil {
		params := &s3.PutObjectInput{
			Bucket:        aws.String(s.config.AWS.S3Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(fileBytes),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(fileBytes))),
		}

		if _, err := s.s3Client.PutObject(params); err != nil {
			return nil, fmt.Errorf("failed to upload to S3: %w", err)
		}
	}

	return &UploadResult{
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) DeleteBundle(key string) error {
	if s.s3Client == nil {
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return fmt.Errorf("failed to delete bundle from S3: %w", err)
	}

	return nil
}

func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		// Local development stub
		return fmt.Sprintf("http://localhost:%s/%s", s.config.Server.Port, key), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}
