package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/expensebook/expensebook/internal/common"
	sc "github.com/expensebook/expensebook/internal/server/config"
	"github.com/expensebook/expensebook/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignExpiry bounds how long an avatar upload or download URL stays valid.
const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AvatarUpload tells the client where to PUT the picture.
type AvatarUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// AvatarService hands out presigned S3 URLs for profile pictures. The bytes
// never pass through the server.
type AvatarService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewAvatarService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *AvatarService {
	return &AvatarService{
		db:          db,
		repomanager: repomanager,
		config:      config,
	}
}

// AvatarKey returns a fresh object key under the user's prefix.
func AvatarKey(userID string) string {
	return fmt.Sprintf("users/%s/avatar/%s", userID, uuid.New())
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// IssueUploadURL reserves a new avatar key for the user, records it on the
// profile and returns a presigned PUT URL for it.
func (s *AvatarService) IssueUploadURL(ctx context.Context, userID string) (*AvatarUpload, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := AvatarKey(userID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.Users(s.db).SetAvatar(ctx, userID, key); err != nil {
		return nil, fmt.Errorf("save avatar key: %w", err)
	}

	return &AvatarUpload{Key: key, URL: req.URL}, nil
}

// AvatarURL returns a presigned GET URL for the user's current avatar.
func (s *AvatarService) AvatarURL(ctx context.Context, userID string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("avatar: %w", err)
	}
	if user.Avatar == "" {
		return "", fmt.Errorf("%w: avatar is not set", common.ErrorNotFound)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := user.Avatar

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
