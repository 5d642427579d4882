package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap_server/models"
)

const evidenceRefScheme = "s3://"

// ObjectPresigner is the subset of *s3.PresignClient used for evidence.
type ObjectPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadTicket is handed to the client for a direct upload. EvidenceRef is what the client
// submits with the claim once the upload finished.
type UploadTicket struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	EvidenceRef string    `json:"evidenceRef"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// EvidenceService hosts claim evidence in S3 through presigned URLs.
type EvidenceService struct {
	Presigner ObjectPresigner
	Bucket    string
	TTL       time.Duration
	Log       *zap.Logger

	now func() time.Time
}

// NewS3Presigner builds a presign client from the default credential chain.
func NewS3Presigner(ctx context.Context, region string) (*s3.PresignClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewPresignClient(s3.NewFromConfig(cfg)), nil
}

func NewEvidenceService(presigner ObjectPresigner, bucket string, ttl time.Duration, log *zap.Logger) *EvidenceService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EvidenceService{Presigner: presigner, Bucket: bucket, TTL: ttl, Log: log, now: time.Now}
}

// UploadURL presigns a PUT for a new evidence object under the member's prefix.
func (s *EvidenceService) UploadURL(ctx context.Context, memberID, skill, fileName, contentType string) (UploadTicket, error) {
	skill = models.NormalizeSkill(skill)
	fileName = path.Base(strings.TrimSpace(fileName))
	if memberID == "" || skill == "" || fileName == "" || fileName == "." || fileName == "/" {
		return UploadTicket{}, fmt.Errorf("member, skill and file name are required: %w", models.ErrValidation)
	}
	if s.Bucket == "" {
		return UploadTicket{}, fmt.Errorf("no evidence bucket configured: %w", models.ErrStoreUnavailable)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("evidence/%s/%s/%s-%s-%s",
		memberID, strings.ReplaceAll(skill, " ", "-"), now.Format("20060102150405"), uuid.NewString(), fileName)
	params := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		params.ContentType = aws.String(contentType)
	}
	req, err := s.Presigner.PresignPutObject(ctx, params, s3.WithPresignExpires(s.TTL))
	if err != nil {
		s.Log.Error("failed to presign evidence upload", zap.String("key", key), zap.Error(err))
		return UploadTicket{}, fmt.Errorf("presign upload: %w: %w", models.ErrStoreUnavailable, err)
	}
	return UploadTicket{
		URL:         req.URL,
		Key:         key,
		EvidenceRef: evidenceRefScheme + s.Bucket + "/" + key,
		ExpiresAt:   now.Add(s.TTL),
	}, nil
}

// ReadURL presigns a GET for an evidence reference produced by UploadURL.
func (s *EvidenceService) ReadURL(ctx context.Context, evidenceRef string) (string, error) {
	bucket, key, err := ParseEvidenceRef(evidenceRef)
	if err != nil {
		return "", err
	}
	if bucket != s.Bucket {
		return "", fmt.Errorf("evidence '%s' is not in bucket '%s': %w", evidenceRef, s.Bucket, models.ErrValidation)
	}
	req, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.TTL))
	if err != nil {
		s.Log.Error("failed to presign evidence read", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("presign read: %w: %w", models.ErrStoreUnavailable, err)
	}
	return req.URL, nil
}

// ParseEvidenceRef splits "s3://bucket/key".
func ParseEvidenceRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, evidenceRefScheme)
	if !ok {
		return "", "", fmt.Errorf("evidence reference '%s' is not an s3 reference: %w", ref, models.ErrValidation)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("evidence reference '%s' has no key: %w", ref, models.ErrValidation)
	}
	return bucket, key, nil
}

// EvidenceOwner returns the member id encoded in an evidence key.
func EvidenceOwner(ref string) (string, error) {
	_, key, err := ParseEvidenceRef(ref)
	if err != nil {
		return "", err
	}
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[0] != "evidence" || parts[1] == "" {
		return "", fmt.Errorf("evidence reference '%s' has no owner: %w", ref, models.ErrValidation)
	}
	return parts[1], nil
}
